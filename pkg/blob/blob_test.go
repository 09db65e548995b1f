package blob

import "testing"

func TestBlobCreate(t *testing.T) {
	b := New([]byte("hello"))
	if b.Refcount() != 1 {
		t.Errorf("expected refcount 1, got %d", b.Refcount())
	}
	if string(b.Bytes()) != "hello" {
		t.Errorf("expected content %q, got %q", "hello", b.Bytes())
	}
}

func TestBlobRefUnrefBalanced(t *testing.T) {
	b := New([]byte("value"))
	b.Ref()
	b.Ref()
	if got := b.Refcount(); got != 3 {
		t.Fatalf("expected refcount 3, got %d", got)
	}
	b.Unref()
	b.Unref()
	b.Unref()
	if got := b.Refcount(); got != 0 {
		t.Errorf("expected refcount 0 after balanced unref, got %d", got)
	}
}

func TestBlobRefUnrefNilIsNoOp(t *testing.T) {
	var b *Blob
	if got := b.Ref(); got != nil {
		t.Errorf("Ref on nil should return nil, got %v", got)
	}
	b.Unref() // must not panic
	if b.Bytes() != nil {
		t.Errorf("Bytes on nil should be nil")
	}
}

func TestBlobCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     *Blob
		expected int
	}{
		{"equal content", New([]byte("k")), New([]byte("k")), 0},
		{"different content", New([]byte("k1")), New([]byte("k2")), 1},
		{"both nil", nil, nil, 0},
		{"one nil", New([]byte("")), nil, 1},
		{"embedded zero bytes equal", New([]byte{0, 1, 0}), New([]byte{0, 1, 0}), 0},
		{"embedded zero bytes different", New([]byte{0, 1, 0}), New([]byte{0, 1, 1}), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.expected {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestBlobHashDeterministicAndPure(t *testing.T) {
	b := New([]byte("the-key"))
	h1 := Hash(b)
	h2 := Hash(b)
	if h1 != h2 {
		t.Errorf("Hash must be pure: got %d then %d", h1, h2)
	}
	if string(b.Bytes()) != "the-key" {
		t.Errorf("Hash must not mutate the blob's content")
	}
}

func TestBlobHashDiffersOnDifferentContent(t *testing.T) {
	h1 := Hash(New([]byte("a")))
	h2 := Hash(New([]byte("b")))
	if h1 == h2 {
		t.Errorf("expected different hashes for different content")
	}
}

func TestKeyCreateAndCompare(t *testing.T) {
	k1 := NewKey(New([]byte("same")))
	k2 := NewKey(New([]byte("same")))
	k3 := NewKey(New([]byte("different")))

	if CompareKeys(k1, k2) != 0 {
		t.Errorf("expected equal keys to compare equal")
	}
	if CompareKeys(k1, k3) == 0 {
		t.Errorf("expected different keys to compare unequal")
	}
	if k1.Hash() != Hash(k1.Blob()) {
		t.Errorf("key hash should be cached blob hash")
	}
}

func TestKeyDisposeReleasesBlob(t *testing.T) {
	b := New([]byte("owned"))
	k := NewKey(b)
	k.Dispose()
	if b.Refcount() != 0 {
		t.Errorf("expected blob refcount 0 after key dispose, got %d", b.Refcount())
	}
}
