// Package blob implements an immutable, refcounted byte buffer and the key
// type that wraps it for use in the versioned store.
package blob

import "sync/atomic"

// Blob is an immutable, variable-length byte sequence shared by all holders
// through a reference count. The content is copied in at creation and never
// mutated afterward, so reads never need a lock.
//
// A nil *Blob is the "null sentinel" used for values that represent "not
// present". Ref and Unref are no-ops on a nil receiver, matching the
// reference implementation's null-sentinel handling.
type Blob struct {
	refcnt  int32
	content []byte
}

// New creates a blob owning a copy of content, with refcount 1.
func New(content []byte) *Blob {
	cp := make([]byte, len(content))
	copy(cp, content)
	return &Blob{refcnt: 1, content: cp}
}

// Ref increments the refcount and returns b, for chaining. No-op on nil.
func (b *Blob) Ref() *Blob {
	if b == nil {
		return nil
	}
	atomic.AddInt32(&b.refcnt, 1)
	return b
}

// Unref decrements the refcount. The last releaser drops the content so it
// can be collected; further use of b after Unref reaching zero is a misuse.
func (b *Blob) Unref() {
	if b == nil {
		return
	}
	if atomic.AddInt32(&b.refcnt, -1) == 0 {
		b.content = nil
	}
}

// Refcount reports the current reference count, for tests and invariants.
func (b *Blob) Refcount() int32 {
	if b == nil {
		return 0
	}
	return atomic.LoadInt32(&b.refcnt)
}

// Bytes returns the blob's content. The slice must not be mutated by the
// caller; it is shared with every other holder of the blob.
func (b *Blob) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.content
}

// Size returns the number of content bytes (0 for the null sentinel).
func (b *Blob) Size() int {
	if b == nil {
		return 0
	}
	return len(b.content)
}

// Compare returns 0 if a and b hold equal byte content, nonzero otherwise.
// Two null sentinels compare equal; a null sentinel never equals a non-null
// blob, even an empty one, since "absent" and "present but empty" are
// distinct states on the wire (see the DATA packet's null flag).
func Compare(a, b *Blob) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil || b == nil {
		return 1
	}
	if len(a.content) != len(b.content) {
		return 1
	}
	for i, c := range a.content {
		if c != b.content[i] {
			return 1
		}
	}
	return 0
}

// Hash computes a deterministic, collision-tolerant 32-bit hash of b's
// content. It is pure: it never mutates b, unlike the reference C
// implementation's blob_hash, which walked the content pointer forward and
// left it dangling for subsequent callers.
func Hash(b *Blob) uint32 {
	var h uint32
	for _, c := range b.Bytes() {
		h = (h << 5) + h + uint32(c)
	}
	return h
}
