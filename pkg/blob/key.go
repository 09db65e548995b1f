package blob

// Key pairs a blob with its cached hash, computed once at creation. A key
// exclusively owns one blob reference; disposing the key releases it.
type Key struct {
	blob *Blob
	hash uint32
}

// NewKey takes ownership of one reference to b and caches its hash.
func NewKey(b *Blob) *Key {
	return &Key{blob: b, hash: Hash(b)}
}

// Hash returns the key's cached hash.
func (k *Key) Hash() uint32 {
	return k.hash
}

// Blob returns the blob backing this key. The returned blob is borrowed;
// callers must Ref it to keep a copy alive past the key's lifetime.
func (k *Key) Blob() *Blob {
	return k.blob
}

// Dispose releases the key's owned blob reference.
func (k *Key) Dispose() {
	k.blob.Unref()
}

// CompareKeys returns 0 if k1 and k2 have the same hash and equal blob
// content, nonzero otherwise.
func CompareKeys(k1, k2 *Key) int {
	if k1.hash != k2.hash {
		return 1
	}
	return Compare(k1.blob, k2.blob)
}
