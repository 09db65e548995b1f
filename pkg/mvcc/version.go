package mvcc

import "xacto/pkg/blob"

// Version is one node in a key's version chain: who wrote it, what value
// was written (possibly the null sentinel), and its place in the doubly
// linked chain ordered newest-creator-first.
type Version struct {
	creator *Transaction
	val     *blob.Blob
	prev    *Version
	next    *Version
	// read marks a version installed by Get as a placeholder for a
	// transaction that observed the key rather than wrote to it. Only
	// read versions make a later writer that lands above them in the
	// chain depend back on the reader; a Put-installed version never
	// does, since write-write ordering is resolved opportunistically by
	// the stale-snapshot check instead.
	read bool
}

// newVersion allocates a version created by t holding v. It acquires a new
// reference on t; ownership of v is transferred in (the caller must not
// Unref it separately).
func newVersion(t *Transaction, v *blob.Blob, isRead bool) *Version {
	t.Ref()
	return &Version{creator: t, val: v, read: isRead}
}

// dispose releases the version's blob and transaction references.
func (v *Version) dispose() {
	v.val.Unref()
	v.creator.Unref()
}

// Creator returns the transaction that created this version.
func (v *Version) Creator() *Transaction {
	return v.creator
}

// Value returns the version's blob, borrowed from the chain. Callers that
// need to retain it past the chain's own lifetime must Ref it.
func (v *Version) Value() *blob.Blob {
	return v.val
}

// Next returns the next (older) version in the chain.
func (v *Version) Next() *Version {
	return v.next
}
