package mvcc

import (
	"sync"

	"xacto/pkg/blob"
	"xacto/pkg/xdebug"
	"xacto/pkg/xmetrics"
)

// NumBuckets is the fixed hash bucket count. Dynamic rehashing is an
// explicit non-goal; the bucket count is a compile-time constant.
const NumBuckets = 64

type entry struct {
	key  *blob.Key
	head *Version // newest (highest creator id) first
}

type mapBucket struct {
	mu      sync.Mutex
	entries []*entry
}

func (b *mapBucket) find(k *blob.Key) *entry {
	for _, e := range b.entries {
		if blob.CompareKeys(e.key, k) == 0 {
			return e
		}
	}
	return nil
}

// Store is the versioned map: a fixed array of independently-locked
// buckets, each a chain of (key, version-chain) entries.
type Store struct {
	buckets [NumBuckets]*mapBucket
	mgr     *Manager
}

// NewStore creates a store backed by the given transaction manager,
// equivalent to store_init().
func NewStore(mgr *Manager) *Store {
	s := &Store{mgr: mgr}
	for i := range s.buckets {
		s.buckets[i] = &mapBucket{}
	}
	return s
}

// Close releases store-held resources. There is nothing to flush: this is
// a purely in-memory store with no durability layer. Kept for lifecycle
// symmetry with store_fini().
func (s *Store) Close() {}

func (s *Store) bucketFor(k *blob.Key) *mapBucket {
	return s.buckets[int(k.Hash()%NumBuckets)]
}

// Put implements store_put: installs a new version of k written by t,
// running GC and write-write conflict detection first. It transfers
// ownership of one reference each on k and v. It returns t's resulting
// status: ABORTED if a newer transaction already committed a version of k
// (a write or a Get placeholder), PENDING otherwise.
func (s *Store) Put(t *Transaction, k *blob.Key, v *blob.Blob) Status {
	bk := s.bucketFor(k)
	bk.mu.Lock()
	defer bk.mu.Unlock()

	e := bk.find(k)
	if e != nil {
		gcChain(e)
		k.Dispose() // entry already owns an equal key
	} else {
		e = &entry{key: k}
		bk.entries = append(bk.entries, e)
		xdebug.Assert(bk.find(k) == e, "duplicate bucket entry created for key %v", k)
	}

	var sameCreator *Version
	for w := e.head; w != nil; w = w.next {
		wid := w.creator.ID()
		if wid == t.ID() {
			sameCreator = w
		}
		if wid > t.ID() && w.creator.Status() == StatusCommitted {
			// t observed a stale snapshot: a newer transaction already
			// committed a version of k.
			return t.finalize(StatusAborted)
		}
	}

	if sameCreator != nil {
		sameCreator.val.Unref()
		sameCreator.val = v
		return t.Status()
	}

	nv := newVersion(t, v, false)
	insertVersion(e, nv, t)
	cascadeDependencies(e, nv, t)
	return t.Status()
}

// Get implements store_get: returns the value for k visible to t, along
// with t's resulting status. A non-nil returned blob carries a reference
// taken for the caller, which the caller must Unref when done with it.
func (s *Store) Get(t *Transaction, k *blob.Key) (*blob.Blob, Status) {
	bk := s.bucketFor(k)
	bk.mu.Lock()
	defer bk.mu.Unlock()

	e := bk.find(k)
	if e == nil {
		// First reader of a never-written key: record a PENDING version of
		// t with the null sentinel, so a later writer discovers and depends
		// on t just as it would for any other PENDING chain member.
		e = &entry{key: k}
		e.head = newVersion(t, nil, true)
		bk.entries = append(bk.entries, e)
		return nil, t.Status()
	}
	k.Dispose()

	gcChain(e)

	for w := e.head; w != nil; w = w.next {
		if w.creator.ID() == t.ID() {
			return w.val.Ref(), t.Status()
		}
	}

	var visible *Version
	for w := e.head; w != nil; w = w.next {
		if w.creator.ID() < t.ID() && w.creator.Status() == StatusCommitted {
			visible = w
			break
		}
	}

	var chainVal, retVal *blob.Blob
	if visible != nil {
		chainVal = visible.val.Ref()
		retVal = visible.val.Ref()
	}

	nv := newVersion(t, chainVal, true)
	insertVersion(e, nv, t)
	cascadeDependencies(e, nv, t)

	return retVal, t.Status()
}

// insertVersion places nv into e's chain at the position dictated by its
// creator's id (newest first), preserving the invariant that the chain is
// ordered by decreasing creator transaction id.
func insertVersion(e *entry, nv *Version, t *Transaction) {
	var prev *Version
	cur := e.head
	for cur != nil && cur.creator.ID() > t.ID() {
		prev = cur
		cur = cur.next
	}
	nv.prev = prev
	nv.next = cur
	if cur != nil {
		cur.prev = nv
	}
	if prev != nil {
		prev.next = nv
	} else {
		e.head = nv
	}
}

// cascadeDependencies links nv's creator t into the dependency graph:
//
//   - every higher-id version above nv (a transaction that already has a
//     version on the chain ahead of t, still unresolved) now has to wait
//     and see whether t commits or aborts before it can itself finalize,
//     per the write-write conflict rule, so it depends on t;
//   - if nv displaced an older, still-PENDING read placeholder down the
//     chain (t landed above a transaction that only observed this key via
//     Get), t depends on that reader in turn: the reader's snapshot isn't
//     settled yet, so t must wait to learn its fate before committing.
//     A Put-installed version below nv never gets this treatment — two
//     concurrent writers to the same key are reconciled opportunistically
//     by the stale-snapshot check in Put/Get, not by blocking on one
//     another.
func cascadeDependencies(e *entry, nv *Version, t *Transaction) {
	for w := e.head; w != nil && w != nv; w = w.next {
		if w.creator.Status() == StatusPending {
			w.creator.AddDependency(t)
		}
	}
	for w := nv.next; w != nil; w = w.next {
		if w.read && w.creator.Status() == StatusPending {
			t.AddDependency(w.creator)
		}
	}
}

// gcChain walks e's chain newest-first, dropping versions whose creator has
// aborted and all but the newest two committed versions (the transient
// window that lets in-flight readers of the second-newest finish). PENDING
// versions are never removed.
func gcChain(e *entry) {
	xmetrics.GCPasses.Inc()

	var newHead, newTail *Version
	committed := 0
	length := 0

	cur := e.head
	for cur != nil {
		next := cur.next
		keep := true
		length++

		switch cur.creator.Status() {
		case StatusAborted:
			keep = false
		case StatusCommitted:
			committed++
			if committed > 2 {
				keep = false
			}
		}

		if keep {
			cur.prev = newTail
			cur.next = nil
			if newTail != nil {
				newTail.next = cur
			} else {
				newHead = cur
			}
			newTail = cur
		} else {
			cur.dispose()
		}

		cur = next
	}

	e.head = newHead
	xmetrics.ChainLength.Observe(float64(length))
}
