package mvcc

import "sync/atomic"

// Ref increments t's refcount and returns t, for chaining. Mirrors
// blob.Blob's Ref/Unref discipline: a transaction stays alive while any
// version, store operation, or dependent transaction holds a reference.
func (t *Transaction) Ref() *Transaction {
	atomic.AddInt32(&t.refcnt, 1)
	return t
}

// refAlreadyLocked increments the refcount from a context that already
// holds t.mu (AddDependency's paired lock). It performs the same atomic add
// as Ref; the refcount is never guarded by t.mu.
func (t *Transaction) refAlreadyLocked() {
	atomic.AddInt32(&t.refcnt, 1)
}

// Unref decrements t's refcount. Reaching zero releases the references t
// holds on its own dependencies and forgets t from its manager.
func (t *Transaction) Unref() int32 {
	n := atomic.AddInt32(&t.refcnt, -1)
	if n == 0 {
		t.mu.Lock()
		deps := t.depends
		t.depends = nil
		t.mu.Unlock()

		for _, d := range deps {
			d.Unref()
		}
		if t.mgr != nil {
			t.mgr.forget(t.id)
		}
	}
	return n
}

func loadRefcnt(t *Transaction) int32 {
	return atomic.LoadInt32(&t.refcnt)
}
