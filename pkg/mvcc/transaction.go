// Package mvcc implements the transaction manager and versioned map that
// provide multi-version concurrency control with cascade-abort dependency
// tracking.
package mvcc

import (
	"sync"

	"xacto/pkg/xdebug"
	"xacto/pkg/xmetrics"
)

// Status is the terminal-or-not state of a transaction.
type Status int32

const (
	StatusPending Status = iota
	StatusCommitted
	StatusAborted
)

// String renders a Status the way the wire protocol's REPLY packets and the
// debug logs refer to it.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusCommitted:
		return "COMMITTED"
	case StatusAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Transaction is a reference-counted record tracking one client's sequence
// of operations. Status transitions are monotonic and one-shot: PENDING ->
// COMMITTED or PENDING -> ABORTED.
type Transaction struct {
	mgr *Manager
	id  uint64

	mu      sync.Mutex
	cond    *sync.Cond
	status  Status
	refcnt  int32
	depends map[uint64]*Transaction // transactions this one depends on (strong refs)
	// dependents holds weak back-edges: transactions that depend on this one
	// and must be notified when it finalizes. Weak because depends already
	// holds the strong direction; a back-edge plus a forward ref would form
	// a reference cycle.
	dependents []*Transaction
	waitcnt    int32
}

func newTransaction(mgr *Manager, id uint64) *Transaction {
	t := &Transaction{
		mgr:     mgr,
		id:      id,
		status:  StatusPending,
		refcnt:  1,
		depends: make(map[uint64]*Transaction),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// ID returns the transaction's monotonically assigned id.
func (t *Transaction) ID() uint64 {
	return t.id
}

// Status returns the transaction's current status.
func (t *Transaction) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Refcount reports the current reference count, for tests and invariants.
func (t *Transaction) Refcount() int32 {
	return loadRefcnt(t)
}

// WaitCount reports the number of not-yet-finalized dependencies, for tests.
func (t *Transaction) WaitCount() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waitcnt
}

// AddDependency records that t depends on other:
//   - if other is already COMMITTED, no-op;
//   - if other is ABORTED, t is marked ABORTED and its completion signal raised;
//   - if other is PENDING, other is added to t.depends (with a reference) and
//     t.waitcnt is incremented; other is told to notify t when it finalizes.
//
// Duplicate calls for the same (t, other) pair are idempotent.
func (t *Transaction) AddDependency(other *Transaction) {
	if t == other {
		return
	}

	lo, hi := t, other
	if other.id < t.id {
		lo, hi = other, t
	}

	lo.mu.Lock()
	hi.mu.Lock()
	otherStatus := other.status
	added := false
	if otherStatus == StatusPending {
		if _, already := t.depends[other.id]; !already {
			other.refAlreadyLocked()
			t.depends[other.id] = other
			t.waitcnt++
			other.dependents = append(other.dependents, t)
			added = true
		}
	}
	hi.mu.Unlock()
	lo.mu.Unlock()

	_ = added
	if otherStatus == StatusAborted {
		xmetrics.CascadeAborts.Inc()
		t.finalize(StatusAborted)
	}
}

// Commit implements trans_commit: block until every dependency has
// finalized, then commit unless one of them aborted, in which case the
// cascade-abort rule applies and this transaction aborts too.
func (t *Transaction) Commit() Status {
	timer := xmetrics.NewTimer()
	defer timer.ObserveDuration(xmetrics.CommitLatency)

	t.mu.Lock()
	for t.waitcnt > 0 && t.status == StatusPending {
		t.cond.Wait()
	}
	if t.status != StatusPending {
		final := t.status
		t.mu.Unlock()
		return final
	}
	deps := make([]*Transaction, 0, len(t.depends))
	for _, d := range t.depends {
		deps = append(deps, d)
	}
	t.mu.Unlock()

	for _, d := range deps {
		if d.Status() == StatusAborted {
			xmetrics.CascadeAborts.Inc()
			return t.finalize(StatusAborted)
		}
	}
	return t.finalize(StatusCommitted)
}

// Abort may be called from any thread at any time. It never blocks.
func (t *Transaction) Abort() Status {
	return t.finalize(StatusAborted)
}

// finalize performs the one-shot PENDING -> terminal transition, raises the
// completion signal, and notifies dependents so they can re-evaluate their
// own waitcnt. It locks at most one transaction at a time, so it cannot
// participate in a lock-order cycle with AddDependency's paired lock.
func (t *Transaction) finalize(newStatus Status) Status {
	xdebug.Assert(newStatus != StatusPending, "finalize called with non-terminal status on txn %d", t.id)

	t.mu.Lock()
	if t.status != StatusPending {
		final := t.status
		t.mu.Unlock()
		return final
	}
	t.status = newStatus
	watchers := t.dependents
	t.dependents = nil
	t.cond.Broadcast()
	t.mu.Unlock()

	for _, w := range watchers {
		w.mu.Lock()
		if w.waitcnt > 0 {
			w.waitcnt--
		}
		w.cond.Broadcast()
		w.mu.Unlock()
	}
	return newStatus
}
