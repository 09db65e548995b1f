package mvcc

import (
	"sync"
	"sync/atomic"
)

// Manager is the transaction manager (trans_init/trans_create's home): a
// monotonic id counter plus a lookup table of live transactions, modeled as
// a configurable service object rather than a package-level singleton.
type Manager struct {
	nextID uint64 // atomic

	mu  sync.Mutex
	all map[uint64]*Transaction
}

// NewManager creates a transaction manager with its id counter reset to 1,
// equivalent to trans_init().
func NewManager() *Manager {
	return &Manager{
		nextID: 0,
		all:    make(map[uint64]*Transaction),
	}
}

// Create starts a new PENDING transaction with refcount 1 and the next
// monotonically increasing id, equivalent to trans_create().
func (m *Manager) Create() *Transaction {
	id := atomic.AddUint64(&m.nextID, 1)
	t := newTransaction(m, id)

	m.mu.Lock()
	m.all[id] = t
	m.mu.Unlock()

	return t
}

// Lookup returns the live transaction with the given id, or nil.
func (m *Manager) Lookup(id uint64) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.all[id]
}

// ActiveCount reports how many transactions the manager is still tracking
// (i.e. have not yet reached refcount 0), for tests and metrics.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.all)
}

func (m *Manager) forget(id uint64) {
	m.mu.Lock()
	delete(m.all, id)
	m.mu.Unlock()
}
