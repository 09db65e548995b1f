package mvcc

import (
	"strconv"
	"sync"
	"testing"

	"xacto/pkg/blob"
)

// S6: bank audit. 20 accounts start at balance 100. 20 goroutines each run
// transfersPerWorker transfer transactions of 1 from account worker to
// account worker+1 (mod 20), retrying each on abort up to
// maxTransferRetries times. After all finish, the sum of every account's
// balance must still equal the initial total: no transaction is ever allowed
// to observe or leave behind a partial transfer.
func TestBankAuditConservesTotalBalance(t *testing.T) {
	const numAccounts = 20
	const startBalance = 100
	const numWorkers = 20
	const transfersPerWorker = 10
	const maxTransferRetries = 10

	mgr := NewManager()
	store := NewStore(mgr)

	accountKey := func(i int) *blob.Key {
		return blob.NewKey(blob.New([]byte("acct:" + strconv.Itoa(i))))
	}

	seed := mgr.Create()
	for i := 0; i < numAccounts; i++ {
		store.Put(seed, accountKey(i), blob.New([]byte(strconv.Itoa(startBalance))))
	}
	if got := seed.Commit(); got != StatusCommitted {
		t.Fatalf("seed transaction failed to commit: %v", got)
	}

	readBalance := func(tx *Transaction, acct int) (int, Status) {
		v, status := store.Get(tx, accountKey(acct))
		if status != StatusPending || v == nil {
			return 0, status
		}
		n, err := strconv.Atoi(string(v.Bytes()))
		v.Unref()
		if err != nil {
			t.Fatalf("corrupt balance for account %d: %v", acct, err)
		}
		return n, status
	}

	transfer := func(from, to, amount int) {
		for attempt := 0; attempt < maxTransferRetries; attempt++ {
			tx := mgr.Create()

			fromBal, status := readBalance(tx, from)
			if status != StatusPending {
				tx.Unref()
				continue
			}
			toBal, status := readBalance(tx, to)
			if status != StatusPending {
				tx.Unref()
				continue
			}
			if fromBal < amount {
				// Walking away from a still-PENDING transaction without
				// aborting it would leave a dangling chain entry that could
				// block a later writer forever.
				tx.Abort()
				tx.Unref()
				return // insufficient funds, not an error: just stop
			}

			status = store.Put(tx, accountKey(from), blob.New([]byte(strconv.Itoa(fromBal-amount))))
			if status != StatusPending {
				tx.Unref()
				continue
			}
			status = store.Put(tx, accountKey(to), blob.New([]byte(strconv.Itoa(toBal+amount))))
			if status != StatusPending {
				tx.Unref()
				continue
			}

			final := tx.Commit()
			tx.Unref()
			if final == StatusCommitted {
				return
			}
			// ABORTED: retry the whole transfer.
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			from := worker % numAccounts
			to := (worker + 1) % numAccounts
			for i := 0; i < transfersPerWorker; i++ {
				transfer(from, to, 1)
			}
		}(w)
	}
	wg.Wait()

	audit := mgr.Create()
	total := 0
	for i := 0; i < numAccounts; i++ {
		bal, status := readBalance(audit, i)
		if status != StatusPending {
			t.Fatalf("audit read for account %d did not stay PENDING: %v", i, status)
		}
		if bal < 0 {
			t.Errorf("account %d went negative: %d", i, bal)
		}
		total += bal
	}
	audit.Unref()

	want := numAccounts * startBalance
	if total != want {
		t.Errorf("balance not conserved: got total %d, want %d", total, want)
	}
}
