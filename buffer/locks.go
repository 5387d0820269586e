package buffer

import (
	"errors"
	"time"

	"minirel/storage"
	"minirel/transaction"
)

// ErrTransactionAborted reports a lock wait that exceeded the deadlock
// timeout. The caller must route control to TransactionComplete with
// commit=false; a retry needs a fresh transaction id.
var ErrTransactionAborted = errors.New("transaction aborted: lock wait timed out")

const lockPollInterval = time.Millisecond

// lockTable implements strict two-phase page locking. Deadlocks are
// broken by timeout: a waiter that cannot be granted within the budget
// aborts itself, no waits-for graph is maintained.
//
// All three maps are guarded by the owning Pool's mutex, which
// acquireLock releases between polls so other transactions can make progress.
type lockTable struct {
	shared    map[storage.PageID]map[transaction.TxnID]struct{}
	exclusive map[storage.PageID]transaction.TxnID
	byTxn     map[transaction.TxnID]map[storage.PageID]struct{}
	timeout   time.Duration
}

func newLockTable(timeout time.Duration) *lockTable {
	return &lockTable{
		shared:    map[storage.PageID]map[transaction.TxnID]struct{}{},
		exclusive: map[storage.PageID]transaction.TxnID{},
		byTxn:     map[transaction.TxnID]map[storage.PageID]struct{}{},
		timeout:   timeout,
	}
}

// tryAcquire attempts to grant tid the requested lock without waiting.
// Caller holds the guard.
func (lt *lockTable) tryAcquire(tid transaction.TxnID, pid storage.PageID, perm transaction.Permissions) bool {
	holder, exclusiveHeld := lt.exclusive[pid]

	if perm == transaction.ReadOnly {
		if exclusiveHeld && holder != tid {
			return false
		}
		if exclusiveHeld {
			// The exclusive lock already implies read access.
			return true
		}
		lt.grantShared(tid, pid)
		return true
	}

	if exclusiveHeld {
		return holder == tid
	}

	// Writer must be the only holder; a sole shared holder equal to
	// tid upgrades in place.
	for other := range lt.shared[pid] {
		if other != tid {
			return false
		}
	}
	delete(lt.shared[pid], tid)
	if len(lt.shared[pid]) == 0 {
		delete(lt.shared, pid)
	}
	lt.exclusive[pid] = tid
	lt.track(tid, pid)
	return true
}

func (lt *lockTable) grantShared(tid transaction.TxnID, pid storage.PageID) {
	set, ok := lt.shared[pid]
	if !ok {
		set = map[transaction.TxnID]struct{}{}
		lt.shared[pid] = set
	}
	set[tid] = struct{}{}
	lt.track(tid, pid)
}

func (lt *lockTable) track(tid transaction.TxnID, pid storage.PageID) {
	pids, ok := lt.byTxn[tid]
	if !ok {
		pids = map[storage.PageID]struct{}{}
		lt.byTxn[tid] = pids
	}
	pids[pid] = struct{}{}
}

// release drops tid's lock on pid, whatever its strength.
// Caller holds the guard.
func (lt *lockTable) release(tid transaction.TxnID, pid storage.PageID) {
	if set, ok := lt.shared[pid]; ok {
		delete(set, tid)
		if len(set) == 0 {
			delete(lt.shared, pid)
		}
	}
	if lt.exclusive[pid] == tid {
		delete(lt.exclusive, pid)
	}
	if pids, ok := lt.byTxn[tid]; ok {
		delete(pids, pid)
		if len(pids) == 0 {
			delete(lt.byTxn, tid)
		}
	}
}

// pagesOf returns a snapshot of every page tid holds a lock on.
// Caller holds the guard.
func (lt *lockTable) pagesOf(tid transaction.TxnID) []storage.PageID {
	pids := make([]storage.PageID, 0, len(lt.byTxn[tid]))
	for pid := range lt.byTxn[tid] {
		pids = append(pids, pid)
	}
	return pids
}

// holds reports whether tid holds any lock on pid.
// Caller holds the guard.
func (lt *lockTable) holds(tid transaction.TxnID, pid storage.PageID) bool {
	if lt.exclusive[pid] == tid {
		return true
	}
	_, ok := lt.shared[pid][tid]
	return ok
}
