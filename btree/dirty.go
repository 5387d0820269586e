package btree

import (
	"sync"

	"minirel/transaction"
)

// dirtyState tracks which transaction last dirtied a page. Embedded by
// every b+ tree page type.
type dirtyState struct {
	mu      sync.Mutex
	dirtier *transaction.TxnID
}

func (d *dirtyState) Dirtier() *transaction.TxnID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirtier
}

func (d *dirtyState) MarkDirty(dirty bool, tid transaction.TxnID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dirty {
		t := tid
		d.dirtier = &t
	} else {
		d.dirtier = nil
	}
}
