package storage

import "minirel/transaction"

// DbFile is the on-disk representation of a table or index. A DbFile
// owns its file's bytes but holds no page cache; all resident pages
// live in the buffer pool.
type DbFile interface {
	// ID returns the table id, derived from the canonical file path.
	ID() int

	TupleDesc() *TupleDesc

	// ReadPage fetches a page directly from disk, bypassing any cache.
	ReadPage(pid PageID) (Page, error)

	// WritePage persists a page at its offset.
	WritePage(p Page) error

	// InsertTuple adds t to the file under tid and returns every page
	// dirtied by the operation.
	InsertTuple(tid transaction.TxnID, t *Tuple) ([]Page, error)

	// DeleteTuple removes t, located by its record id, and returns
	// every page dirtied by the operation.
	DeleteTuple(tid transaction.TxnID, t *Tuple) ([]Page, error)

	// Iterator returns a scan over every tuple in the file.
	Iterator(tid transaction.TxnID) DbFileIterator
}

// DbFileIterator is the uniform pull-model tuple stream. Iterators are
// single-threaded and restartable: Rewind is close-then-open, with
// fresh lock acquisitions on reopen.
//
// Next after HasNext has returned false fails with ErrNoSuchElement;
// HasNext and Next before Open or after Close fail with ErrNotOpen.
// Rewind on a closed iterator opens it.
type DbFileIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*Tuple, error)
	Rewind() error
	Close()
}
