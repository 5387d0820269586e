package storage

import "minirel/transaction"

// PageFetcher is the slice of the buffer pool that DbFiles and
// iterators depend on: lock-then-fetch page access under a
// transaction.
type PageFetcher interface {
	GetPage(tid transaction.TxnID, pid PageID, perm transaction.Permissions) (Page, error)
}
