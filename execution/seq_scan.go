package execution

import (
	"minirel/catalog"
	"minirel/storage"
	"minirel/transaction"
)

// SeqScan reads every tuple of a table in storage order through the
// table file's iterator, under read locks of the given transaction.
type SeqScan struct {
	tid     transaction.TxnID
	tableID int
	ctg     *catalog.Catalog

	file storage.DbFile
	it   storage.DbFileIterator
}

func NewSeqScan(tid transaction.TxnID, tableID int, ctg *catalog.Catalog) (*SeqScan, error) {
	file, err := ctg.DatabaseFile(tableID)
	if err != nil {
		return nil, err
	}
	return &SeqScan{tid: tid, tableID: tableID, ctg: ctg, file: file}, nil
}

func (s *SeqScan) Open() error {
	s.it = s.file.Iterator(s.tid)
	return s.it.Open()
}

func (s *SeqScan) HasNext() (bool, error) {
	if s.it == nil {
		return false, storage.ErrNotOpen
	}
	return s.it.HasNext()
}

func (s *SeqScan) Next() (*storage.Tuple, error) {
	if s.it == nil {
		return nil, storage.ErrNotOpen
	}
	return s.it.Next()
}

func (s *SeqScan) Rewind() error {
	if s.it == nil {
		return storage.ErrNotOpen
	}
	return s.it.Rewind()
}

func (s *SeqScan) Close() {
	if s.it != nil {
		s.it.Close()
		s.it = nil
	}
}

func (s *SeqScan) TupleDesc() *storage.TupleDesc {
	return s.file.TupleDesc()
}
