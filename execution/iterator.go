package execution

import "minirel/storage"

// OpIterator is the contract every relational operator exposes: the
// pull-model tuple stream plus the schema of the tuples it yields.
type OpIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*storage.Tuple, error)
	Rewind() error
	Close()
	TupleDesc() *storage.TupleDesc
}

// TupleIterator replays a materialized tuple list. Aggregation results
// and test fixtures are served through it.
type TupleIterator struct {
	desc   *storage.TupleDesc
	tuples []*storage.Tuple

	open bool
	pos  int
}

func NewTupleIterator(desc *storage.TupleDesc, tuples []*storage.Tuple) *TupleIterator {
	return &TupleIterator{desc: desc, tuples: tuples}
}

func (it *TupleIterator) Open() error {
	it.open = true
	it.pos = 0
	return nil
}

func (it *TupleIterator) HasNext() (bool, error) {
	if !it.open {
		return false, storage.ErrNotOpen
	}
	return it.pos < len(it.tuples), nil
}

func (it *TupleIterator) Next() (*storage.Tuple, error) {
	if !it.open {
		return nil, storage.ErrNotOpen
	}
	if it.pos >= len(it.tuples) {
		return nil, storage.ErrNoSuchElement
	}
	t := it.tuples[it.pos]
	it.pos++
	return t, nil
}

func (it *TupleIterator) Rewind() error {
	it.Close()
	return it.Open()
}

func (it *TupleIterator) Close() {
	it.open = false
}

func (it *TupleIterator) TupleDesc() *storage.TupleDesc {
	return it.desc
}
