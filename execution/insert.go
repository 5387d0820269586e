package execution

import (
	"fmt"

	"minirel/buffer"
	"minirel/catalog"
	"minirel/storage"
	"minirel/transaction"
	"minirel/types"
)

// Insert drains its child into the named table through the buffer
// pool and yields a single one-field tuple holding the number of rows
// inserted. A second fetch yields nothing.
type Insert struct {
	tid     transaction.TxnID
	child   OpIterator
	tableID int
	pool    *buffer.Pool

	open bool
	done bool
}

var countDesc = storage.NewTupleDesc([]storage.TDItem{{Type: types.IntType, Name: "count"}})

func NewInsert(tid transaction.TxnID, child OpIterator, tableID int, pool *buffer.Pool, ctg *catalog.Catalog) (*Insert, error) {
	tableDesc, err := ctg.TupleDesc(tableID)
	if err != nil {
		return nil, err
	}
	if !child.TupleDesc().Equals(tableDesc) {
		return nil, fmt.Errorf("insert into table %d: %w", tableID, storage.ErrSchemaMismatch)
	}
	return &Insert{tid: tid, child: child, tableID: tableID, pool: pool}, nil
}

func (op *Insert) Open() error {
	if err := op.child.Open(); err != nil {
		return err
	}
	op.open = true
	op.done = false
	return nil
}

func (op *Insert) HasNext() (bool, error) {
	if !op.open {
		return false, storage.ErrNotOpen
	}
	return !op.done, nil
}

func (op *Insert) Next() (*storage.Tuple, error) {
	if !op.open {
		return nil, storage.ErrNotOpen
	}
	if op.done {
		return nil, storage.ErrNoSuchElement
	}

	count := 0
	for {
		ok, err := op.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		t, err := op.child.Next()
		if err != nil {
			return nil, err
		}
		if err := op.pool.InsertTuple(op.tid, op.tableID, t); err != nil {
			return nil, err
		}
		count++
	}

	op.done = true
	return storage.NewTuple(countDesc, []types.Field{types.NewIntField(int32(count))}), nil
}

func (op *Insert) Rewind() error {
	if err := op.child.Rewind(); err != nil {
		return err
	}
	op.done = false
	return nil
}

func (op *Insert) Close() {
	op.child.Close()
	op.open = false
}

func (op *Insert) TupleDesc() *storage.TupleDesc {
	return countDesc
}
