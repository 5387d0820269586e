package execution

import (
	"minirel/buffer"
	"minirel/storage"
	"minirel/transaction"
	"minirel/types"
)

// Delete removes every tuple its child yields, locating each through
// its record id, and reports the affected-row count as a single
// one-field tuple.
type Delete struct {
	tid   transaction.TxnID
	child OpIterator
	pool  *buffer.Pool

	open bool
	done bool
}

func NewDelete(tid transaction.TxnID, child OpIterator, pool *buffer.Pool) *Delete {
	return &Delete{tid: tid, child: child, pool: pool}
}

func (op *Delete) Open() error {
	if err := op.child.Open(); err != nil {
		return err
	}
	op.open = true
	op.done = false
	return nil
}

func (op *Delete) HasNext() (bool, error) {
	if !op.open {
		return false, storage.ErrNotOpen
	}
	return !op.done, nil
}

func (op *Delete) Next() (*storage.Tuple, error) {
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
		if err := op.pool.DeleteTuple(op.tid, t); err != nil {
			return nil, err
		}
		count++
	}

	op.done = true
	return storage.NewTuple(countDesc, []types.Field{types.NewIntField(int32(count))}), nil
}

func (op *Delete) Rewind() error {
	if err := op.child.Rewind(); err != nil {
		return err
	}
	op.done = false
	return nil
}

func (op *Delete) Close() {
	op.child.Close()
	op.open = false
}

func (op *Delete) TupleDesc() *storage.TupleDesc {
	return countDesc
}
