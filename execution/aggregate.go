package execution

import (
	"minirel/storage"
	"minirel/types"
)

// Aggregate computes one aggregate over its child, optionally grouped.
// The child is drained on Open; results then stream from the
// aggregator's iterator. An empty ungrouped input yields no rows: the
// value of MIN or MAX over nothing is undefined, so nothing is
// reported.
type Aggregate struct {
	child   OpIterator
	aField  int
	gbField int
	op      AggOp

	results OpIterator
}

func NewAggregate(child OpIterator, aField, gbField int, op AggOp) (*Aggregate, error) {
	return &Aggregate{child: child, aField: aField, gbField: gbField, op: op}, nil
}

func (op *Aggregate) newAggregator() (Aggregator, error) {
	var gbType types.Type
	if op.gbField != NoGrouping {
		gbType = op.child.TupleDesc().FieldType(op.gbField)
	}

	if op.child.TupleDesc().FieldType(op.aField) == types.StringType {
		return NewStringAggregator(op.gbField, gbType, op.aField, op.op)
	}
	return NewIntAggregator(op.gbField, gbType, op.aField, op.op), nil
}

func (op *Aggregate) Open() error {
	agg, err := op.newAggregator()
	if err != nil {
		return err
	}

	if err := op.child.Open(); err != nil {
		return err
	}
	defer op.child.Close()
	for {
		ok, err := op.child.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t, err := op.child.Next()
		if err != nil {
			return err
		}
		agg.MergeTupleIntoGroup(t)
	}

	op.results = agg.Iterator()
	return op.results.Open()
}

func (op *Aggregate) HasNext() (bool, error) {
	if op.results == nil {
		return false, storage.ErrNotOpen
	}
	return op.results.HasNext()
}

func (op *Aggregate) Next() (*storage.Tuple, error) {
	if op.results == nil {
		return nil, storage.ErrNotOpen
	}
	return op.results.Next()
}

func (op *Aggregate) Rewind() error {
	if op.results == nil {
		return storage.ErrNotOpen
	}
	return op.results.Rewind()
}

func (op *Aggregate) Close() {
	if op.results != nil {
		op.results.Close()
		op.results = nil
	}
}

// TupleDesc describes the result rows: (groupValue, aggValue) when
// grouped, a single aggValue otherwise.
func (op *Aggregate) TupleDesc() *storage.TupleDesc {
	if op.gbField == NoGrouping {
		return storage.NewTupleDesc([]storage.TDItem{{Type: types.IntType, Name: "aggValue"}})
	}
	return storage.NewTupleDesc([]storage.TDItem{
		{Type: op.child.TupleDesc().FieldType(op.gbField), Name: "groupValue"},
		{Type: types.IntType, Name: "aggValue"},
	})
}
