package execution

import (
	"fmt"

	"minirel/storage"
	"minirel/types"
)

// AggOp enumerates the supported aggregate operators.
type AggOp int

const (
	Count AggOp = iota
	Sum
	Avg
	Min
	Max
)

func (op AggOp) String() string {
	switch op {
	case Count:
		return "COUNT"
	case Sum:
		return "SUM"
	case Avg:
		return "AVG"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	default:
		return "?"
	}
}

// NoGrouping marks an aggregation without a group-by field.
const NoGrouping = -1

// Aggregator accumulates tuples one at a time and then serves the
// per-group results as an iterator.
type Aggregator interface {
	MergeTupleIntoGroup(t *storage.Tuple)
	Iterator() OpIterator
}

// groupKey is the comparable form of a grouping field.
type groupKey struct {
	intVal int32
	strVal string
}

func keyOf(f types.Field) groupKey {
	switch v := f.(type) {
	case types.IntField:
		return groupKey{intVal: v.Value}
	case types.StringField:
		return groupKey{strVal: v.Value}
	default:
		panic(fmt.Sprintf("unsupported group field %T", f))
	}
}

// IntAggregator aggregates an integer field with COUNT, SUM, AVG, MIN
// or MAX, optionally grouped by another field.
type IntAggregator struct {
	gbField   int
	gbType    types.Type
	aField    int
	op        AggOp
	values    map[groupKey]int32
	counts    map[groupKey]int32
	groupVals map[groupKey]types.Field
	order     []groupKey
}

func NewIntAggregator(gbField int, gbType types.Type, aField int, op AggOp) *IntAggregator {
	return &IntAggregator{
		gbField:   gbField,
		gbType:    gbType,
		aField:    aField,
		op:        op,
		values:    map[groupKey]int32{},
		counts:    map[groupKey]int32{},
		groupVals: map[groupKey]types.Field{},
	}
}

func (a *IntAggregator) MergeTupleIntoGroup(t *storage.Tuple) {
	var key groupKey
	if a.gbField != NoGrouping {
		gb := t.Field(a.gbField)
		key = keyOf(gb)
		if _, ok := a.groupVals[key]; !ok {
			a.groupVals[key] = gb
			a.order = append(a.order, key)
		}
	} else if a.counts[key] == 0 {
		a.order = append(a.order, key)
	}

	v := t.Field(a.aField).(types.IntField).Value
	count := a.counts[key]
	if count == 0 {
		a.values[key] = v
	} else {
		old := a.values[key]
		switch a.op {
		case Sum, Avg, Count:
			a.values[key] = old + v
		case Min:
			if v < old {
				a.values[key] = v
			}
		case Max:
			if v > old {
				a.values[key] = v
			}
		}
	}
	a.counts[key] = count + 1
}

func (a *IntAggregator) result(key groupKey) int32 {
	switch a.op {
	case Count:
		return a.counts[key]
	case Avg:
		return a.values[key] / a.counts[key]
	default:
		return a.values[key]
	}
}

func (a *IntAggregator) Iterator() OpIterator {
	if a.gbField == NoGrouping {
		desc := storage.NewTupleDesc([]storage.TDItem{{Type: types.IntType, Name: "aggValue"}})
		var tuples []*storage.Tuple
		for _, key := range a.order {
			tuples = append(tuples, storage.NewTuple(desc, []types.Field{types.NewIntField(a.result(key))}))
		}
		return NewTupleIterator(desc, tuples)
	}

	desc := storage.NewTupleDesc([]storage.TDItem{
		{Type: a.gbType, Name: "groupValue"},
		{Type: types.IntType, Name: "aggValue"},
	})
	var tuples []*storage.Tuple
	for _, key := range a.order {
		tuples = append(tuples, storage.NewTuple(desc, []types.Field{
			a.groupVals[key],
			types.NewIntField(a.result(key)),
		}))
	}
	return NewTupleIterator(desc, tuples)
}

// StringAggregator aggregates a string field; only COUNT is defined.
type StringAggregator struct {
	gbField   int
	gbType    types.Type
	counts    map[groupKey]int32
	groupVals map[groupKey]types.Field
	order     []groupKey
}

func NewStringAggregator(gbField int, gbType types.Type, aField int, op AggOp) (*StringAggregator, error) {
	if op != Count {
		return nil, fmt.Errorf("string aggregation supports only COUNT, got %v", op)
	}
	return &StringAggregator{
		gbField:   gbField,
		gbType:    gbType,
		counts:    map[groupKey]int32{},
		groupVals: map[groupKey]types.Field{},
	}, nil
}

func (a *StringAggregator) MergeTupleIntoGroup(t *storage.Tuple) {
	var key groupKey
	if a.gbField != NoGrouping {
		gb := t.Field(a.gbField)
		key = keyOf(gb)
		if _, ok := a.groupVals[key]; !ok {
			a.groupVals[key] = gb
			a.order = append(a.order, key)
		}
	} else if a.counts[key] == 0 {
		a.order = append(a.order, key)
	}
	a.counts[key]++
}

func (a *StringAggregator) Iterator() OpIterator {
	if a.gbField == NoGrouping {
		desc := storage.NewTupleDesc([]storage.TDItem{{Type: types.IntType, Name: "aggValue"}})
		var tuples []*storage.Tuple
		for _, key := range a.order {
			tuples = append(tuples, storage.NewTuple(desc, []types.Field{types.NewIntField(a.counts[key])}))
		}
		return NewTupleIterator(desc, tuples)
	}

	desc := storage.NewTupleDesc([]storage.TDItem{
		{Type: a.gbType, Name: "groupValue"},
		{Type: types.IntType, Name: "aggValue"},
	})
	var tuples []*storage.Tuple
	for _, key := range a.order {
		tuples = append(tuples, storage.NewTuple(desc, []types.Field{
			a.groupVals[key],
			types.NewIntField(a.counts[key]),
		}))
	}
	return NewTupleIterator(desc, tuples)
}
