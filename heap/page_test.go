package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minirel/common"
	"minirel/storage"
	"minirel/types"
)

func testDesc() *storage.TupleDesc {
	return storage.NewTupleDesc([]storage.TDItem{
		{Type: types.IntType, Name: "a"},
		{Type: types.StringType, Name: "b"},
	})
}

func testTuple(desc *storage.TupleDesc, i int32, s string) *storage.Tuple {
	return storage.NewTuple(desc, []types.Field{types.NewIntField(i), types.NewStringField(s)})
}

func TestSlotsPerPage(t *testing.T) {
	desc := testDesc()
	// 136 byte tuples: floor(4096*8 / (136*8 + 1)) slots
	assert.Equal(t, (common.PageSize()*8)/(desc.Size()*8+1), SlotsPerPage(desc))
}

func TestInsertSetsRecordID(t *testing.T) {
	desc := testDesc()
	page := NewEmptyPage(NewPageID(1, 0), desc)

	tp := testTuple(desc, 1, "x")
	require.NoError(t, page.InsertTuple(tp))

	require.NotNil(t, tp.RID)
	assert.Equal(t, NewPageID(1, 0), tp.RID.PID)
	assert.Equal(t, 0, tp.RID.TupleNo)
	assert.Equal(t, page.NumSlots()-1, page.NumEmptySlots())
}

func TestInsertFillsLowestSlotFirst(t *testing.T) {
	desc := testDesc()
	page := NewEmptyPage(NewPageID(1, 0), desc)

	first := testTuple(desc, 1, "x")
	second := testTuple(desc, 2, "y")
	third := testTuple(desc, 3, "z")
	require.NoError(t, page.InsertTuple(first))
	require.NoError(t, page.InsertTuple(second))

	require.NoError(t, page.DeleteTuple(first))
	require.NoError(t, page.InsertTuple(third))
	assert.Equal(t, 0, third.RID.TupleNo)
}

func TestInsertSchemaMismatch(t *testing.T) {
	page := NewEmptyPage(NewPageID(1, 0), testDesc())
	other := storage.NewTupleDescFromTypes(types.IntType)

	err := page.InsertTuple(storage.NewTuple(other, []types.Field{types.NewIntField(1)}))
	assert.ErrorIs(t, err, storage.ErrSchemaMismatch)
}

func TestInsertIntoFullPage(t *testing.T) {
	desc := testDesc()
	page := NewEmptyPage(NewPageID(1, 0), desc)

	for i := 0; i < page.NumSlots(); i++ {
		require.NoError(t, page.InsertTuple(testTuple(desc, int32(i), "v")))
	}
	assert.ErrorIs(t, page.InsertTuple(testTuple(desc, -1, "full")), ErrPageFull)
}

func TestDeleteMissingTuple(t *testing.T) {
	desc := testDesc()
	page := NewEmptyPage(NewPageID(1, 0), desc)

	// no record id at all
	err := page.DeleteTuple(testTuple(desc, 1, "x"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// record id pointing at another page
	tp := testTuple(desc, 1, "x")
	tp.RID = storage.NewRecordID(NewPageID(1, 9), 0)
	assert.ErrorIs(t, page.DeleteTuple(tp), storage.ErrNotFound)

	// empty slot on this page
	tp.RID = storage.NewRecordID(NewPageID(1, 0), 0)
	assert.ErrorIs(t, page.DeleteTuple(tp), storage.ErrNotFound)
}

func TestPageDataRoundTrip(t *testing.T) {
	desc := testDesc()
	page := NewEmptyPage(NewPageID(7, 3), desc)

	inserted := []*storage.Tuple{}
	for i := 0; i < 5; i++ {
		tp := testTuple(desc, int32(i), "val")
		require.NoError(t, page.InsertTuple(tp))
		inserted = append(inserted, tp)
	}
	require.NoError(t, page.DeleteTuple(inserted[2]))

	data, err := page.Data()
	require.NoError(t, err)
	require.Len(t, data, common.PageSize())

	decoded, err := NewPage(NewPageID(7, 3), desc, data)
	require.NoError(t, err)

	assert.Equal(t, page.NumEmptySlots(), decoded.NumEmptySlots())
	got := decoded.Tuples()
	require.Len(t, got, 4)
	for i, tp := range got {
		assert.True(t, tp.Equals(page.Tuples()[i]))
		assert.Equal(t, page.Tuples()[i].RID.TupleNo, tp.RID.TupleNo)
	}
}

func TestIterationInSlotOrder(t *testing.T) {
	desc := testDesc()
	page := NewEmptyPage(NewPageID(1, 0), desc)

	for i := 0; i < 10; i++ {
		require.NoError(t, page.InsertTuple(testTuple(desc, int32(i), "v")))
	}

	tuples := page.Tuples()
	require.Len(t, tuples, 10)
	for i, tp := range tuples {
		assert.Equal(t, int32(i), tp.Field(0).(types.IntField).Value)
	}
}

func TestMarkDirty(t *testing.T) {
	page := NewEmptyPage(NewPageID(1, 0), testDesc())
	require.Nil(t, page.Dirtier())

	page.MarkDirty(true, 42)
	require.NotNil(t, page.Dirtier())
	assert.EqualValues(t, 42, *page.Dirtier())

	page.MarkDirty(false, 42)
	assert.Nil(t, page.Dirtier())
}
