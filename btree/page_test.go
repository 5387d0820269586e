package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minirel/storage"
	"minirel/types"
)

func intDesc() *storage.TupleDesc {
	return storage.NewTupleDesc([]storage.TDItem{
		{Type: types.IntType, Name: "key"},
		{Type: types.IntType, Name: "val"},
	})
}

func intTuple(desc *storage.TupleDesc, key, val int32) *storage.Tuple {
	return storage.NewTuple(desc, []types.Field{types.NewIntField(key), types.NewIntField(val)})
}

func TestRootPtrRoundTrip(t *testing.T) {
	pid := RootPtrID(9)
	page, err := NewRootPtrPage(pid, EmptyRootPtrData())
	require.NoError(t, err)
	require.Nil(t, page.RootID())
	require.Nil(t, page.HeaderID())

	page.SetRootID(NewPageID(9, 4, Internal))
	hid := NewPageID(9, 2, Header)
	page.SetHeaderID(&hid)

	data, err := page.Data()
	require.NoError(t, err)
	require.Len(t, data, RootPtrSize)

	decoded, err := NewRootPtrPage(pid, data)
	require.NoError(t, err)
	require.NotNil(t, decoded.RootID())
	assert.Equal(t, NewPageID(9, 4, Internal), *decoded.RootID())
	require.NotNil(t, decoded.HeaderID())
	assert.Equal(t, hid, *decoded.HeaderID())
}

func TestHeaderPageRoundTrip(t *testing.T) {
	pid := NewPageID(9, 3, Header)
	page, err := NewHeaderPage(pid, make([]byte, 4096))
	require.NoError(t, err)

	// a zeroed header page reports every slot free
	assert.Equal(t, 0, page.EmptySlot())

	page.Init()
	assert.Equal(t, -1, page.EmptySlot())

	page.MarkSlotUsed(7, false)
	page.MarkSlotUsed(100, false)
	prev := NewPageID(9, 1, Header)
	next := NewPageID(9, 5, Header)
	page.SetPrevID(&prev)
	page.SetNextID(&next)

	data, err := page.Data()
	require.NoError(t, err)

	decoded, err := NewHeaderPage(pid, data)
	require.NoError(t, err)
	assert.Equal(t, 7, decoded.EmptySlot())
	assert.False(t, decoded.SlotUsed(100))
	assert.True(t, decoded.SlotUsed(8))
	assert.Equal(t, prev, *decoded.PrevID())
	assert.Equal(t, next, *decoded.NextID())
}

func TestLeafPageSortedInsert(t *testing.T) {
	desc := intDesc()
	pid := NewPageID(9, 1, Leaf)
	page, err := NewLeafPage(pid, desc, 0, make([]byte, 4096))
	require.NoError(t, err)

	for _, k := range []int32{5, 1, 3, 4, 2} {
		require.NoError(t, page.InsertTuple(intTuple(desc, k, k*10)))
	}

	tuples := page.Tuples()
	require.Len(t, tuples, 5)
	for i, tp := range tuples {
		assert.EqualValues(t, i+1, tp.Field(0).(types.IntField).Value)
		assert.Equal(t, i, tp.RID.TupleNo)
	}
}

func TestLeafPageRoundTrip(t *testing.T) {
	desc := intDesc()
	pid := NewPageID(9, 1, Leaf)
	page, err := NewLeafPage(pid, desc, 0, make([]byte, 4096))
	require.NoError(t, err)

	for i := int32(0); i < 10; i++ {
		require.NoError(t, page.InsertTuple(intTuple(desc, i, i)))
	}
	page.SetParentID(NewPageID(9, 7, Internal))
	left := NewPageID(9, 2, Leaf)
	right := NewPageID(9, 3, Leaf)
	page.SetLeftSiblingID(&left)
	page.SetRightSiblingID(&right)

	data, err := page.Data()
	require.NoError(t, err)

	decoded, err := NewLeafPage(pid, desc, 0, data)
	require.NoError(t, err)
	assert.Equal(t, 10, decoded.NumTuples())
	assert.Equal(t, NewPageID(9, 7, Internal), decoded.ParentID())
	assert.Equal(t, left, *decoded.LeftSiblingID())
	assert.Equal(t, right, *decoded.RightSiblingID())
	for i, tp := range decoded.Tuples() {
		assert.True(t, tp.Equals(page.Tuples()[i]))
	}
}

func TestLeafPageRootParent(t *testing.T) {
	desc := intDesc()
	page, err := NewLeafPage(NewPageID(9, 1, Leaf), desc, 0, make([]byte, 4096))
	require.NoError(t, err)

	assert.Equal(t, RootPtrID(9), page.ParentID())
	page.SetParentID(RootPtrID(9))
	assert.Equal(t, RootPtrID(9), page.ParentID())
}

func buildInternal(t *testing.T) *InternalPage {
	t.Helper()
	desc := intDesc()
	page, err := NewInternalPage(NewPageID(9, 5, Internal), desc, 0, make([]byte, 4096))
	require.NoError(t, err)

	// children 1,2,3,4 separated by keys 10,20,30
	require.NoError(t, page.InsertEntry(Entry{
		Key:  types.NewIntField(10),
		Left: NewPageID(9, 1, Leaf), Right: NewPageID(9, 2, Leaf),
	}))
	require.NoError(t, page.InsertEntry(Entry{
		Key:  types.NewIntField(20),
		Left: NewPageID(9, 2, Leaf), Right: NewPageID(9, 3, Leaf),
	}))
	require.NoError(t, page.InsertEntry(Entry{
		Key:  types.NewIntField(30),
		Left: NewPageID(9, 3, Leaf), Right: NewPageID(9, 4, Leaf),
	}))
	return page
}

func TestInternalPageEntries(t *testing.T) {
	page := buildInternal(t)

	entries := page.Entries()
	require.Len(t, entries, 3)
	assert.EqualValues(t, 10, entries[0].Key.(types.IntField).Value)
	assert.Equal(t, NewPageID(9, 1, Leaf), entries[0].Left)
	assert.Equal(t, NewPageID(9, 2, Leaf), entries[0].Right)
	assert.Equal(t, NewPageID(9, 4, Leaf), entries[2].Right)
	assert.Equal(t, Leaf, page.ChildCategory())
}

func TestInternalPageRoundTrip(t *testing.T) {
	page := buildInternal(t)
	page.SetParentID(NewPageID(9, 8, Internal))

	data, err := page.Data()
	require.NoError(t, err)

	decoded, err := NewInternalPage(page.pid, intDesc(), 0, data)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.NumEntries())
	assert.Equal(t, page.ChildIDs(), decoded.ChildIDs())
	assert.Equal(t, NewPageID(9, 8, Internal), decoded.ParentID())
	for i, e := range decoded.Entries() {
		assert.True(t, e.Key.Compare(types.Equals, page.Entries()[i].Key))
	}
}

func TestInternalPageDeletes(t *testing.T) {
	page := buildInternal(t)

	// drop key 20 and its right child (page 3)
	require.NoError(t, page.DeleteKeyAndRightChild(page.Entries()[1]))
	require.Len(t, page.Entries(), 2)
	assert.Equal(t, []PageID{
		NewPageID(9, 1, Leaf), NewPageID(9, 2, Leaf), NewPageID(9, 4, Leaf),
	}, page.ChildIDs())

	// drop key 10 and its left child (page 1)
	require.NoError(t, page.DeleteKeyAndLeftChild(page.Entries()[0]))
	assert.Equal(t, []PageID{
		NewPageID(9, 2, Leaf), NewPageID(9, 4, Leaf),
	}, page.ChildIDs())
}

func TestInternalPageReplaceKey(t *testing.T) {
	page := buildInternal(t)

	sep := page.Entries()[1]
	require.NoError(t, page.ReplaceEntryKey(sep, types.NewIntField(25)))
	assert.EqualValues(t, 25, page.Entries()[1].Key.(types.IntField).Value)
}

func TestInternalPageInsertNeedsAnchor(t *testing.T) {
	page := buildInternal(t)

	err := page.InsertEntry(Entry{
		Key:  types.NewIntField(15),
		Left: NewPageID(9, 40, Leaf), Right: NewPageID(9, 41, Leaf),
	})
	assert.Error(t, err)
}
