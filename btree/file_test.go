package btree_test

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minirel/btree"
	"minirel/common"
	"minirel/db"
	"minirel/storage"
	"minirel/transaction"
	"minirel/types"
)

func keyValDesc() *storage.TupleDesc {
	return storage.NewTupleDesc([]storage.TDItem{
		{Type: types.IntType, Name: "key"},
		{Type: types.IntType, Name: "val"},
	})
}

func newTree(t *testing.T, database *db.Database, desc *storage.TupleDesc) *btree.File {
	t.Helper()

	id, err := uuid.NewUUID()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), id.String()+".idx")

	f, err := btree.OpenFile(path, desc, 0, database.Pool)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	database.Catalog.AddTable(f, id.String(), "key")
	return f
}

func insertKey(t *testing.T, database *db.Database, f *btree.File, tid transaction.TxnID, key int32) {
	t.Helper()
	tp := storage.NewTuple(f.TupleDesc(), []types.Field{
		types.NewIntField(key),
		types.NewIntField(key * 2),
	})
	require.NoError(t, database.Pool.InsertTuple(tid, f.ID(), tp))
}

func scanKeys(t *testing.T, f *btree.File, tid transaction.TxnID) []int32 {
	t.Helper()

	it := f.Iterator(tid)
	require.NoError(t, it.Open())
	defer it.Close()

	var keys []int32
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			return keys
		}
		tp, err := it.Next()
		require.NoError(t, err)
		keys = append(keys, tp.Field(0).(types.IntField).Value)
	}
}

func TestInsertDescendingScansAscending(t *testing.T) {
	restore := common.SetPageSizeForTest(512)
	defer restore()

	database := db.New(1000)
	f := newTree(t, database, keyValDesc())
	tid := transaction.NewTxnID()

	const n = 8000
	for k := int32(n); k >= 1; k-- {
		insertKey(t, database, f, tid, k)
	}

	keys := scanKeys(t, f, tid)
	require.Len(t, keys, n)
	for i, k := range keys {
		require.EqualValues(t, i+1, k)
	}
	require.NoError(t, f.CheckIntegrity(tid))
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}

func TestEqualsIterator(t *testing.T) {
	restore := common.SetPageSizeForTest(512)
	defer restore()

	database := db.New(1000)
	f := newTree(t, database, keyValDesc())
	tid := transaction.NewTxnID()

	for k := int32(1); k <= 3000; k++ {
		insertKey(t, database, f, tid, k)
	}

	it := f.IndexIterator(tid, btree.IndexPredicate{Op: types.Equals, Field: types.NewIntField(1500)})
	require.NoError(t, it.Open())
	defer it.Close()

	ok, err := it.HasNext()
	require.NoError(t, err)
	require.True(t, ok)
	tp, err := it.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 1500, tp.Field(0).(types.IntField).Value)
	assert.EqualValues(t, 3000, tp.Field(1).(types.IntField).Value)

	ok, err = it.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}

func TestIndexIteratorRanges(t *testing.T) {
	restore := common.SetPageSizeForTest(512)
	defer restore()

	database := db.New(1000)
	f := newTree(t, database, keyValDesc())
	tid := transaction.NewTxnID()

	const n = 2000
	for k := int32(1); k <= n; k++ {
		insertKey(t, database, f, tid, k)
	}

	cases := []struct {
		op    types.Op
		key   int32
		count int
		first int32
	}{
		{types.GreaterThan, 1500, 500, 1501},
		{types.GreaterThanOrEq, 1500, 501, 1500},
		{types.LessThan, 100, 99, 1},
		{types.LessThanOrEq, 100, 100, 1},
	}
	for _, c := range cases {
		it := f.IndexIterator(tid, btree.IndexPredicate{Op: c.op, Field: types.NewIntField(c.key)})
		require.NoError(t, it.Open())

		var got []int32
		for {
			ok, err := it.HasNext()
			require.NoError(t, err)
			if !ok {
				break
			}
			tp, err := it.Next()
			require.NoError(t, err)
			got = append(got, tp.Field(0).(types.IntField).Value)
		}
		it.Close()

		require.Len(t, got, c.count, "op %v", c.op)
		assert.Equal(t, c.first, got[0], "op %v", c.op)
	}
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}

func TestDeleteMergeCascade(t *testing.T) {
	restore := common.SetPageSizeForTest(512)
	defer restore()

	database := db.New(1000)
	f := newTree(t, database, keyValDesc())
	tid := transaction.NewTxnID()

	const n = 8000
	for k := int32(1); k <= n; k++ {
		insertKey(t, database, f, tid, k)
	}

	// delete the middle half in shuffled order, holding the tree to
	// its invariants along the way
	doomed := make([]int32, 0, 4000)
	for k := int32(2000); k < 6000; k++ {
		doomed = append(doomed, k)
	}
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(doomed), func(i, j int) { doomed[i], doomed[j] = doomed[j], doomed[i] })

	for i, k := range doomed {
		it := f.IndexIterator(tid, btree.IndexPredicate{Op: types.Equals, Field: types.NewIntField(k)})
		require.NoError(t, it.Open())
		tp, err := it.Next()
		require.NoError(t, err)
		it.Close()

		require.NoError(t, database.Pool.DeleteTuple(tid, tp))
		if i%500 == 0 {
			require.NoError(t, f.CheckIntegrity(tid))
		}
	}
	require.NoError(t, f.CheckIntegrity(tid))

	count, err := f.CountTuples(tid)
	require.NoError(t, err)
	assert.Equal(t, n-4000, count)

	keys := scanKeys(t, f, tid)
	require.Len(t, keys, n-4000)
	for i := 1; i < len(keys); i++ {
		require.LessOrEqual(t, keys[i-1], keys[i])
	}
	for _, k := range keys {
		require.True(t, k < 2000 || k >= 6000)
	}
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}

func TestDeleteEverything(t *testing.T) {
	restore := common.SetPageSizeForTest(512)
	defer restore()

	database := db.New(1000)
	f := newTree(t, database, keyValDesc())
	tid := transaction.NewTxnID()

	const n = 500
	for k := int32(1); k <= n; k++ {
		insertKey(t, database, f, tid, k)
	}

	for k := int32(1); k <= n; k++ {
		it := f.IndexIterator(tid, btree.IndexPredicate{Op: types.Equals, Field: types.NewIntField(k)})
		require.NoError(t, it.Open())
		tp, err := it.Next()
		require.NoError(t, err)
		it.Close()
		require.NoError(t, database.Pool.DeleteTuple(tid, tp))
	}

	require.NoError(t, f.CheckIntegrity(tid))
	count, err := f.CountTuples(tid)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, scanKeys(t, f, tid))
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}

func TestLargeInOrderInsert(t *testing.T) {
	if testing.Short() {
		t.Skip("large tree build")
	}

	database := db.New(200)
	f := newTree(t, database, keyValDesc())
	tid := transaction.NewTxnID()

	const n = 31000
	for k := int32(n); k >= 1; k-- {
		insertKey(t, database, f, tid, k)
	}

	keys := scanKeys(t, f, tid)
	require.Len(t, keys, n)
	for i, k := range keys {
		require.EqualValues(t, i+1, k)
	}

	it := f.IndexIterator(tid, btree.IndexPredicate{Op: types.Equals, Field: types.NewIntField(15000)})
	require.NoError(t, it.Open())
	tp, err := it.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 15000, tp.Field(0).(types.IntField).Value)
	ok, err := it.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
	it.Close()

	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}

func TestReopenAfterCommit(t *testing.T) {
	restore := common.SetPageSizeForTest(512)
	defer restore()

	database := db.New(1000)
	f := newTree(t, database, keyValDesc())
	tid := transaction.NewTxnID()

	for k := int32(1); k <= 1000; k++ {
		insertKey(t, database, f, tid, k)
	}
	require.NoError(t, database.Pool.TransactionComplete(tid, true))

	reopened := db.New(1000)
	f2, err := btree.OpenFile(f.Path(), keyValDesc(), 0, reopened.Pool)
	require.NoError(t, err)
	defer f2.Close()
	reopened.Catalog.AddTable(f2, "reopened", "key")

	tid2 := transaction.NewTxnID()
	it := f2.Iterator(tid2)
	require.NoError(t, it.Open())
	n := 0
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		_, err = it.Next()
		require.NoError(t, err)
		n++
	}
	it.Close()
	assert.Equal(t, 1000, n)
	require.NoError(t, f2.CheckIntegrity(tid2))
	require.NoError(t, reopened.Pool.TransactionComplete(tid2, true))
}

func TestInsertSchemaMismatch(t *testing.T) {
	database := db.New(16)
	f := newTree(t, database, keyValDesc())
	tid := transaction.NewTxnID()

	other := storage.NewTupleDescFromTypes(types.IntType)
	_, err := f.InsertTuple(tid, storage.NewTuple(other, []types.Field{types.NewIntField(1)}))
	assert.ErrorIs(t, err, storage.ErrSchemaMismatch)
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}

func TestIteratorContract(t *testing.T) {
	database := db.New(16)
	f := newTree(t, database, keyValDesc())
	tid := transaction.NewTxnID()

	it := f.Iterator(tid)
	_, err := it.Next()
	assert.ErrorIs(t, err, storage.ErrNotOpen)

	require.NoError(t, it.Open())
	ok, err := it.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = it.Next()
	assert.ErrorIs(t, err, storage.ErrNoSuchElement)

	require.NoError(t, it.Rewind())
	it.Close()
	_, err = it.Next()
	assert.ErrorIs(t, err, storage.ErrNotOpen)
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}
