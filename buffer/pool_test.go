package buffer_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minirel/buffer"
	"minirel/common"
	"minirel/db"
	"minirel/heap"
	"minirel/storage"
	"minirel/transaction"
	"minirel/types"
)

func newTable(t *testing.T, database *db.Database) *heap.File {
	t.Helper()

	id, err := uuid.NewUUID()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), id.String()+".dat")

	desc := storage.NewTupleDescFromTypes(types.IntType, types.IntType)
	f, err := heap.OpenFile(path, desc, database.Pool)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	database.Catalog.AddTable(f, id.String(), "")
	return f
}

func insertInt(t *testing.T, database *db.Database, f *heap.File, tid transaction.TxnID, v int32) {
	t.Helper()
	tp := storage.NewTuple(f.TupleDesc(), []types.Field{types.NewIntField(v), types.NewIntField(v)})
	require.NoError(t, database.Pool.InsertTuple(tid, f.ID(), tp))
}

func countTuples(t *testing.T, f *heap.File, tid transaction.TxnID) int {
	t.Helper()

	it := f.Iterator(tid)
	require.NoError(t, it.Open())
	defer it.Close()

	n := 0
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			return n
		}
		_, err = it.Next()
		require.NoError(t, err)
		n++
	}
}

func TestTwoReadersShareAPage(t *testing.T) {
	database := db.New(16)
	f := newTable(t, database)

	setup := transaction.NewTxnID()
	insertInt(t, database, f, setup, 1)
	require.NoError(t, database.Pool.TransactionComplete(setup, true))

	pid := heap.NewPageID(f.ID(), 0)
	t1 := transaction.NewTxnID()
	t2 := transaction.NewTxnID()

	_, err := database.Pool.GetPage(t1, pid, transaction.ReadOnly)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := database.Pool.GetPage(t2, pid, transaction.ReadOnly)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second reader blocked behind a shared lock")
	}

	require.NoError(t, database.Pool.TransactionComplete(t1, true))
	require.NoError(t, database.Pool.TransactionComplete(t2, true))
}

func TestWriterBlocksReaderUntilCommit(t *testing.T) {
	database := db.New(16)
	f := newTable(t, database)

	setup := transaction.NewTxnID()
	insertInt(t, database, f, setup, 1)
	require.NoError(t, database.Pool.TransactionComplete(setup, true))

	pid := heap.NewPageID(f.ID(), 0)
	writer := transaction.NewTxnID()
	_, err := database.Pool.GetPage(writer, pid, transaction.ReadWrite)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		reader := transaction.NewTxnID()
		_, err := database.Pool.GetPage(reader, pid, transaction.ReadOnly)
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired a page under an exclusive lock")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, database.Pool.TransactionComplete(writer, true))

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reader still blocked after writer committed")
	}
}

func TestLockUpgrade(t *testing.T) {
	database := db.New(16)
	f := newTable(t, database)

	setup := transaction.NewTxnID()
	insertInt(t, database, f, setup, 1)
	require.NoError(t, database.Pool.TransactionComplete(setup, true))

	pid := heap.NewPageID(f.ID(), 0)
	tid := transaction.NewTxnID()

	_, err := database.Pool.GetPage(tid, pid, transaction.ReadOnly)
	require.NoError(t, err)

	// the sole shared holder upgrades in place
	_, err = database.Pool.GetPage(tid, pid, transaction.ReadWrite)
	require.NoError(t, err)
	assert.True(t, database.Pool.HoldsLock(tid, pid))
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}

func TestDeadlockTimeoutAbortsWaiter(t *testing.T) {
	restoreTimeout := common.SetLockTimeoutForTest(200 * time.Millisecond)
	defer restoreTimeout()

	database := db.New(16)
	f := newTable(t, database)

	setup := transaction.NewTxnID()
	insertInt(t, database, f, setup, 1)
	require.NoError(t, database.Pool.TransactionComplete(setup, true))

	pid := heap.NewPageID(f.ID(), 0)
	t1 := transaction.NewTxnID()
	t2 := transaction.NewTxnID()

	_, err := database.Pool.GetPage(t1, pid, transaction.ReadWrite)
	require.NoError(t, err)

	_, err = database.Pool.GetPage(t2, pid, transaction.ReadWrite)
	require.ErrorIs(t, err, buffer.ErrTransactionAborted)
	require.NoError(t, database.Pool.TransactionComplete(t2, false))

	// the lock holder is uninterrupted
	insertInt(t, database, f, t1, 2)
	require.NoError(t, database.Pool.TransactionComplete(t1, true))
}

func TestNoStealAbort(t *testing.T) {
	database := db.New(16)
	f := newTable(t, database)

	setup := transaction.NewTxnID()
	insertInt(t, database, f, setup, 1)
	require.NoError(t, database.Pool.TransactionComplete(setup, true))

	before, err := os.ReadFile(f.Path())
	require.NoError(t, err)

	t1 := transaction.NewTxnID()
	insertInt(t, database, f, t1, 99)
	require.NoError(t, database.Pool.TransactionComplete(t1, false))

	// nothing of t1 reached the disk
	after, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// and a later transaction does not observe it
	t2 := transaction.NewTxnID()
	assert.Equal(t, 1, countTuples(t, f, t2))
	require.NoError(t, database.Pool.TransactionComplete(t2, true))
}

func TestCommitFlushesDirtyPages(t *testing.T) {
	database := db.New(16)
	f := newTable(t, database)

	tid := transaction.NewTxnID()
	insertInt(t, database, f, tid, 7)
	require.NoError(t, database.Pool.TransactionComplete(tid, true))

	// bypass the pool: the tuple is on disk
	page, err := f.ReadPage(heap.NewPageID(f.ID(), 0))
	require.NoError(t, err)
	assert.Len(t, page.(*heap.Page).Tuples(), 1)
}

func TestEvictionRefusesDirtyPages(t *testing.T) {
	database := db.New(2)
	f := newTable(t, database)

	desc := f.TupleDesc()
	perPage := heap.SlotsPerPage(desc)

	tid := transaction.NewTxnID()
	var err error
	for i := 0; i < perPage*4 && err == nil; i++ {
		tp := storage.NewTuple(desc, []types.Field{types.NewIntField(int32(i)), types.NewIntField(0)})
		err = database.Pool.InsertTuple(tid, f.ID(), tp)
	}
	require.ErrorIs(t, err, buffer.ErrNoEvictablePage)

	// after commit the pages are clean and evictable again
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
	tid2 := transaction.NewTxnID()
	_, err = database.Pool.GetPage(tid2, heap.NewPageID(f.ID(), 0), transaction.ReadOnly)
	require.NoError(t, err)
	require.NoError(t, database.Pool.TransactionComplete(tid2, true))
}

func TestReleasePageDropsLock(t *testing.T) {
	database := db.New(16)
	f := newTable(t, database)

	setup := transaction.NewTxnID()
	insertInt(t, database, f, setup, 1)
	require.NoError(t, database.Pool.TransactionComplete(setup, true))

	pid := heap.NewPageID(f.ID(), 0)
	tid := transaction.NewTxnID()
	_, err := database.Pool.GetPage(tid, pid, transaction.ReadOnly)
	require.NoError(t, err)
	require.True(t, database.Pool.HoldsLock(tid, pid))

	database.Pool.ReleasePage(tid, pid)
	assert.False(t, database.Pool.HoldsLock(tid, pid))
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}

func TestConcurrentInserts(t *testing.T) {
	database := db.New(64)
	f := newTable(t, database)

	const workers = 4
	const perWorker = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			tid := transaction.NewTxnID()
			for i := 0; i < perWorker; i++ {
				tp := storage.NewTuple(f.TupleDesc(), []types.Field{
					types.NewIntField(int32(w*perWorker + i)),
					types.NewIntField(int32(w)),
				})
				if err := database.Pool.InsertTuple(tid, f.ID(), tp); err != nil {
					errs <- err
					return
				}
			}
			errs <- database.Pool.TransactionComplete(tid, true)
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	tid := transaction.NewTxnID()
	assert.Equal(t, workers*perWorker, countTuples(t, f, tid))
	require.NoError(t, database.Pool.TransactionComplete(tid, true))
}
