package buffer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"minirel/common"
	"minirel/storage"
	"minirel/transaction"
)

// ErrNoEvictablePage reports a pool whose every resident page is dirty.
// NO-STEAL forbids writing those out, so the fetch cannot proceed.
var ErrNoEvictablePage = errors.New("buffer pool full of dirty pages")

var logger = log.WithField("component", "buffer")

// FileResolver maps a table id to its DbFile. The catalog implements
// it.
type FileResolver interface {
	DatabaseFile(tableID int) (storage.DbFile, error)
}

// Pool is a bounded page cache that doubles as the lock manager. All
// page access flows through GetPage under a transaction id; locks are
// strict two-phase and released only at TransactionComplete.
//
// Eviction is NO-STEAL: a dirty page is never written out ahead of its
// transaction's commit, which is the guarantee abort relies on.
type Pool struct {
	capacity int
	resolver FileResolver

	// mu guards the lock table. Lock waits release and re-acquire it
	// between polls.
	mu    sync.Mutex
	locks *lockTable

	cache sync.Map // storage.PageID -> storage.Page
	size  atomic.Int64

	// flushMu makes FlushAllPages, DiscardPage and FlushPage mutually
	// exclusive.
	flushMu sync.Mutex
}

func NewPool(capacity int, resolver FileResolver) *Pool {
	if capacity <= 0 {
		capacity = common.DefaultPoolSize
	}
	return &Pool{
		capacity: capacity,
		resolver: resolver,
		locks:    newLockTable(common.LockTimeout),
	}
}

// GetPage returns the page identified by pid after acquiring a lock of
// the requested strength for tid. It blocks while conflicting locks
// are held and aborts the transaction when the wait exceeds the
// deadlock timeout.
func (p *Pool) GetPage(tid transaction.TxnID, pid storage.PageID, perm transaction.Permissions) (storage.Page, error) {
	if err := p.acquireLock(tid, pid, perm); err != nil {
		return nil, err
	}

	if cached, ok := p.cache.Load(pid); ok {
		return cached.(storage.Page), nil
	}

	if int(p.size.Load()) >= p.capacity {
		if err := p.evictPage(); err != nil {
			return nil, err
		}
	}

	file, err := p.resolver.DatabaseFile(pid.TableID())
	if err != nil {
		return nil, err
	}
	page, err := file.ReadPage(pid)
	if err != nil {
		return nil, err
	}

	// A concurrent reader may have installed the page while we were on
	// disk; both hold compatible locks, keep the first copy.
	cached, loaded := p.cache.LoadOrStore(pid, page)
	if !loaded {
		p.size.Add(1)
	}
	return cached.(storage.Page), nil
}

func (p *Pool) acquireLock(tid transaction.TxnID, pid storage.PageID, perm transaction.Permissions) error {
	start := time.Now()
	for {
		p.mu.Lock()
		granted := p.locks.tryAcquire(tid, pid, perm)
		p.mu.Unlock()
		if granted {
			return nil
		}

		if time.Since(start) > p.locks.timeout {
			logger.WithFields(log.Fields{"txn": tid, "page": pid, "perm": perm}).
				Warn("lock wait timed out, aborting transaction")
			return fmt.Errorf("%v on %v for txn %d: %w", perm, pid, tid, ErrTransactionAborted)
		}
		time.Sleep(lockPollInterval)
	}
}

// ReleasePage drops tid's lock on pid before end of transaction.
// Calling this breaks two-phase locking; it exists for pages a scan
// inspected but never used.
func (p *Pool) ReleasePage(tid transaction.TxnID, pid storage.PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locks.release(tid, pid)
}

// HoldsLock reports whether tid holds any lock on pid.
func (p *Pool) HoldsLock(tid transaction.TxnID, pid storage.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locks.holds(tid, pid)
}

// TransactionComplete ends tid. On commit every page it dirtied is
// flushed; on abort those pages are discarded from the cache so the
// next fetch re-reads the committed bytes from disk. All of tid's
// locks are then released.
func (p *Pool) TransactionComplete(tid transaction.TxnID, commit bool) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	pids := p.locks.pagesOf(tid)
	p.mu.Unlock()

	for _, pid := range pids {
		cached, ok := p.cache.Load(pid)
		if !ok {
			continue
		}
		page := cached.(storage.Page)
		dirtier := page.Dirtier()
		if dirtier == nil || *dirtier != tid {
			continue
		}

		if commit {
			if err := p.flushLocked(page); err != nil {
				return err
			}
		} else {
			p.cache.Delete(pid)
			p.size.Add(-1)
		}
	}

	p.mu.Lock()
	for _, pid := range pids {
		p.locks.release(tid, pid)
	}
	p.mu.Unlock()
	return nil
}

// InsertTuple inserts t into the named table on behalf of tid. The
// file acquires its own write locks; every page it touched is marked
// dirty and installed in the cache.
func (p *Pool) InsertTuple(tid transaction.TxnID, tableID int, t *storage.Tuple) error {
	file, err := p.resolver.DatabaseFile(tableID)
	if err != nil {
		return err
	}
	dirtied, err := file.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	p.installDirty(tid, dirtied)
	return nil
}

// DeleteTuple removes t, resolved through its record id, on behalf of
// tid.
func (p *Pool) DeleteTuple(tid transaction.TxnID, t *storage.Tuple) error {
	if t.RID == nil {
		return fmt.Errorf("tuple has no record id: %w", storage.ErrNotFound)
	}
	file, err := p.resolver.DatabaseFile(t.RID.PID.TableID())
	if err != nil {
		return err
	}
	dirtied, err := file.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	p.installDirty(tid, dirtied)
	return nil
}

func (p *Pool) installDirty(tid transaction.TxnID, pages []storage.Page) {
	for _, page := range pages {
		page.MarkDirty(true, tid)
		if _, loaded := p.cache.Swap(page.ID(), page); !loaded {
			p.size.Add(1)
		}
	}
}

// evictPage drops one clean resident page. Victim choice is arbitrary;
// dirty pages are never candidates.
func (p *Pool) evictPage() error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	var victim storage.PageID
	found := false
	p.cache.Range(func(key, value any) bool {
		page := value.(storage.Page)
		if page.Dirtier() == nil {
			victim = key.(storage.PageID)
			found = true
			return false
		}
		return true
	})
	if !found {
		return ErrNoEvictablePage
	}

	if _, loaded := p.cache.LoadAndDelete(victim); loaded {
		p.size.Add(-1)
	}
	logger.WithField("page", victim).Debug("evicted clean page")
	return nil
}

// DiscardPage removes pid from the cache without touching disk.
func (p *Pool) DiscardPage(pid storage.PageID) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	if _, loaded := p.cache.LoadAndDelete(pid); loaded {
		p.size.Add(-1)
	}
}

// FlushPage writes pid's cached bytes to disk and marks the page
// clean. Test support; violates NO-STEAL if used mid-transaction.
func (p *Pool) FlushPage(pid storage.PageID) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	cached, ok := p.cache.Load(pid)
	if !ok {
		return nil
	}
	return p.flushLocked(cached.(storage.Page))
}

// FlushAllPages writes every dirty resident page to disk. Test
// support.
func (p *Pool) FlushAllPages() error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	var err error
	p.cache.Range(func(_, value any) bool {
		page := value.(storage.Page)
		if page.Dirtier() != nil {
			if err = p.flushLocked(page); err != nil {
				return false
			}
		}
		return true
	})
	return err
}

func (p *Pool) flushLocked(page storage.Page) error {
	dirtier := page.Dirtier()
	if dirtier == nil {
		return nil
	}
	file, err := p.resolver.DatabaseFile(page.ID().TableID())
	if err != nil {
		return err
	}
	if err := file.WritePage(page); err != nil {
		return err
	}
	page.MarkDirty(false, *dirtier)
	return nil
}
