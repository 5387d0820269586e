package heap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"

	"minirel/common"
	"minirel/storage"
	"minirel/transaction"
)

// ErrIllegalPage reports a read past the end of the backing file.
var ErrIllegalPage = errors.New("page offset beyond file length")

var logger = log.WithField("component", "heap")

// File backs one table as a concatenation of page-sized blocks in no
// particular tuple order. The file owns its on-disk bytes and holds no
// cache; every page access during inserts, deletes and scans goes
// through the buffer pool.
type File struct {
	path    string
	file    *os.File
	desc    *storage.TupleDesc
	id      int
	fetcher storage.PageFetcher

	// appendMu serializes file extension.
	appendMu sync.Mutex
}

var _ storage.DbFile = &File{}

// TableID derives a table id from a file path. The same canonical path
// always maps to the same id.
func TableID(path string) int {
	abs, err := filepath.Abs(path)
	common.PanicIfErr(err)
	return int(xxhash.Sum64String(abs) & 0x7fffffffffffffff)
}

// OpenFile opens or creates the heap file at path.
func OpenFile(path string, desc *storage.TupleDesc, fetcher storage.PageFetcher) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open heap file: %w", err)
	}

	hf := &File{
		path:    path,
		file:    f,
		desc:    desc,
		id:      TableID(path),
		fetcher: fetcher,
	}
	logger.WithFields(log.Fields{"path": path, "table": hf.id}).Info("heap file opened")
	return hf, nil
}

func (f *File) Close() error {
	return f.file.Close()
}

func (f *File) ID() int {
	return f.id
}

// Path returns the location of the backing file.
func (f *File) Path() string {
	return f.path
}

func (f *File) TupleDesc() *storage.TupleDesc {
	return f.desc
}

// NumPages returns the page count of the backing file. A zero-length
// file reports one page so the empty-page creation path in InsertTuple
// is uniform.
func (f *File) NumPages() int {
	info, err := f.file.Stat()
	common.PanicIfErr(err)
	n := int((info.Size() + int64(common.PageSize()) - 1) / int64(common.PageSize()))
	if n == 0 {
		return 1
	}
	return n
}

// ReadPage fetches a page straight from disk. Fails with
// ErrIllegalPage when the offset is at or past the end of the file.
func (f *File) ReadPage(pid storage.PageID) (storage.Page, error) {
	hpid, ok := pid.(PageID)
	if !ok {
		return nil, fmt.Errorf("not a heap page id: %v", pid)
	}

	info, err := f.file.Stat()
	if err != nil {
		return nil, err
	}
	offset := int64(pid.PageNo()) * int64(common.PageSize())
	if offset >= info.Size() {
		return nil, fmt.Errorf("page %v at offset %d, file length %d: %w", pid, offset, info.Size(), ErrIllegalPage)
	}

	data := make([]byte, common.PageSize())
	if _, err := f.file.ReadAt(data, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read page %v: %w", pid, err)
	}
	return NewPage(hpid, f.desc, data)
}

// WritePage persists a page at its offset, exactly PageSize bytes.
func (f *File) WritePage(p storage.Page) error {
	data, err := p.Data()
	if err != nil {
		return err
	}

	offset := int64(p.ID().PageNo()) * int64(common.PageSize())
	n, err := f.file.WriteAt(data, offset)
	if err != nil {
		return fmt.Errorf("write page %v: %w", p.ID(), err)
	}
	common.Assert(n == common.PageSize(), "written bytes are not equal to page size")
	return nil
}

// extendTo makes sure the file covers pageNo by writing an empty page
// image at its offset.
func (f *File) extendTo(pageNo int) error {
	offset := int64(pageNo) * int64(common.PageSize())
	if _, err := f.file.WriteAt(EmptyPageData(), offset); err != nil {
		return fmt.Errorf("extend heap file: %w", err)
	}
	return nil
}

// InsertTuple walks the file front to back, taking a write lock on
// each page, and inserts into the first page with a free slot. When
// every page is full a fresh page is appended and the insert lands
// there.
func (f *File) InsertTuple(tid transaction.TxnID, t *storage.Tuple) ([]storage.Page, error) {
	numPages := f.NumPages()
	for pageNo := 0; pageNo < numPages; pageNo++ {
		page, err := f.lockedPage(tid, pageNo)
		if err != nil {
			return nil, err
		}
		if err := page.InsertTuple(t); err != nil {
			if errors.Is(err, ErrPageFull) {
				continue
			}
			return nil, err
		}
		return []storage.Page{page}, nil
	}

	// Every existing page is full: append.
	f.appendMu.Lock()
	appendNo := f.NumPages()
	if err := f.extendTo(appendNo); err != nil {
		f.appendMu.Unlock()
		return nil, err
	}
	f.appendMu.Unlock()

	page, err := f.lockedPage(tid, appendNo)
	if err != nil {
		return nil, err
	}
	if err := page.InsertTuple(t); err != nil {
		return nil, err
	}
	return []storage.Page{page}, nil
}

// lockedPage acquires READ_WRITE on pageNo through the buffer pool,
// materializing the page on disk first if the file has never reached
// it.
func (f *File) lockedPage(tid transaction.TxnID, pageNo int) (*Page, error) {
	f.appendMu.Lock()
	info, err := f.file.Stat()
	if err != nil {
		f.appendMu.Unlock()
		return nil, err
	}
	if int64(pageNo)*int64(common.PageSize()) >= info.Size() {
		if err := f.extendTo(pageNo); err != nil {
			f.appendMu.Unlock()
			return nil, err
		}
	}
	f.appendMu.Unlock()

	page, err := f.fetcher.GetPage(tid, NewPageID(f.id, pageNo), transaction.ReadWrite)
	if err != nil {
		return nil, err
	}
	return page.(*Page), nil
}

// DeleteTuple resolves t's page, takes a write lock on it and clears
// the slot.
func (f *File) DeleteTuple(tid transaction.TxnID, t *storage.Tuple) ([]storage.Page, error) {
	if t.RID == nil {
		return nil, fmt.Errorf("tuple has no record id: %w", storage.ErrNotFound)
	}

	page, err := f.fetcher.GetPage(tid, t.RID.PID, transaction.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := page.(*Page)
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

func (f *File) Iterator(tid transaction.TxnID) storage.DbFileIterator {
	return &fileIterator{file: f, tid: tid}
}

// fileIterator yields tuples page by page under READ_ONLY buffer pool
// acquisitions. It advances to the next page only once the current
// page's tuples are exhausted; the terminal state holds no page.
type fileIterator struct {
	file *File
	tid  transaction.TxnID

	open    bool
	pageNo  int
	current []*storage.Tuple
	pos     int
}

func (it *fileIterator) Open() error {
	it.open = true
	it.pageNo = 0
	it.current = nil
	it.pos = 0
	return nil
}

func (it *fileIterator) HasNext() (bool, error) {
	if !it.open {
		return false, storage.ErrNotOpen
	}

	for {
		if it.current != nil && it.pos < len(it.current) {
			return true, nil
		}

		if it.current != nil {
			it.pageNo++
		}
		if it.pageNo >= it.file.NumPages() {
			it.current = nil
			return false, nil
		}

		page, err := it.file.fetcher.GetPage(it.tid, NewPageID(it.file.id, it.pageNo), transaction.ReadOnly)
		if err != nil {
			if errors.Is(err, ErrIllegalPage) {
				// A zero-length file reports one page it does not have.
				it.current = nil
				return false, nil
			}
			return false, err
		}
		it.current = page.(*Page).Tuples()
		it.pos = 0
	}
}

func (it *fileIterator) Next() (*storage.Tuple, error) {
	if !it.open {
		return nil, storage.ErrNotOpen
	}
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrNoSuchElement
	}

	t := it.current[it.pos]
	it.pos++
	return t, nil
}

func (it *fileIterator) Rewind() error {
	it.Close()
	return it.Open()
}

func (it *fileIterator) Close() {
	it.open = false
	it.current = nil
}
