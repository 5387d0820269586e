package btree

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"minirel/common"
	"minirel/heap"
	"minirel/storage"
	"minirel/transaction"
	"minirel/types"
)

// ErrPageFull reports an insert into a page with no free slot; the
// file handles it by splitting.
var ErrPageFull = errors.New("page has no empty slots")

// ErrIllegalPage reports a read past the end of the backing file.
var ErrIllegalPage = errors.New("page offset beyond file length")

var logger = log.WithField("component", "btree")

// pagePool is the slice of the buffer pool the tree depends on. Beyond
// lock-then-fetch it needs DiscardPage so reallocated page numbers are
// never served from stale cache entries.
type pagePool interface {
	storage.PageFetcher
	DiscardPage(pid storage.PageID)
}

// File is a B+ tree keyed on a single field of its tuples. On disk the
// file starts with the root pointer page, followed by header, internal
// and leaf pages of PageSize bytes numbered from 1.
//
// All page access during search, insert and delete goes through the
// buffer pool; parent pointers are stored page numbers resolved
// through the pool each time, never page handles.
type File struct {
	path     string
	file     *os.File
	desc     *storage.TupleDesc
	keyField int
	id       int
	pool     pagePool

	// fileMu serializes file extension and truncation.
	fileMu sync.Mutex
}

var _ storage.DbFile = &File{}

// OpenFile opens or creates the b+ tree file at path, keyed on
// keyField of desc. A fresh file is laid out with an empty root
// pointer page and one empty page ready to become the first root leaf.
func OpenFile(path string, desc *storage.TupleDesc, keyField int, pool pagePool) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open btree file: %w", err)
	}

	bf := &File{
		path:     path,
		file:     f,
		desc:     desc,
		keyField: keyField,
		id:       heap.TableID(path),
		pool:     pool,
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		if _, err := f.WriteAt(EmptyRootPtrData(), 0); err != nil {
			return nil, err
		}
		if _, err := f.WriteAt(make([]byte, common.PageSize()), RootPtrSize); err != nil {
			return nil, err
		}
	}
	logger.WithFields(log.Fields{"path": path, "table": bf.id, "key": keyField}).Info("btree file opened")
	return bf, nil
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

func (f *File) KeyField() int {
	return f.keyField
}

// NumPages counts the numbered pages; the root pointer page is not
// included.
func (f *File) NumPages() int {
	info, err := f.file.Stat()
	common.PanicIfErr(err)
	return int((info.Size() - RootPtrSize) / int64(common.PageSize()))
}

func pageOffset(pageNo int) int64 {
	return RootPtrSize + int64(pageNo-1)*int64(common.PageSize())
}

// ReadPage fetches a page straight from disk and decodes it by its
// id's category.
func (f *File) ReadPage(pid storage.PageID) (storage.Page, error) {
	bpid, ok := pid.(PageID)
	if !ok {
		return nil, fmt.Errorf("not a btree page id: %v", pid)
	}

	if bpid.Cat == RootPtr {
		data := make([]byte, RootPtrSize)
		if _, err := f.file.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("read root ptr: %w", err)
		}
		return NewRootPtrPage(bpid, data)
	}

	info, err := f.file.Stat()
	if err != nil {
		return nil, err
	}
	offset := pageOffset(bpid.PageNum)
	if bpid.PageNum < 1 || offset >= info.Size() {
		return nil, fmt.Errorf("page %v at offset %d, file length %d: %w", pid, offset, info.Size(), ErrIllegalPage)
	}

	data := make([]byte, common.PageSize())
	if _, err := f.file.ReadAt(data, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read page %v: %w", pid, err)
	}

	switch bpid.Cat {
	case Internal:
		return NewInternalPage(bpid, f.desc, f.keyField, data)
	case Leaf:
		return NewLeafPage(bpid, f.desc, f.keyField, data)
	case Header:
		return NewHeaderPage(bpid, data)
	default:
		return nil, fmt.Errorf("unknown page category %v", bpid.Cat)
	}
}

// WritePage persists a page at its category-determined offset.
func (f *File) WritePage(p storage.Page) error {
	data, err := p.Data()
	if err != nil {
		return err
	}

	bpid := p.ID().(PageID)
	var offset int64
	if bpid.Cat == RootPtr {
		offset = 0
	} else {
		offset = pageOffset(bpid.PageNum)
	}
	if _, err := f.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("write page %v: %w", p.ID(), err)
	}
	return nil
}

// dirtySet accumulates every page dirtied by one mutating call.
type dirtySet map[storage.PageID]storage.Page

func (d dirtySet) add(p storage.Page) {
	d[p.ID()] = p
}

func (d dirtySet) pages() []storage.Page {
	out := make([]storage.Page, 0, len(d))
	for _, p := range d {
		out = append(out, p)
	}
	return out
}

// findLeafPage descends from pid to the leaf that may contain key,
// locking internal pages READ_ONLY and the leaf with perm. A nil key
// finds the leftmost leaf, used by full scans.
func (f *File) findLeafPage(tid transaction.TxnID, key types.Field, pid PageID, perm transaction.Permissions) (*LeafPage, error) {
	if pid.Cat == Leaf {
		p, err := f.pool.GetPage(tid, pid, perm)
		if err != nil {
			return nil, err
		}
		return p.(*LeafPage), nil
	}

	p, err := f.pool.GetPage(tid, pid, transaction.ReadOnly)
	if err != nil {
		return nil, err
	}
	internal := p.(*InternalPage)

	entries := internal.Entries()
	common.Assert(len(entries) > 0, "internal page %v has no entries", pid)
	for _, e := range entries {
		if key == nil || key.Compare(types.LessThanOrEq, e.Key) {
			return f.findLeafPage(tid, key, e.Left, perm)
		}
	}
	return f.findLeafPage(tid, key, entries[len(entries)-1].Right, perm)
}

// InsertTuple adds t in key order, splitting the target leaf and its
// ancestors as needed. Returns every page dirtied, including new
// pages, the root pointer and pages whose parent pointer was rewritten.
func (f *File) InsertTuple(tid transaction.TxnID, t *storage.Tuple) ([]storage.Page, error) {
	if !f.desc.Equals(t.Desc()) {
		return nil, fmt.Errorf("insert into btree %d: %w", f.id, storage.ErrSchemaMismatch)
	}
	dirty := dirtySet{}

	rp, err := f.pool.GetPage(tid, RootPtrID(f.id), transaction.ReadOnly)
	if err != nil {
		return nil, err
	}
	rootPtr := rp.(*RootPtrPage)

	rootID := rootPtr.RootID()
	if rootID == nil {
		// First insert ever: the page appended at creation becomes the
		// root leaf.
		newRoot := NewPageID(f.id, f.NumPages(), Leaf)
		rp, err = f.pool.GetPage(tid, RootPtrID(f.id), transaction.ReadWrite)
		if err != nil {
			return nil, err
		}
		rootPtr = rp.(*RootPtrPage)
		rootPtr.SetRootID(newRoot)
		dirty.add(rootPtr)
		rootID = &newRoot
	}

	leaf, err := f.findLeafPage(tid, t.Field(f.keyField), *rootID, transaction.ReadWrite)
	if err != nil {
		return nil, err
	}
	if leaf.NumEmptySlots() == 0 {
		leaf, err = f.splitLeafPage(tid, dirty, leaf, t.Field(f.keyField))
		if err != nil {
			return nil, err
		}
	}

	if err := leaf.InsertTuple(t); err != nil {
		return nil, err
	}
	dirty.add(leaf)
	return dirty.pages(), nil
}

// getParent returns the page's parent as a write-locked internal page,
// allocating a fresh internal root first when the parent is the root
// pointer.
func (f *File) getParent(tid transaction.TxnID, dirty dirtySet, parentID PageID) (*InternalPage, error) {
	if parentID.Cat == RootPtr {
		rp, err := f.pool.GetPage(tid, RootPtrID(f.id), transaction.ReadWrite)
		if err != nil {
			return nil, err
		}
		rootPtr := rp.(*RootPtrPage)

		newRootNo, err := f.getEmptyPage(tid, dirty)
		if err != nil {
			return nil, err
		}
		parentID = NewPageID(f.id, newRootNo, Internal)
		rootPtr.SetRootID(parentID)
		dirty.add(rootPtr)
	}

	p, err := f.pool.GetPage(tid, parentID, transaction.ReadWrite)
	if err != nil {
		return nil, err
	}
	parent := p.(*InternalPage)
	dirty.add(parent)
	return parent, nil
}

// splitLeafPage splits a full leaf before an insert of key field. A
// new empty leaf takes over the lower half of the tuples and becomes
// the original's left sibling; the first key remaining on the original
// is pushed into the parent, splitting it recursively if full. Returns
// the half that should receive the new tuple.
func (f *File) splitLeafPage(tid transaction.TxnID, dirty dirtySet, page *LeafPage, field types.Field) (*LeafPage, error) {
	parent, err := f.getParent(tid, dirty, page.ParentID())
	if err != nil {
		return nil, err
	}

	newPageNo, err := f.getEmptyPage(tid, dirty)
	if err != nil {
		return nil, err
	}
	lp, err := f.pool.GetPage(tid, NewPageID(f.id, newPageNo, Leaf), transaction.ReadWrite)
	if err != nil {
		return nil, err
	}
	left := lp.(*LeafPage)
	right := page
	dirty.add(left)
	dirty.add(right)

	// The new page slots in as the left half of the doubly linked leaf
	// list.
	if old := right.LeftSiblingID(); old != nil {
		op, err := f.pool.GetPage(tid, *old, transaction.ReadWrite)
		if err != nil {
			return nil, err
		}
		oldLeft := op.(*LeafPage)
		oldLeft.SetRightSiblingID(&left.pid)
		dirty.add(oldLeft)
	}
	left.SetLeftSiblingID(right.LeftSiblingID())
	left.SetRightSiblingID(&right.pid)
	right.SetLeftSiblingID(&left.pid)

	moveCount := right.NumTuples() / 2
	for i := 0; i < moveCount; i++ {
		t := right.Tuples()[0]
		if err := right.DeleteTuple(t); err != nil {
			return nil, err
		}
		if err := left.InsertTuple(t); err != nil {
			return nil, err
		}
	}
	pushKey := right.Tuples()[0].Field(f.keyField)

	if parent.NumEmptySlots() == 0 {
		parent, err = f.splitInternalPage(tid, dirty, parent, pushKey)
		if err != nil {
			return nil, err
		}
	}
	if err := parent.InsertEntry(Entry{Key: pushKey, Left: left.pid, Right: right.pid}); err != nil {
		return nil, err
	}
	if err := f.updateParentPointers(tid, dirty, parent); err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{"table": f.id, "left": left.pid.PageNum, "right": right.pid.PageNum}).
		Debug("split leaf page")

	if pushKey.Compare(types.GreaterThanOrEq, field) {
		return left, nil
	}
	return right, nil
}

// splitInternalPage splits a full internal page before an entry with
// key field is inserted. The middle entry is promoted: its key becomes
// the parent separator while its left child stays as the new left
// page's rightmost child and its right child as the original's
// leftmost. Returns the half that should receive the new entry.
func (f *File) splitInternalPage(tid transaction.TxnID, dirty dirtySet, page *InternalPage, field types.Field) (*InternalPage, error) {
	parent, err := f.getParent(tid, dirty, page.ParentID())
	if err != nil {
		return nil, err
	}

	newPageNo, err := f.getEmptyPage(tid, dirty)
	if err != nil {
		return nil, err
	}
	lp, err := f.pool.GetPage(tid, NewPageID(f.id, newPageNo, Internal), transaction.ReadWrite)
	if err != nil {
		return nil, err
	}
	left := lp.(*InternalPage)
	right := page
	dirty.add(left)
	dirty.add(right)

	moveCount := right.NumEntries() / 2
	for i := 0; i < moveCount; i++ {
		e := right.Entries()[0]
		if err := right.DeleteKeyAndLeftChild(e); err != nil {
			return nil, err
		}
		if err := left.InsertEntry(e); err != nil {
			return nil, err
		}
	}

	// Promote the middle entry by deleting it from the right page. Its
	// left child is already the left page's rightmost child (the moves
	// above share the boundary child) and its right child stays as the
	// right page's leftmost.
	promoted := right.Entries()[0]
	if err := right.DeleteKeyAndLeftChild(promoted); err != nil {
		return nil, err
	}

	if parent.NumEmptySlots() == 0 {
		parent, err = f.splitInternalPage(tid, dirty, parent, promoted.Key)
		if err != nil {
			return nil, err
		}
	}
	if err := parent.InsertEntry(Entry{Key: promoted.Key, Left: left.pid, Right: right.pid}); err != nil {
		return nil, err
	}

	if err := f.updateParentPointers(tid, dirty, parent); err != nil {
		return nil, err
	}
	if err := f.updateParentPointers(tid, dirty, left); err != nil {
		return nil, err
	}
	if err := f.updateParentPointers(tid, dirty, right); err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{"table": f.id, "left": left.pid.PageNum, "right": right.pid.PageNum}).
		Debug("split internal page")

	if promoted.Key.Compare(types.GreaterThanOrEq, field) {
		return left, nil
	}
	return right, nil
}

// treeChild is either a leaf or an internal page; both carry a parent
// pointer.
type treeChild interface {
	ParentID() PageID
	SetParentID(PageID)
}

// updateParentPointer rewrites child's parent pointer if stale.
func (f *File) updateParentPointer(tid transaction.TxnID, dirty dirtySet, pid, child PageID) error {
	var page storage.Page
	if cached, ok := dirty[child]; ok {
		page = cached
	} else {
		var err error
		page, err = f.pool.GetPage(tid, child, transaction.ReadOnly)
		if err != nil {
			return err
		}
	}

	c := page.(treeChild)
	if c.ParentID() == pid {
		return nil
	}

	p, err := f.pool.GetPage(tid, child, transaction.ReadWrite)
	if err != nil {
		return err
	}
	c = p.(treeChild)
	c.SetParentID(pid)
	dirty.add(p)
	return nil
}

// updateParentPointers rewrites the parent pointer of every child of
// page.
func (f *File) updateParentPointers(tid transaction.TxnID, dirty dirtySet, page *InternalPage) error {
	for _, child := range page.ChildIDs() {
		if err := f.updateParentPointer(tid, dirty, page.pid, child); err != nil {
			return err
		}
	}
	return nil
}

// maxEmptySlots is the underflow threshold: a page with more empty
// slots than this is below minimum occupancy.
func maxEmptySlots(numSlots int) int {
	return numSlots - numSlots/2
}

// DeleteTuple removes t, then repairs minimum occupancy on the leaf by
// redistributing with or merging into a same-parent sibling,
// cascading up the tree.
func (f *File) DeleteTuple(tid transaction.TxnID, t *storage.Tuple) ([]storage.Page, error) {
	if t.RID == nil {
		return nil, fmt.Errorf("tuple has no record id: %w", storage.ErrNotFound)
	}
	dirty := dirtySet{}

	pid := NewPageID(f.id, t.RID.PID.PageNo(), Leaf)
	p, err := f.pool.GetPage(tid, pid, transaction.ReadWrite)
	if err != nil {
		return nil, err
	}
	page := p.(*LeafPage)
	if err := page.DeleteTuple(t); err != nil {
		return nil, err
	}
	dirty.add(page)

	if page.NumEmptySlots() > maxEmptySlots(page.NumSlots()) {
		if err := f.handleMinOccupancyLeafPage(tid, dirty, page); err != nil {
			return nil, err
		}
	}
	return dirty.pages(), nil
}

// siblings locates the page's same-parent siblings through the
// parent's entry list, along with the separating entries.
func siblings(parent *InternalPage, pageID PageID) (leftEntry, rightEntry *Entry) {
	for _, e := range parent.Entries() {
		e := e
		if e.Left == pageID {
			rightEntry = &e
			break
		}
		if e.Right == pageID {
			leftEntry = &e
		}
	}
	return leftEntry, rightEntry
}

func (f *File) handleMinOccupancyLeafPage(tid transaction.TxnID, dirty dirtySet, page *LeafPage) error {
	parentID := page.ParentID()
	if parentID.Cat == RootPtr {
		// The root leaf has no minimum occupancy.
		return nil
	}

	pp, err := f.pool.GetPage(tid, parentID, transaction.ReadWrite)
	if err != nil {
		return err
	}
	parent := pp.(*InternalPage)
	leftEntry, rightEntry := siblings(parent, page.pid)

	threshold := maxEmptySlots(page.NumSlots())
	switch {
	case leftEntry != nil:
		sp, err := f.pool.GetPage(tid, leftEntry.Left, transaction.ReadWrite)
		if err != nil {
			return err
		}
		sibling := sp.(*LeafPage)
		if sibling.NumEmptySlots() >= threshold {
			return f.mergeLeafPages(tid, dirty, sibling, page, parent, *leftEntry)
		}
		f.distributeLeafTuples(dirty, parent, sibling, page, true, *leftEntry)
		return nil
	case rightEntry != nil:
		sp, err := f.pool.GetPage(tid, rightEntry.Right, transaction.ReadWrite)
		if err != nil {
			return err
		}
		sibling := sp.(*LeafPage)
		if sibling.NumEmptySlots() >= threshold {
			return f.mergeLeafPages(tid, dirty, page, sibling, parent, *rightEntry)
		}
		f.distributeLeafTuples(dirty, parent, page, sibling, false, *rightEntry)
		return nil
	default:
		return fmt.Errorf("page %v has no same-parent sibling", page.pid)
	}
}

// distributeLeafTuples evens out two sibling leaves by moving tuples
// from the richer page until occupancy differs by at most one, then
// points the parent separator at the right page's new first key.
func (f *File) distributeLeafTuples(dirty dirtySet, parent *InternalPage, left, right *LeafPage, leftToRight bool, sep Entry) {
	from, to := right, left
	if leftToRight {
		from, to = left, right
	}

	for to.NumTuples() < from.NumTuples() {
		var t *storage.Tuple
		if leftToRight {
			t = from.Tuples()[from.NumTuples()-1]
		} else {
			t = from.Tuples()[0]
		}
		common.PanicIfErr(from.DeleteTuple(t))
		common.PanicIfErr(to.InsertTuple(t))
	}

	newKey := right.Tuples()[0].Field(f.keyField)
	common.PanicIfErr(parent.ReplaceEntryKey(sep, newKey))

	dirty.add(left)
	dirty.add(right)
	dirty.add(parent)
}

func (f *File) handleMinOccupancyInternalPage(tid transaction.TxnID, dirty dirtySet, page *InternalPage) error {
	parentID := page.ParentID()
	if parentID.Cat == RootPtr {
		return nil
	}

	pp, err := f.pool.GetPage(tid, parentID, transaction.ReadWrite)
	if err != nil {
		return err
	}
	parent := pp.(*InternalPage)
	leftEntry, rightEntry := siblings(parent, page.pid)

	threshold := maxEmptySlots(page.NumSlots())
	switch {
	case leftEntry != nil:
		sp, err := f.pool.GetPage(tid, leftEntry.Left, transaction.ReadWrite)
		if err != nil {
			return err
		}
		sibling := sp.(*InternalPage)
		if sibling.NumEmptySlots() >= threshold {
			return f.mergeInternalPages(tid, dirty, sibling, page, parent, *leftEntry)
		}
		if err := f.distributeInternalEntries(dirty, parent, sibling, page, true, *leftEntry); err != nil {
			return err
		}
		if err := f.updateParentPointers(tid, dirty, sibling); err != nil {
			return err
		}
		return f.updateParentPointers(tid, dirty, page)
	case rightEntry != nil:
		sp, err := f.pool.GetPage(tid, rightEntry.Right, transaction.ReadWrite)
		if err != nil {
			return err
		}
		sibling := sp.(*InternalPage)
		if sibling.NumEmptySlots() >= threshold {
			return f.mergeInternalPages(tid, dirty, page, sibling, parent, *rightEntry)
		}
		if err := f.distributeInternalEntries(dirty, parent, page, sibling, false, *rightEntry); err != nil {
			return err
		}
		if err := f.updateParentPointers(tid, dirty, sibling); err != nil {
			return err
		}
		return f.updateParentPointers(tid, dirty, page)
	default:
		return fmt.Errorf("page %v has no same-parent sibling", page.pid)
	}
}

// distributeInternalEntries rotates entries through the parent one at
// a time: the old separator descends into the receiving page and the
// donor's boundary key rises to take its place.
func (f *File) distributeInternalEntries(dirty dirtySet, parent *InternalPage, left, right *InternalPage, leftToRight bool, sep Entry) error {
	sepKey := sep.Key
	if leftToRight {
		for right.NumEntries() < left.NumEntries() {
			e := left.Entries()[left.NumEntries()-1]
			if err := right.InsertEntry(Entry{Key: sepKey, Left: e.Right, Right: right.ChildIDs()[0]}); err != nil {
				return err
			}
			if err := left.DeleteKeyAndRightChild(e); err != nil {
				return err
			}
			sepKey = e.Key
		}
	} else {
		for left.NumEntries() < right.NumEntries() {
			e := right.Entries()[0]
			leftChildren := left.ChildIDs()
			if err := left.InsertEntry(Entry{Key: sepKey, Left: leftChildren[len(leftChildren)-1], Right: e.Left}); err != nil {
				return err
			}
			if err := right.DeleteKeyAndLeftChild(e); err != nil {
				return err
			}
			sepKey = e.Key
		}
	}

	if err := parent.ReplaceEntryKey(sep, sepKey); err != nil {
		return err
	}
	dirty.add(left)
	dirty.add(right)
	dirty.add(parent)
	return nil
}

// dropParentEntry removes the separator for a merged pair from the
// parent and repairs the tree above: an emptied root parent hands the
// root over to the merged page, an underfull parent rebalances
// recursively.
func (f *File) dropParentEntry(tid transaction.TxnID, dirty dirtySet, parent *InternalPage, sep Entry, merged treeChild, mergedID PageID) error {
	if err := parent.DeleteKeyAndRightChild(sep); err != nil {
		return err
	}
	dirty.add(parent)

	if parent.NumEntries() == 0 {
		parentID := parent.ParentID()
		if parentID.Cat != RootPtr {
			return fmt.Errorf("deleting non-root internal page %v with no entries", parent.pid)
		}

		rp, err := f.pool.GetPage(tid, RootPtrID(f.id), transaction.ReadWrite)
		if err != nil {
			return err
		}
		rootPtr := rp.(*RootPtrPage)
		merged.SetParentID(RootPtrID(f.id))
		rootPtr.SetRootID(mergedID)
		dirty.add(rootPtr)
		return f.setEmptyPage(tid, dirty, parent.pid.PageNum)
	}

	if parent.NumEmptySlots() > maxEmptySlots(parent.NumSlots()) {
		return f.handleMinOccupancyInternalPage(tid, dirty, parent)
	}
	return nil
}

// mergeLeafPages drains the right leaf into the left, stitches the
// sibling chain around the discarded page and releases it for reuse.
func (f *File) mergeLeafPages(tid transaction.TxnID, dirty dirtySet, left, right *LeafPage, parent *InternalPage, sep Entry) error {
	if err := f.dropParentEntry(tid, dirty, parent, sep, left, left.pid); err != nil {
		return err
	}

	for right.NumTuples() > 0 {
		t := right.Tuples()[0]
		if err := right.DeleteTuple(t); err != nil {
			return err
		}
		if err := left.InsertTuple(t); err != nil {
			return err
		}
	}

	newRight := right.RightSiblingID()
	left.SetRightSiblingID(newRight)
	if newRight != nil {
		np, err := f.pool.GetPage(tid, *newRight, transaction.ReadWrite)
		if err != nil {
			return err
		}
		neighbor := np.(*LeafPage)
		neighbor.SetLeftSiblingID(&left.pid)
		dirty.add(neighbor)
	}

	dirty.add(left)
	delete(dirty, storage.PageID(right.pid))
	logger.WithFields(log.Fields{"table": f.id, "into": left.pid.PageNum, "freed": right.pid.PageNum}).
		Debug("merged leaf pages")
	return f.setEmptyPage(tid, dirty, right.pid.PageNum)
}

// mergeInternalPages pulls the parent separator down into the left
// page, drains the right page after it and releases the right page.
func (f *File) mergeInternalPages(tid transaction.TxnID, dirty dirtySet, left, right *InternalPage, parent *InternalPage, sep Entry) error {
	if err := f.dropParentEntry(tid, dirty, parent, sep, left, left.pid); err != nil {
		return err
	}

	// The separator descends with the left page's last child and the
	// right page's first child at its sides.
	leftChildren := left.ChildIDs()
	if err := left.InsertEntry(Entry{Key: sep.Key, Left: leftChildren[len(leftChildren)-1], Right: right.ChildIDs()[0]}); err != nil {
		return err
	}
	for right.NumEntries() > 0 {
		e := right.Entries()[0]
		if err := right.DeleteKeyAndLeftChild(e); err != nil {
			return err
		}
		if err := left.InsertEntry(e); err != nil {
			return err
		}
	}

	dirty.add(left)
	if err := f.updateParentPointers(tid, dirty, left); err != nil {
		return err
	}

	delete(dirty, storage.PageID(right.pid))
	logger.WithFields(log.Fields{"table": f.id, "into": left.pid.PageNum, "freed": right.pid.PageNum}).
		Debug("merged internal pages")
	return f.setEmptyPage(tid, dirty, right.pid.PageNum)
}
