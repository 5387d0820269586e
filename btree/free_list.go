package btree

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"minirel/common"
	"minirel/storage"
	"minirel/transaction"
)

// zeroPage writes an all-zero page image at pageNo so a reallocated
// page parses as empty under any category.
func (f *File) zeroPage(pageNo int) error {
	if _, err := f.file.WriteAt(make([]byte, common.PageSize()), pageOffset(pageNo)); err != nil {
		return fmt.Errorf("zero page %d: %w", pageNo, err)
	}
	return nil
}

// discardAll drops every cache entry a reused page number might be
// held under. A freed page may have been cached as any category.
func (f *File) discardAll(pageNo int) {
	f.pool.DiscardPage(NewPageID(f.id, pageNo, Internal))
	f.pool.DiscardPage(NewPageID(f.id, pageNo, Leaf))
	f.pool.DiscardPage(NewPageID(f.id, pageNo, Header))
}

// getEmptyPage returns the number of a free page, preferring a cleared
// bit in the header chain and appending a fresh page at end of file
// otherwise. The returned page is zeroed on disk and absent from the
// buffer pool.
func (f *File) getEmptyPage(tid transaction.TxnID, dirty dirtySet) (int, error) {
	rp, err := f.pool.GetPage(tid, RootPtrID(f.id), transaction.ReadOnly)
	if err != nil {
		return 0, err
	}
	rootPtr := rp.(*RootPtrPage)

	headerID := rootPtr.HeaderID()
	for index := 0; headerID != nil; index++ {
		hp, err := f.pool.GetPage(tid, *headerID, transaction.ReadOnly)
		if err != nil {
			return 0, err
		}
		header := hp.(*HeaderPage)

		if header.EmptySlot() != -1 {
			hp, err = f.pool.GetPage(tid, *headerID, transaction.ReadWrite)
			if err != nil {
				return 0, err
			}
			header = hp.(*HeaderPage)
			slot := header.EmptySlot()
			header.MarkSlotUsed(slot, true)
			dirty.add(header)

			pageNo := index*HeaderSlots() + slot
			if err := f.zeroPage(pageNo); err != nil {
				return 0, err
			}
			f.discardAll(pageNo)
			logger.WithFields(log.Fields{"table": f.id, "page": pageNo}).Debug("reusing free page")
			return pageNo, nil
		}
		headerID = header.NextID()
	}

	// No header chain or no free slot anywhere: append.
	f.fileMu.Lock()
	defer f.fileMu.Unlock()
	pageNo := f.NumPages() + 1
	if err := f.zeroPage(pageNo); err != nil {
		return 0, err
	}
	return pageNo, nil
}

// setEmptyPage releases pageNo for reuse: the last page of the file is
// simply truncated away, any other page gets its bit cleared in the
// covering header page, extending the chain as needed.
func (f *File) setEmptyPage(tid transaction.TxnID, dirty dirtySet, pageNo int) error {
	f.fileMu.Lock()
	if pageNo == f.NumPages() {
		if pageNo <= 1 {
			// The only page of the file stays as the empty root leaf.
			f.fileMu.Unlock()
			return nil
		}
		err := f.file.Truncate(pageOffset(pageNo))
		f.fileMu.Unlock()
		if err != nil {
			return fmt.Errorf("truncate freed page %d: %w", pageNo, err)
		}
		f.discardAll(pageNo)
		for _, cat := range []PageCategory{Internal, Leaf, Header} {
			delete(dirty, storage.PageID(NewPageID(f.id, pageNo, cat)))
		}
		return nil
	}
	f.fileMu.Unlock()

	rp, err := f.pool.GetPage(tid, RootPtrID(f.id), transaction.ReadOnly)
	if err != nil {
		return err
	}
	rootPtr := rp.(*RootPtrPage)

	headerID := rootPtr.HeaderID()
	if headerID == nil {
		rp, err = f.pool.GetPage(tid, RootPtrID(f.id), transaction.ReadWrite)
		if err != nil {
			return err
		}
		rootPtr = rp.(*RootPtrPage)

		headerPageNo, err := f.getEmptyPage(tid, dirty)
		if err != nil {
			return err
		}
		hid := NewPageID(f.id, headerPageNo, Header)
		hp, err := f.pool.GetPage(tid, hid, transaction.ReadWrite)
		if err != nil {
			return err
		}
		header := hp.(*HeaderPage)
		header.Init()
		rootPtr.SetHeaderID(&hid)
		dirty.add(header)
		dirty.add(rootPtr)
		headerID = &hid
	}

	targetIndex := pageNo / HeaderSlots()
	slot := pageNo % HeaderSlots()

	hp, err := f.pool.GetPage(tid, *headerID, transaction.ReadWrite)
	if err != nil {
		return err
	}
	header := hp.(*HeaderPage)
	for index := 0; index < targetIndex; index++ {
		nextID := header.NextID()
		if nextID == nil {
			nextPageNo, err := f.getEmptyPage(tid, dirty)
			if err != nil {
				return err
			}
			nid := NewPageID(f.id, nextPageNo, Header)
			np, err := f.pool.GetPage(tid, nid, transaction.ReadWrite)
			if err != nil {
				return err
			}
			next := np.(*HeaderPage)
			next.Init()
			next.SetPrevID(&header.pid)
			header.SetNextID(&nid)
			dirty.add(next)
			dirty.add(header)
			nextID = &nid
		}

		hp, err = f.pool.GetPage(tid, *nextID, transaction.ReadWrite)
		if err != nil {
			return err
		}
		header = hp.(*HeaderPage)
	}

	header.MarkSlotUsed(slot, false)
	dirty.add(header)
	logger.WithFields(log.Fields{"table": f.id, "page": pageNo}).Debug("released page to free list")
	return nil
}
