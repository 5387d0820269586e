package heap

import (
	"errors"
	"fmt"
	"sync"

	"minirel/common"
	"minirel/storage"
	"minirel/transaction"
)

// ErrPageFull reports an insert into a page with no empty slot. The
// heap file handles it by moving on to the next page or appending one.
var ErrPageFull = errors.New("page has no empty slots")

// Page is a slotted heap page: a bitmap header with one bit per slot
// (LSB first, 1 = occupied) followed by fixed-width tuple slots.
//
// Invariant: a header bit is set iff the slot holds a valid tuple.
type Page struct {
	pid  PageID
	desc *storage.TupleDesc

	header []byte
	tuples []*storage.Tuple

	mu      sync.Mutex
	dirtier *transaction.TxnID
}

// SlotsPerPage returns how many tuples of the given schema fit on one
// page, accounting for the one header bit each slot costs.
func SlotsPerPage(desc *storage.TupleDesc) int {
	return (common.PageSize() * 8) / (desc.Size()*8 + 1)
}

func headerBytes(slots int) int {
	return (slots + 7) / 8
}

// NewPage parses a page from its on-disk bytes. Tuples in occupied
// slots get record ids of (pid, slot); unused slot bytes are ignored.
func NewPage(pid PageID, desc *storage.TupleDesc, data []byte) (*Page, error) {
	if len(data) != common.PageSize() {
		return nil, fmt.Errorf("heap page must be %d bytes, got %d", common.PageSize(), len(data))
	}

	slots := SlotsPerPage(desc)
	hb := headerBytes(slots)

	p := &Page{
		pid:    pid,
		desc:   desc,
		header: make([]byte, hb),
		tuples: make([]*storage.Tuple, slots),
	}
	copy(p.header, data[:hb])

	tupleSize := desc.Size()
	for i := 0; i < slots; i++ {
		if !p.slotUsed(i) {
			continue
		}
		off := hb + i*tupleSize
		t := storage.ParseTuple(desc, data[off:off+tupleSize])
		t.RID = storage.NewRecordID(pid, i)
		p.tuples[i] = t
	}
	return p, nil
}

// NewEmptyPage returns an all-slots-free page, the image a fresh page
// has on disk.
func NewEmptyPage(pid PageID, desc *storage.TupleDesc) *Page {
	slots := SlotsPerPage(desc)
	return &Page{
		pid:    pid,
		desc:   desc,
		header: make([]byte, headerBytes(slots)),
		tuples: make([]*storage.Tuple, slots),
	}
}

// EmptyPageData is the disk image of a page with no tuples.
func EmptyPageData() []byte {
	return make([]byte, common.PageSize())
}

func (p *Page) ID() storage.PageID {
	return p.pid
}

func (p *Page) TupleDesc() *storage.TupleDesc {
	return p.desc
}

// Data serializes the page back to exactly PageSize bytes, the inverse
// of NewPage. Empty slots are zero-filled.
func (p *Page) Data() ([]byte, error) {
	data := make([]byte, common.PageSize())
	copy(data, p.header)

	tupleSize := p.desc.Size()
	hb := len(p.header)
	for i, t := range p.tuples {
		if t == nil {
			continue
		}
		t.Serialize(data[hb+i*tupleSize:])
	}
	return data, nil
}

func (p *Page) slotUsed(i int) bool {
	return p.header[i/8]&(1<<(i%8)) != 0
}

func (p *Page) setSlot(i int, used bool) {
	if used {
		p.header[i/8] |= 1 << (i % 8)
	} else {
		p.header[i/8] &^= 1 << (i % 8)
	}
}

func (p *Page) NumSlots() int {
	return len(p.tuples)
}

func (p *Page) NumEmptySlots() int {
	empty := 0
	for i := range p.tuples {
		if !p.slotUsed(i) {
			empty++
		}
	}
	return empty
}

// InsertTuple stores t in the lowest-numbered empty slot and stamps
// its record id. Fails with ErrPageFull when no slot is free and
// storage.ErrSchemaMismatch when descriptors differ.
func (p *Page) InsertTuple(t *storage.Tuple) error {
	if !p.desc.Equals(t.Desc()) {
		return fmt.Errorf("insert into %v: %w", p.pid, storage.ErrSchemaMismatch)
	}

	for i := range p.tuples {
		if p.slotUsed(i) {
			continue
		}
		p.setSlot(i, true)
		t.RID = storage.NewRecordID(p.pid, i)
		p.tuples[i] = t
		return nil
	}
	return fmt.Errorf("insert into %v: %w", p.pid, ErrPageFull)
}

// DeleteTuple clears the slot t's record id points at. Fails with
// storage.ErrNotFound when the tuple is not on this page or the slot
// is already empty.
func (p *Page) DeleteTuple(t *storage.Tuple) error {
	rid := t.RID
	if rid == nil || rid.PID != storage.PageID(p.pid) {
		return fmt.Errorf("tuple is not on page %v: %w", p.pid, storage.ErrNotFound)
	}
	if rid.TupleNo < 0 || rid.TupleNo >= len(p.tuples) || !p.slotUsed(rid.TupleNo) {
		return fmt.Errorf("slot %d of %v is empty: %w", rid.TupleNo, p.pid, storage.ErrNotFound)
	}

	p.setSlot(rid.TupleNo, false)
	p.tuples[rid.TupleNo] = nil
	return nil
}

func (p *Page) Dirtier() *transaction.TxnID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirtier
}

func (p *Page) MarkDirty(dirty bool, tid transaction.TxnID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dirty {
		t := tid
		p.dirtier = &t
	} else {
		p.dirtier = nil
	}
}

// Tuples returns the occupied slots in slot order.
func (p *Page) Tuples() []*storage.Tuple {
	out := make([]*storage.Tuple, 0, len(p.tuples))
	for i, t := range p.tuples {
		if p.slotUsed(i) {
			out = append(out, t)
		}
	}
	return out
}
