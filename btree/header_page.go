package btree

import (
	"encoding/binary"
	"fmt"

	"minirel/common"
	"minirel/storage"
)

// HeaderPage is a bitmap over the file's page numbers: bit i set means
// page i is allocated, clear means it is free for reuse. Header pages
// chain through prev/next pointers so the bitmap can cover arbitrarily
// many pages; header k covers page numbers [k*numSlots, (k+1)*numSlots).
type HeaderPage struct {
	dirtyState

	pid    PageID
	prevNo int
	nextNo int
	bitmap []byte
}

// HeaderSlots returns how many page numbers one header page covers.
func HeaderSlots() int {
	return (common.PageSize() - 8) * 8
}

func NewHeaderPage(pid PageID, data []byte) (*HeaderPage, error) {
	if len(data) != common.PageSize() {
		return nil, fmt.Errorf("header page must be %d bytes, got %d", common.PageSize(), len(data))
	}
	p := &HeaderPage{
		pid:    pid,
		prevNo: int(int32(binary.BigEndian.Uint32(data[0:4]))),
		nextNo: int(int32(binary.BigEndian.Uint32(data[4:8]))),
		bitmap: make([]byte, common.PageSize()-8),
	}
	copy(p.bitmap, data[8:])
	return p, nil
}

func (p *HeaderPage) ID() storage.PageID {
	return p.pid
}

func (p *HeaderPage) Data() ([]byte, error) {
	data := make([]byte, common.PageSize())
	binary.BigEndian.PutUint32(data[0:4], uint32(int32(p.prevNo)))
	binary.BigEndian.PutUint32(data[4:8], uint32(int32(p.nextNo)))
	copy(data[8:], p.bitmap)
	return data, nil
}

// Init marks every slot allocated. A fresh header page starts fully
// used and individual slots are cleared as pages are released.
func (p *HeaderPage) Init() {
	for i := range p.bitmap {
		p.bitmap[i] = 0xff
	}
}

func (p *HeaderPage) PrevID() *PageID {
	if p.prevNo == 0 {
		return nil
	}
	id := NewPageID(p.pid.Table, p.prevNo, Header)
	return &id
}

func (p *HeaderPage) NextID() *PageID {
	if p.nextNo == 0 {
		return nil
	}
	id := NewPageID(p.pid.Table, p.nextNo, Header)
	return &id
}

func (p *HeaderPage) SetPrevID(id *PageID) {
	if id == nil {
		p.prevNo = 0
	} else {
		p.prevNo = id.PageNum
	}
}

func (p *HeaderPage) SetNextID(id *PageID) {
	if id == nil {
		p.nextNo = 0
	} else {
		p.nextNo = id.PageNum
	}
}

func (p *HeaderPage) SlotUsed(i int) bool {
	return p.bitmap[i/8]&(1<<(i%8)) != 0
}

func (p *HeaderPage) MarkSlotUsed(i int, used bool) {
	if used {
		p.bitmap[i/8] |= 1 << (i % 8)
	} else {
		p.bitmap[i/8] &^= 1 << (i % 8)
	}
}

// EmptySlot returns the lowest free slot, or -1 when every covered
// page is allocated.
func (p *HeaderPage) EmptySlot() int {
	for byteNo, b := range p.bitmap {
		if b == 0xff {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) == 0 {
				return byteNo*8 + bit
			}
		}
	}
	return -1
}
