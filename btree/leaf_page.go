package btree

import (
	"encoding/binary"
	"fmt"

	"minirel/common"
	"minirel/storage"
	"minirel/types"
)

// LeafPage holds tuples in nondecreasing key order. Leaves form a
// doubly linked list through their sibling pointers; the parent
// pointer is a weak back-reference resolved through the buffer pool
// (page number 0 means the parent is the root pointer page).
//
// Layout: parent page-no, left sibling page-no, right sibling page-no,
// slot bitmap, fixed-width tuple slots. Tuples are kept dense in slot
// order, so slot index equals position in key order.
type LeafPage struct {
	dirtyState

	pid      PageID
	desc     *storage.TupleDesc
	keyField int

	parentNo int
	leftNo   int
	rightNo  int
	tuples   []*storage.Tuple
}

const leafExtraBytes = 12

// LeafSlots returns how many tuples of the given schema fit on a leaf
// page, accounting for the pointer prefix and one header bit per slot.
func LeafSlots(desc *storage.TupleDesc) int {
	return (common.PageSize()*8 - leafExtraBytes*8) / (desc.Size()*8 + 1)
}

func leafHeaderBytes(desc *storage.TupleDesc) int {
	return (LeafSlots(desc) + 7) / 8
}

func NewLeafPage(pid PageID, desc *storage.TupleDesc, keyField int, data []byte) (*LeafPage, error) {
	if len(data) != common.PageSize() {
		return nil, fmt.Errorf("leaf page must be %d bytes, got %d", common.PageSize(), len(data))
	}

	p := &LeafPage{
		pid:      pid,
		desc:     desc,
		keyField: keyField,
		parentNo: int(int32(binary.BigEndian.Uint32(data[0:4]))),
		leftNo:   int(int32(binary.BigEndian.Uint32(data[4:8]))),
		rightNo:  int(int32(binary.BigEndian.Uint32(data[8:12]))),
	}

	slots := LeafSlots(desc)
	hb := leafHeaderBytes(desc)
	header := data[leafExtraBytes : leafExtraBytes+hb]
	tupleSize := desc.Size()
	base := leafExtraBytes + hb
	for i := 0; i < slots; i++ {
		if header[i/8]&(1<<(i%8)) == 0 {
			continue
		}
		t := storage.ParseTuple(desc, data[base+i*tupleSize:])
		t.RID = storage.NewRecordID(pid, len(p.tuples))
		p.tuples = append(p.tuples, t)
	}
	return p, nil
}

func (p *LeafPage) ID() storage.PageID {
	return p.pid
}

func (p *LeafPage) Data() ([]byte, error) {
	data := make([]byte, common.PageSize())
	binary.BigEndian.PutUint32(data[0:4], uint32(int32(p.parentNo)))
	binary.BigEndian.PutUint32(data[4:8], uint32(int32(p.leftNo)))
	binary.BigEndian.PutUint32(data[8:12], uint32(int32(p.rightNo)))

	hb := leafHeaderBytes(p.desc)
	header := data[leafExtraBytes : leafExtraBytes+hb]
	base := leafExtraBytes + hb
	tupleSize := p.desc.Size()
	for i, t := range p.tuples {
		header[i/8] |= 1 << (i % 8)
		t.Serialize(data[base+i*tupleSize:])
	}
	return data, nil
}

func (p *LeafPage) NumSlots() int {
	return LeafSlots(p.desc)
}

func (p *LeafPage) NumTuples() int {
	return len(p.tuples)
}

func (p *LeafPage) NumEmptySlots() int {
	return p.NumSlots() - len(p.tuples)
}

func (p *LeafPage) key(t *storage.Tuple) types.Field {
	return t.Field(p.keyField)
}

// InsertTuple places t at its sorted position and renumbers the record
// ids of every shifted tuple.
func (p *LeafPage) InsertTuple(t *storage.Tuple) error {
	if !p.desc.Equals(t.Desc()) {
		return fmt.Errorf("insert into %v: %w", p.pid, storage.ErrSchemaMismatch)
	}
	if p.NumEmptySlots() == 0 {
		return fmt.Errorf("insert into %v: %w", p.pid, ErrPageFull)
	}

	key := p.key(t)
	pos := len(p.tuples)
	for i, cur := range p.tuples {
		if p.key(cur).Compare(types.GreaterThan, key) {
			pos = i
			break
		}
	}

	p.tuples = append(p.tuples, nil)
	copy(p.tuples[pos+1:], p.tuples[pos:])
	p.tuples[pos] = t
	p.renumberFrom(pos)
	return nil
}

// DeleteTuple removes the tuple t's record id points at.
func (p *LeafPage) DeleteTuple(t *storage.Tuple) error {
	rid := t.RID
	if rid == nil || rid.PID != storage.PageID(p.pid) {
		return fmt.Errorf("tuple is not on page %v: %w", p.pid, storage.ErrNotFound)
	}
	if rid.TupleNo < 0 || rid.TupleNo >= len(p.tuples) {
		return fmt.Errorf("slot %d of %v is empty: %w", rid.TupleNo, p.pid, storage.ErrNotFound)
	}

	pos := rid.TupleNo
	p.tuples = append(p.tuples[:pos], p.tuples[pos+1:]...)
	p.renumberFrom(pos)
	t.RID = nil
	return nil
}

func (p *LeafPage) renumberFrom(pos int) {
	for i := pos; i < len(p.tuples); i++ {
		p.tuples[i].RID = storage.NewRecordID(p.pid, i)
	}
}

// Tuples returns the page's tuples in key order.
func (p *LeafPage) Tuples() []*storage.Tuple {
	out := make([]*storage.Tuple, len(p.tuples))
	copy(out, p.tuples)
	return out
}

func (p *LeafPage) ParentID() PageID {
	if p.parentNo == 0 {
		return RootPtrID(p.pid.Table)
	}
	return NewPageID(p.pid.Table, p.parentNo, Internal)
}

func (p *LeafPage) SetParentID(id PageID) {
	if id.Cat == RootPtr {
		p.parentNo = 0
		return
	}
	common.Assert(id.Cat == Internal, "leaf parent must be internal or root ptr")
	p.parentNo = id.PageNum
}

func (p *LeafPage) LeftSiblingID() *PageID {
	if p.leftNo == 0 {
		return nil
	}
	id := NewPageID(p.pid.Table, p.leftNo, Leaf)
	return &id
}

func (p *LeafPage) RightSiblingID() *PageID {
	if p.rightNo == 0 {
		return nil
	}
	id := NewPageID(p.pid.Table, p.rightNo, Leaf)
	return &id
}

func (p *LeafPage) SetLeftSiblingID(id *PageID) {
	if id == nil {
		p.leftNo = 0
	} else {
		p.leftNo = id.PageNum
	}
}

func (p *LeafPage) SetRightSiblingID(id *PageID) {
	if id == nil {
		p.rightNo = 0
	} else {
		p.rightNo = id.PageNum
	}
}
