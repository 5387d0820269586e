package btree

import (
	"encoding/binary"
	"fmt"

	"minirel/common"
	"minirel/storage"
	"minirel/types"
)

// Entry is one logical unit of an internal page: a key with the child
// on either side. Adjacent entries share a child.
type Entry struct {
	Key   types.Field
	Left  PageID
	Right PageID
}

// InternalPage holds m strictly ordered keys and m+1 child pointers.
// The invariant is leftmost-match: for the entry with key k, every key
// in the left subtree is <= k and every key in the right subtree is
// >= k (a leaf split copies the right page's first key up as k). All
// children of one page share a category, recorded once.
//
// Layout: parent page-no, child category tag, slot bitmap, m key
// slots, m+1 child page-no slots.
type InternalPage struct {
	dirtyState

	pid      PageID
	desc     *storage.TupleDesc
	keyField int

	parentNo int
	childCat PageCategory
	keys     []types.Field
	children []int
}

const internalExtraBytes = 4 + 1 + 4 // parent, child category, the m+1'th child

// InternalSlots returns the maximum key count m of an internal page.
func InternalSlots(desc *storage.TupleDesc, keyField int) int {
	keySize := desc.FieldType(keyField).Size()
	// one bitmap bit per key slot plus one for slot zero
	return (common.PageSize()*8 - internalExtraBytes*8 - 1) / (keySize*8 + 4*8 + 1)
}

func internalHeaderBytes(desc *storage.TupleDesc, keyField int) int {
	return (InternalSlots(desc, keyField) + 1 + 7) / 8
}

func NewInternalPage(pid PageID, desc *storage.TupleDesc, keyField int, data []byte) (*InternalPage, error) {
	if len(data) != common.PageSize() {
		return nil, fmt.Errorf("internal page must be %d bytes, got %d", common.PageSize(), len(data))
	}

	p := &InternalPage{
		pid:      pid,
		desc:     desc,
		keyField: keyField,
		parentNo: int(int32(binary.BigEndian.Uint32(data[0:4]))),
		childCat: PageCategory(data[4]),
	}

	m := InternalSlots(desc, keyField)
	hb := internalHeaderBytes(desc, keyField)
	header := data[5 : 5+hb]
	keySize := desc.FieldType(keyField).Size()
	keysBase := 5 + hb
	childrenBase := keysBase + m*keySize

	used := func(i int) bool { return header[i/8]&(1<<(i%8)) != 0 }

	if !used(0) {
		return p, nil
	}
	p.children = append(p.children, int(int32(binary.BigEndian.Uint32(data[childrenBase:]))))
	for i := 1; i <= m; i++ {
		if !used(i) {
			break
		}
		p.keys = append(p.keys, types.ParseField(desc.FieldType(keyField), data[keysBase+(i-1)*keySize:]))
		p.children = append(p.children, int(int32(binary.BigEndian.Uint32(data[childrenBase+i*4:]))))
	}
	return p, nil
}

func (p *InternalPage) ID() storage.PageID {
	return p.pid
}

func (p *InternalPage) Data() ([]byte, error) {
	data := make([]byte, common.PageSize())
	binary.BigEndian.PutUint32(data[0:4], uint32(int32(p.parentNo)))
	data[4] = byte(p.childCat)

	m := InternalSlots(p.desc, p.keyField)
	hb := internalHeaderBytes(p.desc, p.keyField)
	header := data[5 : 5+hb]
	keySize := p.desc.FieldType(p.keyField).Size()
	keysBase := 5 + hb
	childrenBase := keysBase + m*keySize

	for i, child := range p.children {
		header[i/8] |= 1 << (i % 8)
		binary.BigEndian.PutUint32(data[childrenBase+i*4:], uint32(int32(child)))
	}
	for i, key := range p.keys {
		key.Serialize(data[keysBase+i*keySize:])
	}
	return data, nil
}

func (p *InternalPage) NumSlots() int {
	return InternalSlots(p.desc, p.keyField)
}

func (p *InternalPage) NumEntries() int {
	return len(p.keys)
}

func (p *InternalPage) NumEmptySlots() int {
	return p.NumSlots() - len(p.keys)
}

// ChildCategory is the category shared by every child of this page.
func (p *InternalPage) ChildCategory() PageCategory {
	return p.childCat
}

func (p *InternalPage) childID(i int) PageID {
	return NewPageID(p.pid.Table, p.children[i], p.childCat)
}

// Entries returns the page's entries in key order.
func (p *InternalPage) Entries() []Entry {
	out := make([]Entry, len(p.keys))
	for i, key := range p.keys {
		out[i] = Entry{Key: key, Left: p.childID(i), Right: p.childID(i + 1)}
	}
	return out
}

// ChildIDs returns every child pointer in order.
func (p *InternalPage) ChildIDs() []PageID {
	out := make([]PageID, len(p.children))
	for i := range p.children {
		out[i] = p.childID(i)
	}
	return out
}

// InsertEntry places e at its key position. One of e's children must
// already be present on the page as the anchor; the other is spliced
// in beside it. The very first entry establishes both children and the
// child category.
func (p *InternalPage) InsertEntry(e Entry) error {
	if len(p.keys) >= p.NumSlots() {
		return fmt.Errorf("insert entry into %v: %w", p.pid, ErrPageFull)
	}
	if e.Left.Cat != e.Right.Cat {
		return fmt.Errorf("entry children of mixed category: %v vs %v", e.Left.Cat, e.Right.Cat)
	}

	if len(p.children) == 0 {
		p.childCat = e.Left.Cat
		p.children = []int{e.Left.PageNum, e.Right.PageNum}
		p.keys = []types.Field{e.Key}
		return nil
	}
	if e.Left.Cat != p.childCat {
		return fmt.Errorf("entry child category %v does not match page %v", e.Left.Cat, p.childCat)
	}

	pos := len(p.keys)
	for i, key := range p.keys {
		if key.Compare(types.GreaterThan, e.Key) {
			pos = i
			break
		}
	}

	switch {
	case p.children[pos] == e.Left.PageNum:
		p.keys = insertKey(p.keys, pos, e.Key)
		p.children = insertChild(p.children, pos+1, e.Right.PageNum)
	case p.children[pos] == e.Right.PageNum:
		p.keys = insertKey(p.keys, pos, e.Key)
		p.children = insertChild(p.children, pos, e.Left.PageNum)
	default:
		return fmt.Errorf("entry %v has no anchor child on %v", e.Key, p.pid)
	}
	return nil
}

// DeleteKeyAndRightChild removes e's key and its right child pointer.
// Used when e is drained toward the left.
func (p *InternalPage) DeleteKeyAndRightChild(e Entry) error {
	for i, key := range p.keys {
		if key.Compare(types.Equals, e.Key) && p.children[i+1] == e.Right.PageNum {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			p.children = append(p.children[:i+1], p.children[i+2:]...)
			return nil
		}
	}
	return fmt.Errorf("entry %v not on page %v: %w", e.Key, p.pid, storage.ErrNotFound)
}

// DeleteKeyAndLeftChild removes e's key and its left child pointer.
// Used when e is drained toward the right.
func (p *InternalPage) DeleteKeyAndLeftChild(e Entry) error {
	for i, key := range p.keys {
		if key.Compare(types.Equals, e.Key) && p.children[i] == e.Left.PageNum {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			p.children = append(p.children[:i], p.children[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("entry %v not on page %v: %w", e.Key, p.pid, storage.ErrNotFound)
}

// ReplaceEntryKey rewrites the key of the entry separating left and
// right.
func (p *InternalPage) ReplaceEntryKey(old Entry, key types.Field) error {
	for i := range p.keys {
		if p.children[i] == old.Left.PageNum && p.children[i+1] == old.Right.PageNum {
			p.keys[i] = key
			return nil
		}
	}
	return fmt.Errorf("entry %v not on page %v: %w", old.Key, p.pid, storage.ErrNotFound)
}

func (p *InternalPage) ParentID() PageID {
	if p.parentNo == 0 {
		return RootPtrID(p.pid.Table)
	}
	return NewPageID(p.pid.Table, p.parentNo, Internal)
}

func (p *InternalPage) SetParentID(id PageID) {
	if id.Cat == RootPtr {
		p.parentNo = 0
		return
	}
	common.Assert(id.Cat == Internal, "internal parent must be internal or root ptr")
	p.parentNo = id.PageNum
}

func insertKey(keys []types.Field, pos int, key types.Field) []types.Field {
	keys = append(keys, nil)
	copy(keys[pos+1:], keys[pos:])
	keys[pos] = key
	return keys
}

func insertChild(children []int, pos, child int) []int {
	children = append(children, 0)
	copy(children[pos+1:], children[pos:])
	children[pos] = child
	return children
}
