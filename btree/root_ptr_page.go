package btree

import (
	"encoding/binary"
	"fmt"

	"minirel/common"
	"minirel/storage"
)

// RootPtrSize is the on-disk size of the root pointer page: root page
// number, root category and first header page number.
const RootPtrSize = 4 + 1 + 4

// RootPtrPage is the singleton first page of a b+ tree file. It names
// the current root (page number 0 when the tree has never been
// initialized) and the head of the header page chain (0 when no header
// pages exist).
type RootPtrPage struct {
	dirtyState

	pid      PageID
	rootNo   int
	rootCat  PageCategory
	headerNo int
}

// NewRootPtrPage parses the root pointer page from its disk bytes.
func NewRootPtrPage(pid PageID, data []byte) (*RootPtrPage, error) {
	if len(data) < RootPtrSize {
		return nil, fmt.Errorf("root ptr page must be %d bytes, got %d", RootPtrSize, len(data))
	}
	return &RootPtrPage{
		pid:      pid,
		rootNo:   int(int32(binary.BigEndian.Uint32(data[0:4]))),
		rootCat:  PageCategory(data[4]),
		headerNo: int(int32(binary.BigEndian.Uint32(data[5:9]))),
	}, nil
}

// EmptyRootPtrData is the disk image of a root pointer page with no
// root and no header chain.
func EmptyRootPtrData() []byte {
	return make([]byte, RootPtrSize)
}

func (p *RootPtrPage) ID() storage.PageID {
	return p.pid
}

func (p *RootPtrPage) Data() ([]byte, error) {
	data := make([]byte, RootPtrSize)
	binary.BigEndian.PutUint32(data[0:4], uint32(int32(p.rootNo)))
	data[4] = byte(p.rootCat)
	binary.BigEndian.PutUint32(data[5:9], uint32(int32(p.headerNo)))
	return data, nil
}

// RootID returns the current root's page id, or nil when the tree is
// uninitialized.
func (p *RootPtrPage) RootID() *PageID {
	if p.rootNo == 0 {
		return nil
	}
	id := NewPageID(p.pid.Table, p.rootNo, p.rootCat)
	return &id
}

func (p *RootPtrPage) SetRootID(id PageID) {
	common.Assert(id.Cat == Leaf || id.Cat == Internal, "root must be a leaf or internal page")
	p.rootNo = id.PageNum
	p.rootCat = id.Cat
}

// HeaderID returns the first header page id, or nil when the chain is
// empty.
func (p *RootPtrPage) HeaderID() *PageID {
	if p.headerNo == 0 {
		return nil
	}
	id := NewPageID(p.pid.Table, p.headerNo, Header)
	return &id
}

func (p *RootPtrPage) SetHeaderID(id *PageID) {
	if id == nil {
		p.headerNo = 0
		return
	}
	p.headerNo = id.PageNum
}
