package heap

import "fmt"

// PageID identifies one page of a heap file.
type PageID struct {
	Table   int
	PageNum int
}

func NewPageID(table, pageNum int) PageID {
	return PageID{Table: table, PageNum: pageNum}
}

func (p PageID) TableID() int {
	return p.Table
}

func (p PageID) PageNo() int {
	return p.PageNum
}

func (p PageID) String() string {
	return fmt.Sprintf("heap(%d:%d)", p.Table, p.PageNum)
}
