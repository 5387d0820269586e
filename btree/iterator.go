package btree

import (
	"minirel/storage"
	"minirel/transaction"
	"minirel/types"
)

// IndexPredicate is the condition an index scan filters on: key op
// value.
type IndexPredicate struct {
	Op    types.Op
	Field types.Field
}

// Iterator returns a full scan over the tree in key order: it walks to
// the leftmost leaf and follows the right sibling chain.
func (f *File) Iterator(tid transaction.TxnID) storage.DbFileIterator {
	return &fileIterator{file: f, tid: tid}
}

// IndexIterator returns a scan of the tuples matching ipred, starting
// at the first leaf that can hold a match and short-circuiting once
// the sorted order proves no further tuple can match.
func (f *File) IndexIterator(tid transaction.TxnID, ipred IndexPredicate) storage.DbFileIterator {
	return &searchIterator{file: f, tid: tid, ipred: ipred}
}

// leafCursor walks tuples across the leaf sibling chain.
type leafCursor struct {
	file *File
	tid  transaction.TxnID

	page   *LeafPage
	tuples []*storage.Tuple
	pos    int
}

// seek positions the cursor on the leaf for key (leftmost leaf when
// key is nil).
func (c *leafCursor) seek(key types.Field) error {
	rp, err := c.file.pool.GetPage(c.tid, RootPtrID(c.file.id), transaction.ReadOnly)
	if err != nil {
		return err
	}
	rootID := rp.(*RootPtrPage).RootID()
	if rootID == nil {
		c.page = nil
		c.tuples = nil
		return nil
	}

	c.page, err = c.file.findLeafPage(c.tid, key, *rootID, transaction.ReadOnly)
	if err != nil {
		return err
	}
	c.tuples = c.page.Tuples()
	c.pos = 0
	return nil
}

// next returns the next tuple in key order, or nil when the chain is
// exhausted.
func (c *leafCursor) next() (*storage.Tuple, error) {
	for {
		if c.page == nil {
			return nil, nil
		}
		if c.pos < len(c.tuples) {
			t := c.tuples[c.pos]
			c.pos++
			return t, nil
		}

		rightID := c.page.RightSiblingID()
		if rightID == nil {
			c.page = nil
			return nil, nil
		}
		p, err := c.file.pool.GetPage(c.tid, *rightID, transaction.ReadOnly)
		if err != nil {
			return nil, err
		}
		c.page = p.(*LeafPage)
		c.tuples = c.page.Tuples()
		c.pos = 0
	}
}

type fileIterator struct {
	file *File
	tid  transaction.TxnID

	open   bool
	cursor leafCursor
	peeked *storage.Tuple
}

func (it *fileIterator) Open() error {
	it.cursor = leafCursor{file: it.file, tid: it.tid}
	if err := it.cursor.seek(nil); err != nil {
		return err
	}
	it.open = true
	it.peeked = nil
	return nil
}

func (it *fileIterator) HasNext() (bool, error) {
	if !it.open {
		return false, storage.ErrNotOpen
	}
	if it.peeked != nil {
		return true, nil
	}
	t, err := it.cursor.next()
	if err != nil {
		return false, err
	}
	it.peeked = t
	return t != nil, nil
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
	t := it.peeked
	it.peeked = nil
	return t, nil
}

func (it *fileIterator) Rewind() error {
	it.Close()
	return it.Open()
}

func (it *fileIterator) Close() {
	it.open = false
	it.peeked = nil
	it.cursor.page = nil
}

type searchIterator struct {
	file  *File
	tid   transaction.TxnID
	ipred IndexPredicate

	open    bool
	cursor  leafCursor
	peeked  *storage.Tuple
	drained bool
}

func (it *searchIterator) Open() error {
	it.cursor = leafCursor{file: it.file, tid: it.tid}

	// Equality and greater-than scans can start at the search key's
	// leaf; less-than scans must start from the leftmost leaf.
	var seekKey types.Field
	switch it.ipred.Op {
	case types.Equals, types.GreaterThan, types.GreaterThanOrEq:
		seekKey = it.ipred.Field
	}
	if err := it.cursor.seek(seekKey); err != nil {
		return err
	}
	it.open = true
	it.peeked = nil
	it.drained = false
	return nil
}

// readNext advances to the next matching tuple, short-circuiting once
// sorted order guarantees no further match.
func (it *searchIterator) readNext() (*storage.Tuple, error) {
	for {
		t, err := it.cursor.next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, nil
		}

		key := t.Field(it.file.keyField)
		if key.Compare(it.ipred.Op, it.ipred.Field) {
			return t, nil
		}
		if it.ipred.Op == types.LessThan || it.ipred.Op == types.LessThanOrEq {
			// sorted exhaustion
			return nil, nil
		}
		if it.ipred.Op == types.Equals && key.Compare(types.GreaterThan, it.ipred.Field) {
			return nil, nil
		}
	}
}

func (it *searchIterator) HasNext() (bool, error) {
	if !it.open {
		return false, storage.ErrNotOpen
	}
	if it.peeked != nil {
		return true, nil
	}
	if it.drained {
		return false, nil
	}
	t, err := it.readNext()
	if err != nil {
		return false, err
	}
	if t == nil {
		it.drained = true
		return false, nil
	}
	it.peeked = t
	return true, nil
}

func (it *searchIterator) Next() (*storage.Tuple, error) {
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
	t := it.peeked
	it.peeked = nil
	return t, nil
}

func (it *searchIterator) Rewind() error {
	it.Close()
	return it.Open()
}

func (it *searchIterator) Close() {
	it.open = false
	it.peeked = nil
	it.cursor.page = nil
}
