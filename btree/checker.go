package btree

import (
	"fmt"

	"minirel/transaction"
	"minirel/types"
)

// CheckIntegrity walks the whole tree and verifies its structural
// invariants: key ordering and subtree bounds under every internal
// page, the doubly linked leaf list, parent pointers and minimum
// occupancy of every non-root page. Test and tooling support.
func (f *File) CheckIntegrity(tid transaction.TxnID) error {
	rp, err := f.pool.GetPage(tid, RootPtrID(f.id), transaction.ReadOnly)
	if err != nil {
		return err
	}
	rootID := rp.(*RootPtrPage).RootID()
	if rootID == nil {
		return nil
	}

	if err := f.checkSubtree(tid, *rootID, RootPtrID(f.id), nil, nil, true); err != nil {
		return err
	}
	return f.checkLeafChain(tid)
}

// checkSubtree verifies the subtree rooted at pid: every key lies in
// [lower, upper], the parent pointer names parent, and non-root pages
// meet minimum occupancy.
func (f *File) checkSubtree(tid transaction.TxnID, pid, parent PageID, lower, upper types.Field, isRoot bool) error {
	p, err := f.pool.GetPage(tid, pid, transaction.ReadOnly)
	if err != nil {
		return err
	}

	switch page := p.(type) {
	case *LeafPage:
		if page.ParentID() != parent {
			return fmt.Errorf("leaf %v parent pointer %v, want %v", pid, page.ParentID(), parent)
		}
		if !isRoot && page.NumEmptySlots() > maxEmptySlots(page.NumSlots()) {
			return fmt.Errorf("leaf %v below minimum occupancy: %d/%d", pid, page.NumTuples(), page.NumSlots())
		}
		var prev types.Field
		for _, t := range page.Tuples() {
			key := t.Field(f.keyField)
			if prev != nil && prev.Compare(types.GreaterThan, key) {
				return fmt.Errorf("leaf %v keys out of order", pid)
			}
			if lower != nil && !key.Compare(types.GreaterThanOrEq, lower) {
				return fmt.Errorf("leaf %v key %v below bound %v", pid, key, lower)
			}
			if upper != nil && !key.Compare(types.LessThanOrEq, upper) {
				return fmt.Errorf("leaf %v key %v above bound %v", pid, key, upper)
			}
			prev = key
		}
		return nil

	case *InternalPage:
		if page.ParentID() != parent {
			return fmt.Errorf("internal %v parent pointer %v, want %v", pid, page.ParentID(), parent)
		}
		if page.NumEntries() == 0 {
			return fmt.Errorf("internal %v has no entries", pid)
		}
		if !isRoot && page.NumEmptySlots() > maxEmptySlots(page.NumSlots()) {
			return fmt.Errorf("internal %v below minimum occupancy: %d/%d", pid, page.NumEntries(), page.NumSlots())
		}

		entries := page.Entries()
		var prev types.Field
		for _, e := range entries {
			if prev != nil && prev.Compare(types.GreaterThan, e.Key) {
				return fmt.Errorf("internal %v keys out of order", pid)
			}
			prev = e.Key
		}

		childLower := lower
		for _, e := range entries {
			if err := f.checkSubtree(tid, e.Left, pid, childLower, e.Key, false); err != nil {
				return err
			}
			childLower = e.Key
		}
		return f.checkSubtree(tid, entries[len(entries)-1].Right, pid, childLower, upper, false)

	default:
		return fmt.Errorf("page %v has unexpected type %T in tree", pid, p)
	}
}

// checkLeafChain verifies the doubly linked leaf list left to right.
func (f *File) checkLeafChain(tid transaction.TxnID) error {
	leaf, err := f.leftmostLeaf(tid)
	if err != nil || leaf == nil {
		return err
	}

	if leaf.LeftSiblingID() != nil {
		return fmt.Errorf("leftmost leaf %v has a left sibling", leaf.pid)
	}
	for {
		rightID := leaf.RightSiblingID()
		if rightID == nil {
			return nil
		}
		p, err := f.pool.GetPage(tid, *rightID, transaction.ReadOnly)
		if err != nil {
			return err
		}
		right := p.(*LeafPage)
		if left := right.LeftSiblingID(); left == nil || *left != leaf.pid {
			return fmt.Errorf("leaf %v right sibling %v does not point back", leaf.pid, right.pid)
		}
		leaf = right
	}
}

func (f *File) leftmostLeaf(tid transaction.TxnID) (*LeafPage, error) {
	rp, err := f.pool.GetPage(tid, RootPtrID(f.id), transaction.ReadOnly)
	if err != nil {
		return nil, err
	}
	rootID := rp.(*RootPtrPage).RootID()
	if rootID == nil {
		return nil, nil
	}
	return f.findLeafPage(tid, nil, *rootID, transaction.ReadOnly)
}

// CountTuples returns the number of tuples in the tree by walking the
// leaf chain.
func (f *File) CountTuples(tid transaction.TxnID) (int, error) {
	leaf, err := f.leftmostLeaf(tid)
	if err != nil || leaf == nil {
		return 0, err
	}

	n := 0
	for {
		n += leaf.NumTuples()
		rightID := leaf.RightSiblingID()
		if rightID == nil {
			return n, nil
		}
		p, err := f.pool.GetPage(tid, *rightID, transaction.ReadOnly)
		if err != nil {
			return 0, err
		}
		leaf = p.(*LeafPage)
	}
}
