package storage

import (
	"fmt"
	"strings"

	"minirel/types"
)

// TDItem is one column of a schema: its type and an optional name.
type TDItem struct {
	Type types.Type
	Name string
}

// TupleDesc describes the fixed schema of a tuple: an ordered sequence
// of typed, optionally named columns. Descriptors are immutable once
// built.
type TupleDesc struct {
	items []TDItem
	size  int
}

func NewTupleDesc(items []TDItem) *TupleDesc {
	size := 0
	for _, item := range items {
		size += item.Type.Size()
	}
	return &TupleDesc{items: items, size: size}
}

// NewTupleDescFromTypes builds a descriptor with unnamed columns.
func NewTupleDescFromTypes(ts ...types.Type) *TupleDesc {
	items := make([]TDItem, len(ts))
	for i, t := range ts {
		items[i] = TDItem{Type: t}
	}
	return NewTupleDesc(items)
}

func (td *TupleDesc) NumFields() int {
	return len(td.items)
}

func (td *TupleDesc) FieldType(i int) types.Type {
	return td.items[i].Type
}

func (td *TupleDesc) FieldName(i int) string {
	return td.items[i].Name
}

// FieldIndex resolves a column name to its ordinal. Returns
// ErrNotFound for unknown names.
func (td *TupleDesc) FieldIndex(name string) (int, error) {
	for i, item := range td.items {
		if item.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no field named %q: %w", name, ErrNotFound)
}

// Size returns the serialized width of a tuple with this schema.
func (td *TupleDesc) Size() int {
	return td.size
}

// Equals reports whether the type sequences match; names are ignored.
func (td *TupleDesc) Equals(other *TupleDesc) bool {
	if other == nil || len(td.items) != len(other.items) {
		return false
	}
	for i := range td.items {
		if td.items[i].Type != other.items[i].Type {
			return false
		}
	}
	return true
}

// Combine concatenates two descriptors, first's columns before
// second's.
func Combine(first, second *TupleDesc) *TupleDesc {
	items := make([]TDItem, 0, len(first.items)+len(second.items))
	items = append(items, first.items...)
	items = append(items, second.items...)
	return NewTupleDesc(items)
}

func (td *TupleDesc) String() string {
	parts := make([]string, len(td.items))
	for i, item := range td.items {
		parts[i] = fmt.Sprintf("%s(%s)", item.Type, item.Name)
	}
	return strings.Join(parts, ",")
}
