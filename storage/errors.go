package storage

import "errors"

var (
	// ErrSchemaMismatch reports a tuple descriptor disagreement on
	// insert or merge.
	ErrSchemaMismatch = errors.New("tuple descriptor mismatch")

	// ErrNotFound reports a missing slot, tuple or field name.
	ErrNotFound = errors.New("not found")

	// ErrNoSuchElement reports Next called on an exhausted iterator.
	ErrNoSuchElement = errors.New("no such element")

	// ErrNotOpen reports iterator use before Open or after Close.
	ErrNotOpen = errors.New("iterator is not open")
)
