// Package db wires the catalog and the buffer pool into one database
// handle.
package db

import (
	"minirel/buffer"
	"minirel/catalog"
	"minirel/common"
)

type Database struct {
	Catalog *catalog.Catalog
	Pool    *buffer.Pool
}

// New creates a database with the given buffer pool capacity; zero or
// negative means the default.
func New(poolSize int) *Database {
	c := catalog.NewCatalog()
	return &Database{
		Catalog: c,
		Pool:    buffer.NewPool(poolSize, c),
	}
}

// NewDefault creates a database with the default pool capacity.
func NewDefault() *Database {
	return New(common.DefaultPoolSize)
}
