package catalog

import (
	"fmt"
	"sync"

	"minirel/storage"
)

// TableInfo couples a DbFile with the name and primary key it was
// registered under.
type TableInfo struct {
	File       storage.DbFile
	Name       string
	PrimaryKey string
}

// Catalog is the registry of the database's tables, keyed both by
// table id and by name. Adding a table under an existing name or id
// replaces the previous registration.
type Catalog struct {
	mu     sync.RWMutex
	tables map[int]*TableInfo
	names  map[string]int
}

func NewCatalog() *Catalog {
	return &Catalog{
		tables: map[int]*TableInfo{},
		names:  map[string]int{},
	}
}

// AddTable registers file under name with the given primary key
// field.
func (c *Catalog) AddTable(file storage.DbFile, name, primaryKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if oldID, ok := c.names[name]; ok {
		delete(c.tables, oldID)
	}
	c.tables[file.ID()] = &TableInfo{File: file, Name: name, PrimaryKey: primaryKey}
	c.names[name] = file.ID()
}

// TableID resolves a table name to its id.
func (c *Catalog) TableID(name string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.names[name]
	if !ok {
		return 0, fmt.Errorf("no table named %q: %w", name, storage.ErrNotFound)
	}
	return id, nil
}

// DatabaseFile returns the DbFile registered under tableID. This is
// the lookup the buffer pool uses on every cache miss.
func (c *Catalog) DatabaseFile(tableID int) (storage.DbFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("no table with id %d: %w", tableID, storage.ErrNotFound)
	}
	return info.File, nil
}

func (c *Catalog) TupleDesc(tableID int) (*storage.TupleDesc, error) {
	file, err := c.DatabaseFile(tableID)
	if err != nil {
		return nil, err
	}
	return file.TupleDesc(), nil
}

func (c *Catalog) TableName(tableID int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.tables[tableID]
	if !ok {
		return "", fmt.Errorf("no table with id %d: %w", tableID, storage.ErrNotFound)
	}
	return info.Name, nil
}

func (c *Catalog) PrimaryKey(tableID int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.tables[tableID]
	if !ok {
		return "", fmt.Errorf("no table with id %d: %w", tableID, storage.ErrNotFound)
	}
	return info.PrimaryKey, nil
}

// TableIDs returns the id of every registered table.
func (c *Catalog) TableIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int, 0, len(c.tables))
	for id := range c.tables {
		ids = append(ids, id)
	}
	return ids
}

// Clear drops every registration. Test support.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = map[int]*TableInfo{}
	c.names = map[string]int{}
}
