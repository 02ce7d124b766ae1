// Copyright (C) 2017 ScyllaDB

package repair

import (
	"sync"

	"github.com/scylladb/scylla-autorepair/pkg/util/uuid"
)

// TableReference identifies a table, references of the same table are equal.
type TableReference struct {
	ID       uuid.UUID `json:"id"`
	Keyspace string    `json:"keyspace"`
	Table    string    `json:"table"`
}

func (t TableReference) String() string {
	return t.Keyspace + "." + t.Table
}

type tableName struct {
	keyspace string
	table    string
}

// TableReferenceFactory creates table references, IDs are computed once
// per table and cached until the table or its keyspace is forgotten.
type TableReferenceFactory struct {
	mu     sync.Mutex
	tables map[tableName]TableReference
}

// NewTableReferenceFactory returns an empty factory.
func NewTableReferenceFactory() *TableReferenceFactory {
	return &TableReferenceFactory{
		tables: make(map[tableName]TableReference),
	}
}

// ForTable returns reference to the table.
func (f *TableReferenceFactory) ForTable(keyspace, table string) TableReference {
	k := tableName{keyspace: keyspace, table: table}

	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[k]; ok {
		return t
	}
	t := TableReference{
		ID:       uuid.NewFromStrings(keyspace, table),
		Keyspace: keyspace,
		Table:    table,
	}
	f.tables[k] = t
	return t
}

// ForgetTable drops the cached reference of a table.
func (f *TableReferenceFactory) ForgetTable(keyspace, table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tables, tableName{keyspace: keyspace, table: table})
}

// Forget drops cached references of all tables of a keyspace.
func (f *TableReferenceFactory) Forget(keyspace string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.tables {
		if k.keyspace == keyspace {
			delete(f.tables, k)
		}
	}
}

// Len returns number of cached references.
func (f *TableReferenceFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables)
}
