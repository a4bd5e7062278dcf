package dummydb

import (
	"context"
	"sync"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

type (
	// DB is an in-memory database, used for the demo mode and in tests.
	DB struct {
		user    *userTable
		records *recordTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	recordTable struct {
		sync.RWMutex
		table map[academic.Kind]map[string]interface{}
		fail  FailFunc
	}

	// FailFunc decides whether a write should fail. op is one of create, update or delete.
	FailFunc func(ctx context.Context, op string, kind academic.Kind, id string) error
)

func Open() *DB {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		records: &recordTable{table: make(map[academic.Kind]map[string]interface{})},
	}
	for _, kind := range academic.Kinds {
		db.records.table[kind] = make(map[string]interface{})
	}
	return db
}

// FailWith installs fn to simulate backend failures. nil removes it.
func (db *DB) FailWith(fn FailFunc) {
	db.records.Lock()
	defer db.records.Unlock()
	db.records.fail = fn
}

// Count returns the number of stored records of kind.
func (db *DB) Count(kind academic.Kind) int {
	db.records.RLock()
	defer db.records.RUnlock()
	return len(db.records.table[kind])
}

// Record returns the stored record of kind with the given id.
func (db *DB) Record(kind academic.Kind, id string) (interface{}, bool) {
	db.records.RLock()
	defer db.records.RUnlock()
	rec, ok := db.records.table[kind][id]
	return rec, ok
}
