// Package memstore is an in-process storage.Store used by tests and the
// benchmark harness, grounded on dborchard-tiny-txn's MvStore: an ordered
// index over github.com/tidwall/btree keyed by (table, key) so that a point
// CAS and a future range scan (the B-tree backend's node reads) share one
// structure instead of a plain map.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidwall/btree"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/storage"
	"github.com/Stone1973/telldb/tuple"
)

type recordKey struct {
	table string
	key   uint64
}

func (a recordKey) less(b recordKey) bool {
	if a.table != b.table {
		return a.table < b.table
	}
	return a.key < b.key
}

type entry struct {
	key     recordKey
	fields  []byte
	version int64
	deleted bool
}

// Store is an in-memory storage.Store. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	tree    *btree.BTreeG[entry]
	schemas map[string]*tuple.Schema
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tree: btree.NewBTreeG(func(a, b entry) bool {
			return a.key.less(b.key)
		}),
		schemas: make(map[string]*tuple.Schema),
	}
}

func (s *Store) Get(_ context.Context, table string, key uint64, _ int64) (storage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tree.Get(entry{key: recordKey{table, key}})
	if !ok || e.deleted {
		return storage.Record{}, false, nil
	}
	return storage.Record{Fields: e.fields, Version: e.version}, true, nil
}

func (s *Store) Insert(_ context.Context, table string, key uint64, version int64, fields []byte, checkAbsence bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rk := recordKey{table, key}
	if existing, ok := s.tree.Get(entry{key: rk}); ok && !existing.deleted {
		if checkAbsence {
			return false, telldb.NewError(telldb.ObjectExists, fmt.Errorf("memstore: %s/%d already exists", table, key), nil)
		}
	}
	s.tree.Set(entry{key: rk, fields: fields, version: version})
	return true, nil
}

func (s *Store) Update(_ context.Context, table string, key uint64, expectedVersion int64, fields []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rk := recordKey{table, key}
	existing, ok := s.tree.Get(entry{key: rk})
	if !ok || existing.deleted {
		return false, telldb.NewError(telldb.ObjectDoesntExist, fmt.Errorf("memstore: %s/%d not found", table, key), nil)
	}
	if existing.version != expectedVersion {
		return false, telldb.NewError(telldb.WrongVersion, fmt.Errorf("memstore: %s/%d expected version %d, got %d", table, key, expectedVersion, existing.version), nil)
	}
	s.tree.Set(entry{key: rk, fields: fields, version: expectedVersion + 1})
	return true, nil
}

func (s *Store) Remove(_ context.Context, table string, key uint64, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rk := recordKey{table, key}
	existing, ok := s.tree.Get(entry{key: rk})
	if !ok || existing.deleted {
		return false, telldb.NewError(telldb.ObjectDoesntExist, fmt.Errorf("memstore: %s/%d not found", table, key), nil)
	}
	if existing.version != expectedVersion {
		return false, telldb.NewError(telldb.WrongVersion, fmt.Errorf("memstore: %s/%d expected version %d, got %d", table, key, expectedVersion, existing.version), nil)
	}
	s.tree.Set(entry{key: rk, version: expectedVersion + 1, deleted: true})
	return true, nil
}

func (s *Store) CreateTable(_ context.Context, name string, schema *tuple.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schemas[name] = schema
	return nil
}

// Commit is a no-op: memstore has no write-ahead log or deferred apply, so
// there is nothing left to finalize once Insert/Update/Remove have
// returned. Retained on the interface to satisfy storage.Store and to mark
// the point at which a real backend would flush.
func (s *Store) Commit(_ context.Context, _ uint64) error {
	return nil
}
