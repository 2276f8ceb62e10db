// Package testindex is a test-only Index implementation backed by
// github.com/tidwall/btree, standing in for the out-of-scope B-link tree
// algorithm so txcache and transaction tests can exercise real index
// dispatch (lower_bound, reverse_lower_bound) without a production tree.
package testindex

import (
	"context"
	"sync"

	"github.com/tidwall/btree"

	"github.com/Stone1973/telldb/btreebackend"
	"github.com/Stone1973/telldb/field"
)

type entry struct {
	key        field.Field
	primaryKey uint64
}

func less(a, b entry) bool {
	o, err := field.Compare(a.key, b.key)
	if err != nil {
		// Indexes are single-tag by construction; a mismatch here means a
		// caller inserted a Field of the wrong tag for this index.
		panic(err)
	}
	if o != field.Equal {
		return o == field.Less
	}
	return a.primaryKey < b.primaryKey
}

// Index is an in-memory btreebackend.Index.
type Index struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[entry]
}

// New returns an empty Index.
func New() *Index {
	return &Index{tree: btree.NewBTreeG(less)}
}

func (idx *Index) Insert(_ context.Context, key field.Field, primaryKey uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree.Set(entry{key: key, primaryKey: primaryKey})
	return nil
}

func (idx *Index) Delete(_ context.Context, key field.Field, primaryKey uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree.Delete(entry{key: key, primaryKey: primaryKey})
	return nil
}

func (idx *Index) LowerBound(_ context.Context, key field.Field) (btreebackend.Iterator, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var items []entry
	idx.tree.Ascend(entry{key: key}, func(e entry) bool {
		items = append(items, e)
		return true
	})
	return &sliceIterator{items: items, pos: -1}, nil
}

func (idx *Index) ReverseLowerBound(_ context.Context, key field.Field) (btreebackend.Iterator, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var items []entry
	// The pivot carries the largest primary key so every entry whose key
	// equals key is included in the descent.
	idx.tree.Descend(entry{key: key, primaryKey: ^uint64(0)}, func(e entry) bool {
		items = append(items, e)
		return true
	})
	return &sliceIterator{items: items, pos: -1}, nil
}

type sliceIterator struct {
	items []entry
	pos   int
}

func (it *sliceIterator) Next(context.Context) bool {
	if it.pos+1 >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Key() field.Field { return it.items[it.pos].key }

func (it *sliceIterator) PrimaryKey() uint64 { return it.items[it.pos].primaryKey }

func (it *sliceIterator) Close() error { return nil }
