package btreebackend

import (
	"context"

	"github.com/Stone1973/telldb/field"
)

// Index is the contract TransactionCache needs from a secondary index: the
// B-link tree algorithm itself is out of scope (spec.md §1's Out of scope
// list and the REDESIGN note in spec.md §9 — "we specify only the backend
// contract it requires"), so TransactionCache is written against this
// interface rather than a concrete tree. A real implementation drives its
// node/pointer I/O through PointerTable and NodeTable above; TellDB does
// not ship one.
type Index interface {
	// Insert adds (key, primaryKey) to the index.
	Insert(ctx context.Context, key field.Field, primaryKey uint64) error
	// Delete removes (key, primaryKey) from the index.
	Delete(ctx context.Context, key field.Field, primaryKey uint64) error
	// LowerBound opens an iterator positioned at the first entry with a key
	// >= key, in ascending order.
	LowerBound(ctx context.Context, key field.Field) (Iterator, error)
	// ReverseLowerBound opens an iterator positioned at the last entry with
	// a key <= key, in descending order.
	ReverseLowerBound(ctx context.Context, key field.Field) (Iterator, error)
}

// Iterator walks entries of an Index in the order LowerBound or
// ReverseLowerBound established.
type Iterator interface {
	// Next advances the iterator and reports whether an entry is available.
	Next(ctx context.Context) bool
	// Key returns the current entry's index key. Valid only after a Next
	// that returned true.
	Key() field.Field
	// PrimaryKey returns the current entry's primary table key.
	PrimaryKey() uint64
	// Close releases resources held by the iterator.
	Close() error
}
