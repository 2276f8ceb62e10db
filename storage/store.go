// Package storage defines the Store handle contract TellDB's client layer
// consumes (spec.md §6): a remote, non-transactional, single-version-per-key
// record store with per-record compare-and-swap. Concrete adapters live in
// the memstore and cassandrastore subpackages.
package storage

import (
	"context"

	"github.com/Stone1973/telldb/tuple"
)

// Record is what the store hands back for a Get: the raw field-encoded
// payload (a tuple.Tuple.Serialize output, opaque to the store itself) and
// the CAS version it was written at.
type Record struct {
	Fields  []byte
	Version int64
}

// Store is the contract every backend (in-memory, Cassandra, ...) must
// satisfy. It is intentionally thin and version-oriented: it has no notion
// of a snapshot or of multiple retained versions per key, since TellDB's
// own TableCache and BdTreeBackend are what add multi-version semantics on
// top of a single current version per key. atVersion is carried on Get for
// forward compatibility with backends that do retain history; the two
// adapters here are single-version and ignore it.
type Store interface {
	// Get fetches the current record at (table, key). The returned bool is
	// false, with a zero Record, if no record exists.
	Get(ctx context.Context, table string, key uint64, atVersion int64) (Record, bool, error)

	// Insert writes a new record at (table, key) with the given initial
	// version. If checkAbsence is true and a record already exists, it
	// fails ObjectExists rather than overwriting.
	Insert(ctx context.Context, table string, key uint64, version int64, fields []byte, checkAbsence bool) (bool, error)

	// Update performs a compare-and-swap: it succeeds only if the current
	// version equals expectedVersion, and leaves the new version at
	// expectedVersion+1. Fails WrongVersion on mismatch, ObjectDoesntExist
	// if the key is absent.
	Update(ctx context.Context, table string, key uint64, expectedVersion int64, fields []byte) (bool, error)

	// Remove performs a versioned delete, CAS'd the same way as Update.
	Remove(ctx context.Context, table string, key uint64, expectedVersion int64) (bool, error)

	// CreateTable declares a table with the given schema. Idempotent:
	// calling it twice with an identical schema is not an error.
	CreateTable(ctx context.Context, name string, schema *tuple.Schema) error

	// Commit finalizes a snapshot version. Per spec.md §9's preserved
	// source behavior, this same call is used to signal both a successful
	// commit's write-back completion and a rollback's snapshot discard —
	// the store itself does not distinguish outcome, only that the
	// snapshot has concluded.
	Commit(ctx context.Context, snapshotVersion uint64) error
}
