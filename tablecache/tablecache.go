// Package tablecache implements TableCache: a per-transaction,
// per-table read-through cache and write buffer, grounded on SOP's
// common/itemactiontracker.go per-item state machine (getAction/addAction/
// updateAction/removeAction) but split into the clean/changes map pair
// spec.md §4.4 specifies rather than itemactiontracker's single map keyed
// by action.
package tablecache

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/Stone1973/telldb/cachekit"
	"github.com/Stone1973/telldb/storage"
	"github.com/Stone1973/telldb/tuple"
)

// Action tags a pending change.
type Action int

const (
	Insert Action = iota + 1
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "Insert"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	default:
		return "None"
	}
}

// Result is what a Get future resolves to. The transport's own future type
// (spec.md §5's Design Note that TellDB's core never multiplexes futures
// itself) is a plain buffered channel of Result.
type Result struct {
	Tuple *tuple.Tuple
	Found bool
	Err   error
}

type cleanEntry struct {
	tuple   *tuple.Tuple
	version int64
	read    bool
}

// Change is one pending mutation, retaining both the before-image (for
// undo-log generation) and the after-image (nil for Delete).
type Change struct {
	Action        Action
	After         *tuple.Tuple
	Before        *tuple.Tuple
	BeforeVersion int64
	HasBefore     bool
}

// TableCache is owned by exactly one transaction and bound to exactly one
// store table.
type TableCache struct {
	mu     sync.Mutex
	store  storage.Store
	table  string
	schema *tuple.Schema
	// snapshotVersion is the transaction's read version, passed through to
	// every store Get so all reads observe one consistent snapshot.
	snapshotVersion int64
	// l2 is an optional, process-wide distributed cache shared across
	// transactions (ClientContext.L2Cache). It sits between the clean map
	// and the store: a miss or error here always falls through to the
	// store, never surfaces as a Get failure. Invariant 4's "a cache hit
	// must never touch the store" is about this TableCache's own clean/
	// changes maps, not l2 — l2 is itself a network round trip, just a
	// cheaper one than the store.
	l2 *cachekit.L2Cache

	// clean is capacity-bounded (cachekit.MRUCache) rather than the
	// unbounded map a naive read-through cache would use, so a
	// long-running transaction that touches many rows doesn't hold every
	// one of them in memory for its whole lifetime. MRUCache is safe for
	// concurrent use on its own, so it is read and written without mu.
	clean   *cachekit.MRUCache[uint64, *cleanEntry]
	changes map[uint64]*Change
}

// New returns an empty TableCache bound to table (with the given schema
// for decoding raw store records), reading at snapshotVersion.
func New(store storage.Store, table string, schema *tuple.Schema, snapshotVersion int64) *TableCache {
	return &TableCache{
		store:           store,
		table:           table,
		schema:          schema,
		snapshotVersion: snapshotVersion,
		clean:           cachekit.NewMRUCache[uint64, *cleanEntry](cachekit.DefaultMinCapacity, cachekit.DefaultMaxCapacity),
		changes:         make(map[uint64]*Change),
	}
}

// Table returns the bound table name.
func (c *TableCache) Table() string { return c.table }

// SetL2Cache attaches an optional distributed cache, used by ClientContext
// to share one Redis-backed L2Cache across every TableCache it hands out.
func (c *TableCache) SetL2Cache(l2 *cachekit.L2Cache) { c.l2 = l2 }

func (c *TableCache) l2Key(key uint64) string {
	return fmt.Sprintf("telldb:%s:%d", c.table, key)
}

// EvictL2 drops key from the distributed cache, a no-op if none is
// attached. Called by write-back after a change lands in the store: an
// L2 entry left in place after a write would let a later reader (in this
// process or another sharing the same Redis) observe stale fields under
// the old version, and CAS a write against it with a stale BeforeVersion.
func (c *TableCache) EvictL2(ctx context.Context, key uint64) {
	if c.l2 == nil {
		return
	}
	_ = c.l2.Delete(ctx, c.l2Key(key))
}

// Get resolves key per spec.md §4.4: a pending change short-circuits (a
// Delete surfaces as not-found), then a clean-map hit, then a store fetch.
// The returned channel is always sent exactly one Result and then closed.
func (c *TableCache) Get(ctx context.Context, key uint64) <-chan Result {
	out := make(chan Result, 1)

	c.mu.Lock()
	ch, pending := c.changes[key]
	c.mu.Unlock()
	if pending {
		if ch.Action == Delete {
			out <- Result{Found: false}
		} else {
			out <- Result{Tuple: ch.After, Found: true}
		}
		close(out)
		return out
	}

	if entry, ok := c.clean.Get(key); ok {
		entry.read = true
		out <- Result{Tuple: entry.tuple, Found: true}
		close(out)
		return out
	}

	go c.fetchFromStore(ctx, key, out)
	return out
}

func (c *TableCache) fetchFromStore(ctx context.Context, key uint64, out chan<- Result) {
	defer close(out)

	entry, found, err := c.resolveCleanEntry(ctx, key)
	if err != nil {
		out <- Result{Err: err}
		return
	}
	if !found {
		out <- Result{Found: false}
		return
	}
	out <- Result{Tuple: entry.tuple, Found: true}
}

// resolveCleanEntry returns the clean-map entry for key, checking the L1
// MRU cache first, then L2, then falling through to the store on a full
// miss, populating both caches along the way. It must be called without
// c.mu held: the store round trip it may take must never block InsertKey,
// UpdateKey, or RemoveKey calls the caller makes for other keys while this
// one is in flight.
//
// The original C++ TableCache used an unbounded map, so a key a transaction
// had already read was always still present when later mutated. Bounding
// clean to an MRUCache (cachekit's own capacity policy) makes eviction of a
// transaction's own prior read possible; resolveCleanEntry's store fallback
// keeps that eviction from turning into a spurious KeyNotFound on
// UpdateKey/RemoveKey.
func (c *TableCache) resolveCleanEntry(ctx context.Context, key uint64) (*cleanEntry, bool, error) {
	if entry, ok := c.clean.Get(key); ok {
		entry.read = true
		return entry, true, nil
	}

	if c.l2 != nil {
		if b, ok := c.l2.Get(ctx, c.l2Key(key)); ok {
			if version, fields, err := decodeL2Entry(b); err == nil {
				if tup, err := tuple.Deserialize(c.schema, bytes.NewReader(fields)); err == nil {
					entry := &cleanEntry{tuple: tup, version: version, read: true}
					c.clean.Set(key, entry)
					return entry, true, nil
				}
			}
		}
	}

	rec, found, err := c.store.Get(ctx, c.table, key, c.snapshotVersion)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	tup, err := tuple.Deserialize(c.schema, bytes.NewReader(rec.Fields))
	if err != nil {
		return nil, false, err
	}

	entry := &cleanEntry{tuple: tup, version: rec.Version, read: true}
	c.clean.Set(key, entry)

	if c.l2 != nil {
		_ = c.l2.Set(ctx, c.l2Key(key), encodeL2Entry(rec.Version, rec.Fields))
	}

	return entry, true, nil
}

// encodeL2Entry frames a store record's version alongside its raw fields
// bytes for L2Cache storage. The version must round-trip: an L2 hit seeds
// TableCache's clean map, and cleanEntry.version becomes BeforeVersion for
// any later CAS-based Update or Remove, so a fabricated version here would
// make every such write fail with a spurious conflict.
func encodeL2Entry(version int64, fields []byte) []byte {
	buf := make([]byte, 8+len(fields))
	binary.LittleEndian.PutUint64(buf[:8], uint64(version))
	copy(buf[8:], fields)
	return buf
}

func decodeL2Entry(b []byte) (int64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("tablecache: l2 entry too short (%d bytes)", len(b))
	}
	version := int64(binary.LittleEndian.Uint64(b[:8]))
	return version, b[8:], nil
}
