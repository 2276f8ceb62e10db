// Package txcache implements TransactionCache: the per-transaction
// aggregate over TableCaches and secondary indexes, grounded on SOP's
// two_phase_commit_transaction.go orchestration of item action trackers
// plus its node-repository indexes, but flattened into the single
// snapshot-scoped object spec.md §4.5 describes rather than SOP's
// two-phase (first/second-phase) split — TellDB has one remote store, not
// a registry/blob-store pair, so there is nothing for a second phase to
// commit separately.
package txcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/btreebackend"
	"github.com/Stone1973/telldb/cachekit"
	"github.com/Stone1973/telldb/storage"
	"github.com/Stone1973/telldb/tablecache"
	"github.com/Stone1973/telldb/tuple"
)

// LogTable is the single system table every TellDB deployment carries: one
// BLOB record per committed snapshot, keyed by snapshot version.
const LogTable = "telldb_transaction_log"

type indexBinding struct {
	columnID int
	index    btreebackend.Index
}

// TransactionCache is owned by exactly one Transaction for exactly one
// snapshot's lifetime.
type TransactionCache struct {
	mu       sync.Mutex
	store    storage.Store
	snapshot telldb.Snapshot
	writer   telldb.UUID
	readOnly bool

	// l2 is propagated to every TableCache this cache opens (ClientContext
	// hands it in once, shared process-wide across transactions).
	l2 *cachekit.L2Cache

	schemas map[string]*tuple.Schema
	tables  map[string]*tablecache.TableCache
	indexes map[string][]indexBinding
}

// New returns an empty TransactionCache bound to store, reading and writing
// at snapshot, owned by writer. If readOnly, mutations are still staged but
// WriteBack fails while any are pending.
func New(store storage.Store, snapshot telldb.Snapshot, writer telldb.UUID, readOnly bool) *TransactionCache {
	return &TransactionCache{
		store:    store,
		snapshot: snapshot,
		writer:   writer,
		readOnly: readOnly,
		schemas:  make(map[string]*tuple.Schema),
		tables:   make(map[string]*tablecache.TableCache),
		indexes:  make(map[string][]indexBinding),
	}
}

// CreateTable declares name in the store and records its schema so later
// OpenTable calls in this transaction can bind a TableCache to it. The
// schema is recorded in this cache only; ClientContext's process-wide
// catalog is not updated.
func (c *TransactionCache) CreateTable(ctx context.Context, name string, schema *tuple.Schema) error {
	if err := c.store.CreateTable(ctx, name, schema); err != nil {
		return err
	}
	c.mu.Lock()
	c.schemas[name] = schema
	c.mu.Unlock()
	return nil
}

// SetL2Cache attaches an optional distributed cache, propagated to every
// TableCache this cache opens from this point on.
func (c *TransactionCache) SetL2Cache(l2 *cachekit.L2Cache) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l2 = l2
}

// RegisterSchema records a schema for name without declaring it in the
// store, used by ClientContext to seed a fresh TransactionCache from its
// process-wide schema catalog without a redundant CreateTable round trip.
func (c *TransactionCache) RegisterSchema(name string, schema *tuple.Schema) {
	c.mu.Lock()
	c.schemas[name] = schema
	c.mu.Unlock()
}

// OpenTable returns the TableCache bound to name, creating it on first use.
// Fails KeyNotFound if name was never created or registered.
func (c *TransactionCache) OpenTable(_ context.Context, name string) (*tablecache.TableCache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tc, ok := c.tables[name]; ok {
		return tc, nil
	}
	schema, ok := c.schemas[name]
	if !ok {
		return nil, telldb.NewError(telldb.KeyNotFound, fmt.Errorf("txcache: table %q not open", name), name)
	}
	tc := tablecache.New(c.store, name, schema, int64(c.snapshot.Version))
	if c.l2 != nil {
		tc.SetL2Cache(c.l2)
	}
	c.tables[name] = tc
	return tc, nil
}

// BindIndex registers idx as a secondary index over table's columnID: from
// this point on, write-back and undo-log generation also maintain idx
// whenever a change touches that table.
func (c *TransactionCache) BindIndex(table string, columnID int, idx btreebackend.Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes[table] = append(c.indexes[table], indexBinding{columnID: columnID, index: idx})
}

// Get dispatches to table's TableCache.
func (c *TransactionCache) Get(ctx context.Context, table string, key uint64) (<-chan tablecache.Result, error) {
	tc, err := c.OpenTable(ctx, table)
	if err != nil {
		return nil, err
	}
	return tc.Get(ctx, key), nil
}

// Insert dispatches to table's TableCache.
func (c *TransactionCache) Insert(ctx context.Context, table string, key uint64, tup *tuple.Tuple) error {
	tc, err := c.OpenTable(ctx, table)
	if err != nil {
		return err
	}
	return tc.InsertKey(key, tup)
}

// Update dispatches to table's TableCache. from is accepted for interface
// symmetry with spec.md §4.6's update(from, to) and is not otherwise used:
// TableCache already retains the authoritative before-image, and passing a
// caller-supplied from that disagreed with it would only invite a class of
// bug where undo-log and index diffing silently used stale data.
func (c *TransactionCache) Update(ctx context.Context, table string, key uint64, from, to *tuple.Tuple) error {
	_ = from
	tc, err := c.OpenTable(ctx, table)
	if err != nil {
		return err
	}
	return tc.UpdateKey(ctx, key, to)
}

// Remove dispatches to table's TableCache.
func (c *TransactionCache) Remove(ctx context.Context, table string, key uint64) error {
	tc, err := c.OpenTable(ctx, table)
	if err != nil {
		return err
	}
	return tc.RemoveKey(ctx, key)
}

// Index returns the secondary index bound to table's columnID, if any.
func (c *TransactionCache) Index(table string, columnID int) (btreebackend.Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.indexes[table] {
		if b.columnID == columnID {
			return b.index, true
		}
	}
	return nil, false
}

// HasPendingChanges reports whether any open table holds a staged mutation.
func (c *TransactionCache) HasPendingChanges() bool {
	c.mu.Lock()
	tables := make([]*tablecache.TableCache, 0, len(c.tables))
	for _, tc := range c.tables {
		tables = append(tables, tc)
	}
	c.mu.Unlock()

	for _, tc := range tables {
		if tc.HasPendingChanges() {
			return true
		}
	}
	return false
}

// ReadOnly reports whether this cache refuses mutations at commit time.
func (c *TransactionCache) ReadOnly() bool { return c.readOnly }

// Snapshot returns the cache's bound snapshot.
func (c *TransactionCache) Snapshot() telldb.Snapshot { return c.snapshot }
