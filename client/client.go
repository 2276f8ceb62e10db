// Package client implements ClientContext: the process-wide handle set
// spec.md §2 names but leaves undetailed, grounded on SOP's cachefactory.go
// global-registry pattern and config.go's DatabaseOptions/TransactionOptions
// grouping. Exactly one ClientContext exists per process; every Transaction
// it opens shares its schema catalog, store handle, and L2Cache.
package client

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/cachekit"
	"github.com/Stone1973/telldb/commitmgr"
	"github.com/Stone1973/telldb/storage"
	"github.com/Stone1973/telldb/transaction"
	"github.com/Stone1973/telldb/tuple"
	"github.com/Stone1973/telldb/txcache"
)

// schemaLockLease bounds how long CreateTable holds the catalog DDL lock;
// CreateTable itself does a single acquisition attempt and fails fast, so
// this only needs to outlast one store.CreateTable round trip.
const schemaLockLease = 5 * time.Second

// Options carries process-wide tunables, grounded on SOP's
// TransactionOptions (config.go).
type Options struct {
	// DefaultCommitMaxDuration bounds every Transaction's Commit unless a
	// per-call override is added later; zero means no additional budget
	// beyond the caller's own context deadline.
	DefaultCommitMaxDuration time.Duration
	// Logger receives lifecycle events (transaction open/commit/rollback).
	// A nil Logger falls back to slog.Default().
	Logger *log.Logger
}

// ClientContext is the process-wide root every Transaction is opened from.
// Its in-process schema catalog is guarded by its own RWMutex; the catalog
// itself (the DDL against the shared store) is guarded by cachekit.DistLock,
// since CreateTable is the one operation multiple processes sharing a store
// can race on.
type ClientContext struct {
	commitMgr commitmgr.CommitManager
	store     storage.Store
	l2        *cachekit.L2Cache
	lock      *cachekit.DistLock
	opts      Options

	mu      sync.RWMutex
	schemas map[string]*tuple.Schema
}

// New returns a ClientContext wired to store and commitMgr. l2 may be nil:
// L2Cache is purely a performance layer (cachekit.L2Cache doc comment), and
// every TableCache falls back to store reads when it is absent. lock may
// also be nil, for single-process deployments where CreateTable races
// against nothing; CreateTable then skips locking entirely.
func New(store storage.Store, commitMgr commitmgr.CommitManager, l2 *cachekit.L2Cache, lock *cachekit.DistLock, opts Options) *ClientContext {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &ClientContext{
		commitMgr: commitMgr,
		store:     store,
		l2:        l2,
		lock:      lock,
		opts:      opts,
		schemas:   make(map[string]*tuple.Schema),
	}
}

// RegisterSchema adds table to the process-wide catalog so any subsequently
// opened Transaction can OpenTable it without a redundant CreateTable call.
// ClientContext.CreateTable also populates the catalog as a side effect
// (Transaction.CreateTable does not); RegisterSchema exists for tables an
// earlier process already created in the store.
func (c *ClientContext) RegisterSchema(table string, schema *tuple.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas[table] = schema
}

// Schema returns the catalog entry for table, if any.
func (c *ClientContext) Schema(table string) (*tuple.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[table]
	return s, ok
}

// OpenTransaction is the sole constructor a caller uses to begin a unit of
// work: it takes a fresh snapshot from the commit manager, wires a fresh
// TransactionCache seeded from the process-wide schema catalog and
// L2Cache, and wraps both in a Transaction façade.
func (c *ClientContext) OpenTransaction(ctx context.Context, mode telldb.TransactionMode) (*transaction.Transaction, error) {
	id := telldb.NewUUID()
	snapshot, err := c.commitMgr.NewSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	cache := txcache.New(c.store, snapshot, id, mode == telldb.ReadOnly)
	if c.l2 != nil {
		cache.SetL2Cache(c.l2)
	}

	c.mu.RLock()
	for table, schema := range c.schemas {
		cache.RegisterSchema(table, schema)
	}
	c.mu.RUnlock()

	c.opts.Logger.Debug("transaction opened", "id", id.String(), "mode", mode.String(), "snapshot", snapshot.Version)

	return transaction.New(id, mode, cache, c.commitMgr, snapshot, c.opts.DefaultCommitMaxDuration), nil
}

// CreateTable declares table in the store outside of any Transaction and
// adds it to the process-wide catalog, used for one-time schema setup
// before the first Transaction opens. Transaction.CreateTable is the
// in-transaction equivalent and only updates that Transaction's own
// TransactionCache catalog, not ClientContext's.
//
// If lock is configured, the store mutation is serialized against every
// other process sharing it: two processes racing to create the same table
// must not both succeed against the store with divergent schemas.
func (c *ClientContext) CreateTable(ctx context.Context, table string, schema *tuple.Schema) error {
	if c.lock == nil {
		return c.createTable(ctx, table, schema)
	}

	lockKey := "telldb:schema:" + table
	ok, err := c.lock.Lock(ctx, lockKey, schemaLockLease)
	if err != nil {
		return err
	}
	if !ok {
		return telldb.NewError(telldb.Conflict, fmt.Errorf("client: table %q locked by concurrent CreateTable", table), nil)
	}
	defer c.lock.Unlock(ctx, lockKey)

	return c.createTable(ctx, table, schema)
}

func (c *ClientContext) createTable(ctx context.Context, table string, schema *tuple.Schema) error {
	if err := c.store.CreateTable(ctx, table, schema); err != nil {
		return err
	}
	c.RegisterSchema(table, schema)
	return nil
}
