// Package transaction implements Transaction, the public façade spec.md
// §4.6 describes, grounded on SOP's SinglePhaseTransaction: an end-user
// wrapper around a phase-committing engine, with the same OnCommit hook
// list and CommitMaxDuration budget, adapted to the single Active→
// {Committed,RolledBack} state machine spec.md needs — TellDB has one
// store and one commit manager, so there is no AddPhasedTransaction-style
// external-participant list to carry forward.
package transaction

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/btreebackend"
	"github.com/Stone1973/telldb/commitmgr"
	"github.com/Stone1973/telldb/field"
	"github.com/Stone1973/telldb/tablecache"
	"github.com/Stone1973/telldb/tuple"
	"github.com/Stone1973/telldb/txcache"
)

// State is one of a Transaction's three lifecycle states.
type State int

const (
	Active State = iota
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Committed:
		return "Committed"
	case RolledBack:
		return "RolledBack"
	default:
		return "Active"
	}
}

// Transaction is single-owner: exactly one goroutine drives its operations
// at a time (spec.md §5). The mutex here guards state transitions and the
// hook list only, not the operations themselves.
type Transaction struct {
	mu                sync.Mutex
	id                telldb.UUID
	mode              telldb.TransactionMode
	cache             *txcache.TransactionCache
	commitMgr         commitmgr.CommitManager
	snapshot          telldb.Snapshot
	commitMaxDuration time.Duration
	state             State
	onCommit          []func(ctx context.Context) error
}

// New wires a Transaction around an already-open TransactionCache and its
// snapshot. ClientContext.OpenTransaction is the intended caller; nothing
// else constructs a Transaction.
func New(id telldb.UUID, mode telldb.TransactionMode, cache *txcache.TransactionCache, commitMgr commitmgr.CommitManager, snapshot telldb.Snapshot, commitMaxDuration time.Duration) *Transaction {
	return &Transaction{
		id:                id,
		mode:              mode,
		cache:             cache,
		commitMgr:         commitMgr,
		snapshot:          snapshot,
		commitMaxDuration: commitMaxDuration,
		state:             Active,
	}
}

// ID returns the transaction's identity, also used as the commit manager's
// writer id for in-flight tracking.
func (t *Transaction) ID() telldb.UUID { return t.id }

// Mode returns the transaction's configured mode.
func (t *Transaction) Mode() telldb.TransactionMode { return t.mode }

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CommitMaxDuration returns the configured commit budget. The effective
// runtime limit for Commit is min(ctx deadline, CommitMaxDuration()), zero
// meaning no additional budget beyond ctx's own deadline.
func (t *Transaction) CommitMaxDuration() time.Duration { return t.commitMaxDuration }

func (t *Transaction) checkActive() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return telldb.NewError(telldb.AlreadyFinished, nil, t.state)
	}
	return nil
}

// CreateTable delegates to the TransactionCache.
func (t *Transaction) CreateTable(ctx context.Context, name string, schema *tuple.Schema) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	return t.cache.CreateTable(ctx, name, schema)
}

// OpenTable delegates to the TransactionCache.
func (t *Transaction) OpenTable(ctx context.Context, name string) (*tablecache.TableCache, error) {
	if err := t.checkActive(); err != nil {
		return nil, err
	}
	return t.cache.OpenTable(ctx, name)
}

// Get delegates to the TransactionCache.
func (t *Transaction) Get(ctx context.Context, table string, key uint64) (<-chan tablecache.Result, error) {
	if err := t.checkActive(); err != nil {
		return nil, err
	}
	return t.cache.Get(ctx, table, key)
}

// Insert delegates to the TransactionCache.
func (t *Transaction) Insert(ctx context.Context, table string, key uint64, tup *tuple.Tuple) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	return t.cache.Insert(ctx, table, key, tup)
}

// Update delegates to the TransactionCache. from and to are both required
// per spec.md §4.6 so the index subsystem can diff old/new index keys
// without a redundant read.
func (t *Transaction) Update(ctx context.Context, table string, key uint64, from, to *tuple.Tuple) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	return t.cache.Update(ctx, table, key, from, to)
}

// Remove delegates to the TransactionCache.
func (t *Transaction) Remove(ctx context.Context, table string, key uint64) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	return t.cache.Remove(ctx, table, key)
}

// BindIndex registers idx as a secondary index over table's columnID for
// this transaction's cache, so LowerBound/ReverseLowerBound and commit-time
// write-back can find it.
func (t *Transaction) BindIndex(table string, columnID int, idx btreebackend.Index) {
	t.cache.BindIndex(table, columnID, idx)
}

// LowerBound opens an ascending iterator on table's index over columnID,
// positioned at the first entry with a key >= key.
func (t *Transaction) LowerBound(ctx context.Context, table string, columnID int, key field.Field) (btreebackend.Iterator, error) {
	if err := t.checkActive(); err != nil {
		return nil, err
	}
	idx, ok := t.cache.Index(table, columnID)
	if !ok {
		return nil, telldb.NewError(telldb.KeyNotFound, nil, table)
	}
	return idx.LowerBound(ctx, key)
}

// ReverseLowerBound opens a descending iterator on table's index over
// columnID, positioned at the last entry with a key <= key.
func (t *Transaction) ReverseLowerBound(ctx context.Context, table string, columnID int, key field.Field) (btreebackend.Iterator, error) {
	if err := t.checkActive(); err != nil {
		return nil, err
	}
	idx, ok := t.cache.Index(table, columnID)
	if !ok {
		return nil, telldb.NewError(telldb.KeyNotFound, nil, table)
	}
	return idx.ReverseLowerBound(ctx, key)
}

// OnCommit registers a best-effort callback run after a successful commit,
// once the commit manager has been notified. A hook's error is logged and
// never fails an already-successful commit.
func (t *Transaction) OnCommit(callback func(ctx context.Context) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCommit = append(t.onCommit, callback)
}

// Commit runs write-back (with index maintenance), notifies the commit
// manager, and transitions to Committed. A write-back failure runs the
// internal recovery path spec.md §7 describes: the snapshot is discarded
// with the commit manager exactly as a rollback would, and the transaction
// ends RolledBack, with the write-back error returned to the caller.
func (t *Transaction) Commit(ctx context.Context) error {
	if err := t.checkActive(); err != nil {
		return err
	}

	if t.commitMaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.commitMaxDuration)
		defer cancel()
	}

	if err := t.cache.WriteBack(ctx, true); err != nil {
		if compErr := t.commitMgr.Complete(ctx, t.snapshot, t.id); compErr != nil {
			log.Warn("commit manager completion failed during commit-failure recovery", "error", compErr)
		}
		t.mu.Lock()
		t.state = RolledBack
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	t.state = Committed
	t.mu.Unlock()

	if err := t.commitMgr.Complete(ctx, t.snapshot, t.id); err != nil {
		log.Warn("commit manager completion failed after successful write-back", "error", err)
	}

	t.runOnCommitHooks(ctx)
	return nil
}

// Rollback drops the cache without applying any write, informs the commit
// manager to discard the snapshot (the same Complete call a successful
// commit makes, per spec.md §9's preserved source behavior), and
// transitions to RolledBack.
func (t *Transaction) Rollback(ctx context.Context) error {
	if err := t.checkActive(); err != nil {
		return err
	}

	err := t.commitMgr.Complete(ctx, t.snapshot, t.id)
	t.mu.Lock()
	t.state = RolledBack
	t.mu.Unlock()
	return err
}

// Close rolls back an Active transaction; it is a no-op otherwise. Go has
// no destructors, so unlike the source's implicit drop-time rollback,
// callers must `defer txn.Close()` themselves — the teacher's own
// Transaction.Close is likewise an explicit call, never a finalizer.
func (t *Transaction) Close(ctx context.Context) error {
	if t.State() != Active {
		return nil
	}
	return t.Rollback(ctx)
}

func (t *Transaction) runOnCommitHooks(ctx context.Context) {
	t.mu.Lock()
	hooks := make([]func(ctx context.Context) error, len(t.onCommit))
	copy(hooks, t.onCommit)
	t.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			log.Warn("OnCommit hook failed", "error", err)
		}
	}
}
