package txcache

import (
	"context"
	"fmt"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/tablecache"
)

// WriteBack persists the commit-time undo log, then applies every pending
// change to the store, per spec.md §4.5/§4.6: the log lands durably before
// any table write is attempted, so a crash mid-write-back is recoverable
// via Recover. Fails ReadOnlyViolation if there are pending changes on a read-only
// cache, without writing anything. A nil return with no store activity at
// all means there was nothing pending.
func (c *TransactionCache) WriteBack(ctx context.Context, withIndexes bool) error {
	logBytes, err := c.undoLog(withIndexes)
	if err != nil {
		return err
	}
	if len(logBytes) == 0 {
		return nil
	}
	if c.readOnly {
		return telldb.NewError(telldb.ReadOnlyViolation, fmt.Errorf("txcache: read-only transaction has pending changes"), nil)
	}

	if _, err := c.store.Insert(ctx, LogTable, c.snapshot.Version, 0, logBytes, true); err != nil {
		return err
	}

	c.mu.Lock()
	tables := make([]*tablecache.TableCache, 0, len(c.tables))
	for _, tc := range c.tables {
		tables = append(tables, tc)
	}
	c.mu.Unlock()

	// Tables are independent key spaces, so their Delete/Update/Insert
	// passes (and the index write-back) run concurrently; within a single
	// table the pass order is still Delete, Update, Insert per invariant.
	tr := telldb.NewTaskRunner(ctx, len(tables)+1)
	for _, tc := range tables {
		tc := tc
		tr.Go(func() error { return c.applyTable(ctx, tc) })
	}
	if withIndexes {
		tr.Go(func() error { return c.applyIndexMutations(ctx) })
	}
	return tr.Wait()
}

func (c *TransactionCache) applyTable(ctx context.Context, tc *tablecache.TableCache) error {
	changes := tc.Changes()
	if len(changes) == 0 {
		return nil
	}
	table := tc.Table()

	apply := func(key uint64, ch tablecache.Change) error {
		switch ch.Action {
		case tablecache.Delete:
			_, err := c.store.Remove(ctx, table, key, ch.BeforeVersion)
			return err
		case tablecache.Update:
			data, err := encodeTuple(ch.After)
			if err != nil {
				return err
			}
			_, err = c.store.Update(ctx, table, key, ch.BeforeVersion, data)
			return err
		case tablecache.Insert:
			data, err := encodeTuple(ch.After)
			if err != nil {
				return err
			}
			_, err = c.store.Insert(ctx, table, key, 0, data, true)
			return err
		}
		return nil
	}

	for _, pass := range [...]tablecache.Action{tablecache.Delete, tablecache.Update, tablecache.Insert} {
		for key, ch := range changes {
			if ch.Action != pass {
				continue
			}
			if err := apply(key, ch); err != nil {
				if telldb.Is(err, telldb.WrongVersion) || telldb.Is(err, telldb.ObjectExists) || telldb.Is(err, telldb.ObjectDoesntExist) {
					return telldb.NewError(telldb.Conflict, err, key)
				}
				return err
			}
			tc.EvictL2(ctx, key)
		}
	}
	return nil
}

func (c *TransactionCache) applyIndexMutations(ctx context.Context) error {
	c.mu.Lock()
	tables := make([]*tablecache.TableCache, 0, len(c.tables))
	for _, tc := range c.tables {
		tables = append(tables, tc)
	}
	bindings := make(map[string][]indexBinding, len(c.indexes))
	for k, v := range c.indexes {
		bindings[k] = v
	}
	c.mu.Unlock()

	for _, tc := range tables {
		binds, ok := bindings[tc.Table()]
		if !ok {
			continue
		}
		for key, ch := range tc.Changes() {
			for _, b := range binds {
				if ch.HasBefore {
					if err := b.index.Delete(ctx, ch.Before.Get(b.columnID), key); err != nil {
						return err
					}
				}
				if ch.Action != tablecache.Delete {
					if err := b.index.Insert(ctx, ch.After.Get(b.columnID), key); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
