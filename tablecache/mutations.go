package tablecache

import (
	"context"
	"fmt"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/tuple"
)

// InsertKey stages an Insert of tup at key. Fails KeyExists if an Insert is
// already pending or a clean read of key already exists. If key has a
// pending Delete, that Delete is replaced by an Update against the
// original clean entry — the row already exists in the store, so
// reinserting it is a modification, not a fresh create.
func (c *TableCache) InsertKey(key uint64, tup *tuple.Tuple) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.changes[key]; ok {
		if ch.Action == Delete {
			c.changes[key] = &Change{
				Action:        Update,
				After:         tup,
				Before:        ch.Before,
				BeforeVersion: ch.BeforeVersion,
				HasBefore:     ch.HasBefore,
			}
			return nil
		}
		return telldb.NewError(telldb.KeyExists, fmt.Errorf("tablecache: %s: key %d already pending", c.table, key), key)
	}
	if _, ok := c.clean.Get(key); ok {
		return telldb.NewError(telldb.KeyExists, fmt.Errorf("tablecache: %s: key %d already exists", c.table, key), key)
	}

	c.changes[key] = &Change{Action: Insert, After: tup}
	return nil
}

// UpdateKey stages an Update of key to tup. Fails KeyNotFound unless key
// has a clean entry (in cache or the store) or a pending Insert. Updating a
// pending Insert keeps it an Insert (the row is still new from the store's
// point of view); any other case stages an Update carrying the resolved
// clean entry as the before-image.
func (c *TableCache) UpdateKey(ctx context.Context, key uint64, tup *tuple.Tuple) error {
	c.mu.Lock()
	ch, pending := c.changes[key]
	if pending {
		switch ch.Action {
		case Insert:
			c.changes[key] = &Change{Action: Insert, After: tup}
		case Update:
			c.changes[key] = &Change{
				Action:        Update,
				After:         tup,
				Before:        ch.Before,
				BeforeVersion: ch.BeforeVersion,
				HasBefore:     ch.HasBefore,
			}
		}
	}
	c.mu.Unlock()
	if pending {
		if ch.Action == Delete {
			return telldb.NewError(telldb.KeyNotFound, fmt.Errorf("tablecache: %s: key %d is pending delete", c.table, key), key)
		}
		return nil
	}

	clean, found, err := c.resolveCleanEntry(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return telldb.NewError(telldb.KeyNotFound, fmt.Errorf("tablecache: %s: key %d not found", c.table, key), key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes[key] = &Change{
		Action:        Update,
		After:         tup,
		Before:        clean.tuple,
		BeforeVersion: clean.version,
		HasBefore:     true,
	}
	return nil
}

// RemoveKey stages a Delete of key. Fails KeyNotFound symmetrically with
// UpdateKey. Removing a pending Insert drops it entirely (the store never
// saw it); removing a pending Update converts it to a Delete carrying the
// original before-image.
func (c *TableCache) RemoveKey(ctx context.Context, key uint64) error {
	c.mu.Lock()
	ch, pending := c.changes[key]
	if pending {
		switch ch.Action {
		case Insert:
			delete(c.changes, key)
		case Update:
			c.changes[key] = &Change{
				Action:        Delete,
				Before:        ch.Before,
				BeforeVersion: ch.BeforeVersion,
				HasBefore:     ch.HasBefore,
			}
		}
	}
	c.mu.Unlock()
	if pending {
		if ch.Action == Delete {
			return telldb.NewError(telldb.KeyNotFound, fmt.Errorf("tablecache: %s: key %d already pending delete", c.table, key), key)
		}
		return nil
	}

	clean, found, err := c.resolveCleanEntry(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return telldb.NewError(telldb.KeyNotFound, fmt.Errorf("tablecache: %s: key %d not found", c.table, key), key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes[key] = &Change{Action: Delete, Before: clean.tuple, BeforeVersion: clean.version, HasBefore: true}
	return nil
}

// Changes returns a snapshot of the pending changes map, keyed by key, for
// TransactionCache's undo-log generation and write-back passes.
func (c *TableCache) Changes() map[uint64]Change {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[uint64]Change, len(c.changes))
	for k, v := range c.changes {
		out[k] = *v
	}
	return out
}

// HasPendingChanges reports whether any change is staged, used by
// TransactionCache to decide whether a ReadOnly transaction must fail
// commit.
func (c *TableCache) HasPendingChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes) > 0
}
