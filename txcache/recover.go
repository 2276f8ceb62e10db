package txcache

import (
	"context"

	"github.com/Stone1973/telldb/storage"
)

// Recover replays a single undo log's before-images against store,
// restoring every table it touched to its pre-write-back state. This is
// the supplement grounded in SOP's common/transactionlogger.go
// priorityRollback path: TellDB never runs it on the commit hot path, only
// from an operator or cron-style cleanup tool sweeping the transaction log
// table for snapshots whose writer crashed mid-write-back. Store bytes are
// replayed as-is; no schema is needed since the log already carries
// each entry's fully serialized before-image.
func Recover(ctx context.Context, store storage.Store, log []byte) error {
	body, err := decodeUndoLog(log)
	if err != nil {
		return err
	}
	for _, entry := range body.Entries {
		if err := recoverEntry(ctx, store, entry); err != nil {
			return err
		}
	}
	return nil
}

func recoverEntry(ctx context.Context, store storage.Store, entry entryLog) error {
	current, found, err := store.Get(ctx, entry.Table, entry.Key, 0)
	if err != nil {
		return err
	}

	if len(entry.Before) > 0 {
		if found {
			_, err := store.Update(ctx, entry.Table, entry.Key, current.Version, entry.Before)
			return err
		}
		_, err := store.Insert(ctx, entry.Table, entry.Key, 0, entry.Before, false)
		return err
	}

	// No before-image: this entry was a fresh Insert. Undoing it means
	// removing whatever write-back landed, if write-back got that far.
	if !found {
		return nil
	}
	_, err = store.Remove(ctx, entry.Table, entry.Key, current.Version)
	return err
}
