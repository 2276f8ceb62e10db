// Package commitmgr defines TellDB's commit manager contract — a central
// timestamp authority that hands out snapshot versions and tracks which
// writer transactions are still in flight — plus a Redis-backed
// implementation.
package commitmgr

import (
	"context"

	"github.com/Stone1973/telldb"
)

// CommitManager issues Snapshots and accepts completion notifications for
// them. Complete is used for both a successful commit and a rollback: per
// spec.md §9's preserved source behavior, the manager only needs to know a
// snapshot's writes are settled, not whether they landed.
type CommitManager interface {
	NewSnapshot(ctx context.Context, writer telldb.UUID) (telldb.Snapshot, error)
	Complete(ctx context.Context, snapshot telldb.Snapshot, writer telldb.UUID) error
}
