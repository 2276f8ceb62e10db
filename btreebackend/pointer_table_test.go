package btreebackend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/btreebackend"
	"github.com/Stone1973/telldb/storage/memstore"
)

func TestPointerTableInsertReadUpdateRemove(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	pt, err := btreebackend.NewPointerTable(store, "byname")
	require.NoError(t, err)
	require.NoError(t, pt.EnsureTable(ctx))

	n, err := pt.Insert(ctx, 5, 9)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	pptr, version, err := pt.Read(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(9), pptr)
	require.Equal(t, uint64(0), version)

	newVersion, err := pt.Update(ctx, 5, 10, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), newVersion)

	pptr, _, err = pt.Read(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(10), pptr)
}

// TestPointerTableCAS mirrors scenario S5 from the spec: a second insert of
// the same logical pointer fails ObjectExists, and a stale update fails
// WrongVersion.
func TestPointerTableCAS(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	pt, err := btreebackend.NewPointerTable(store, "byname")
	require.NoError(t, err)
	require.NoError(t, pt.EnsureTable(ctx))

	_, err = pt.Insert(ctx, 5, 9)
	require.NoError(t, err)

	_, err = pt.Insert(ctx, 5, 10)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.ObjectExists))

	_, err = pt.Update(ctx, 5, 10, 0)
	require.NoError(t, err)

	_, err = pt.Update(ctx, 5, 11, 0)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.WrongVersion))
}

// TestPointerTableRemoveMaxVersionRewrite covers invariant 9: remove at
// MaxVersion is rewritten to MaxVersion-2 before hitting the store.
func TestPointerTableRemoveMaxVersionRewrite(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	pt, err := btreebackend.NewPointerTable(store, "byname")
	require.NoError(t, err)
	require.NoError(t, pt.EnsureTable(ctx))

	_, err = pt.Insert(ctx, 5, 9)
	require.NoError(t, err)

	// The record is at version 0; MaxVersion-2 will not match, so this
	// must fail WrongVersion rather than silently succeeding against
	// MaxVersion (which the store would never have).
	err = pt.Remove(ctx, 5, btreebackend.MaxVersion)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.WrongVersion))
}

func TestPointerTableReadMissingFails(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	pt, err := btreebackend.NewPointerTable(store, "byname")
	require.NoError(t, err)

	_, _, err = pt.Read(ctx, 99)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.ObjectDoesntExist))
}
