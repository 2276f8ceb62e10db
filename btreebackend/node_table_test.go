package btreebackend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/btreebackend"
	"github.com/Stone1973/telldb/storage/memstore"
)

func TestNodeTableInsertReadRemove(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	nt, err := btreebackend.NewNodeTable(store, "byname")
	require.NoError(t, err)
	require.NoError(t, nt.EnsureTable(ctx))

	require.NoError(t, nt.Insert(ctx, 9, []byte("node-bytes")))

	got, err := nt.Read(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, []byte("node-bytes"), got)

	require.NoError(t, nt.Remove(ctx, 9))

	_, err = nt.Read(ctx, 9)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.ObjectDoesntExist))
}

func TestNodeTableInsertOverwritesBlindly(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	nt, err := btreebackend.NewNodeTable(store, "byname")
	require.NoError(t, err)

	require.NoError(t, nt.Insert(ctx, 9, []byte("v1")))
	require.NoError(t, nt.Insert(ctx, 9, []byte("v2")))

	got, err := nt.Read(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}
