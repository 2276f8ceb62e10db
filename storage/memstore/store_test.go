package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/storage/memstore"
)

func TestInsertGet(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	ok, err := s.Insert(ctx, "accounts", 1, 0, []byte("v1"), true)
	require.NoError(t, err)
	require.True(t, ok)

	rec, found, err := s.Get(ctx, "accounts", 1, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), rec.Fields)
	require.Equal(t, int64(0), rec.Version)
}

func TestInsertCheckAbsenceFailsOnDuplicate(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	_, err := s.Insert(ctx, "accounts", 1, 0, []byte("v1"), true)
	require.NoError(t, err)

	_, err = s.Insert(ctx, "accounts", 1, 0, []byte("v2"), true)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.ObjectExists))
}

func TestUpdateCASSucceedsThenFailsOnStaleVersion(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	_, err := s.Insert(ctx, "accounts", 1, 0, []byte("v1"), true)
	require.NoError(t, err)

	ok, err := s.Update(ctx, "accounts", 1, 0, []byte("v2"))
	require.NoError(t, err)
	require.True(t, ok)

	rec, _, err := s.Get(ctx, "accounts", 1, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.Version)

	_, err = s.Update(ctx, "accounts", 1, 0, []byte("v3"))
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.WrongVersion))
}

func TestUpdateMissingKeyFails(t *testing.T) {
	s := memstore.New()
	_, err := s.Update(context.Background(), "accounts", 99, 0, []byte("x"))
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.ObjectDoesntExist))
}

func TestRemoveThenGetNotFound(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	_, err := s.Insert(ctx, "accounts", 1, 0, []byte("v1"), true)
	require.NoError(t, err)

	ok, err := s.Remove(ctx, "accounts", 1, 0)
	require.NoError(t, err)
	require.True(t, ok)

	_, found, err := s.Get(ctx, "accounts", 1, 0)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRemoveStaleVersionFails(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	_, err := s.Insert(ctx, "accounts", 1, 0, []byte("v1"), true)
	require.NoError(t, err)

	_, err = s.Remove(ctx, "accounts", 1, 5)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.WrongVersion))
}

func TestReinsertAfterRemove(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	_, err := s.Insert(ctx, "accounts", 1, 0, []byte("v1"), true)
	require.NoError(t, err)
	_, err = s.Remove(ctx, "accounts", 1, 0)
	require.NoError(t, err)

	ok, err := s.Insert(ctx, "accounts", 1, 0, []byte("v2"), true)
	require.NoError(t, err)
	require.True(t, ok)
}
