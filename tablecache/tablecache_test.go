package tablecache_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/field"
	"github.com/Stone1973/telldb/storage/memstore"
	"github.com/Stone1973/telldb/tablecache"
	"github.com/Stone1973/telldb/tuple"
)

func testSchema(t *testing.T) *tuple.Schema {
	t.Helper()
	s, err := tuple.NewSchema("accounts", tuple.Column{Name: "balance", Tag: field.BIGINT})
	require.NoError(t, err)
	return s
}

func buildTuple(t *testing.T, schema *tuple.Schema, balance int64) *tuple.Tuple {
	t.Helper()
	b := tuple.NewBuilder(schema)
	require.NoError(t, b.Set(0, field.NewBigInt(balance)))
	tup, err := b.Build()
	require.NoError(t, err)
	return tup
}

func serializeTuple(t *testing.T, tup *tuple.Tuple) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := tup.Serialize(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func recvResult(t *testing.T, ch <-chan tablecache.Result) tablecache.Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tablecache.Result")
		return tablecache.Result{}
	}
}

func TestGetMissFromStore(t *testing.T) {
	schema := testSchema(t)
	store := memstore.New()
	c := tablecache.New(store, "accounts", schema, 0)

	r := recvResult(t, c.Get(context.Background(), 1))
	require.NoError(t, r.Err)
	require.False(t, r.Found)
}

func TestGetHitsStoreThenClean(t *testing.T) {
	schema := testSchema(t)
	store := memstore.New()
	ctx := context.Background()

	tup := buildTuple(t, schema, 100)
	_, err := store.Insert(ctx, "accounts", 1, 0, serializeTuple(t, tup), true)
	require.NoError(t, err)

	c := tablecache.New(store, "accounts", schema, 0)
	r := recvResult(t, c.Get(ctx, 1))
	require.NoError(t, r.Err)
	require.True(t, r.Found)
	require.Equal(t, int64(100), r.Tuple.Get(0).BigInt())
}

func TestInsertThenGetReturnsPending(t *testing.T) {
	schema := testSchema(t)
	store := memstore.New()
	c := tablecache.New(store, "accounts", schema, 0)
	tup := buildTuple(t, schema, 50)

	require.NoError(t, c.InsertKey(1, tup))

	r := recvResult(t, c.Get(context.Background(), 1))
	require.True(t, r.Found)
	require.Equal(t, int64(50), r.Tuple.Get(0).BigInt())
}

func TestInsertDuplicateFailsKeyExists(t *testing.T) {
	schema := testSchema(t)
	c := tablecache.New(memstore.New(), "accounts", schema, 0)
	tup := buildTuple(t, schema, 1)

	require.NoError(t, c.InsertKey(1, tup))
	err := c.InsertKey(1, tup)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.KeyExists))
}

func TestUpdateWithoutExistingFailsKeyNotFound(t *testing.T) {
	schema := testSchema(t)
	c := tablecache.New(memstore.New(), "accounts", schema, 0)
	err := c.UpdateKey(context.Background(), 1, buildTuple(t, schema, 1))
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.KeyNotFound))
}

func TestUpdateOnPendingInsertStaysInsert(t *testing.T) {
	schema := testSchema(t)
	c := tablecache.New(memstore.New(), "accounts", schema, 0)
	require.NoError(t, c.InsertKey(1, buildTuple(t, schema, 1)))
	require.NoError(t, c.UpdateKey(context.Background(), 1, buildTuple(t, schema, 2)))

	changes := c.Changes()
	require.Equal(t, tablecache.Insert, changes[1].Action)
	require.Equal(t, int64(2), changes[1].After.Get(0).BigInt())
}

func TestRemoveOnPendingInsertDropsIt(t *testing.T) {
	schema := testSchema(t)
	c := tablecache.New(memstore.New(), "accounts", schema, 0)
	require.NoError(t, c.InsertKey(1, buildTuple(t, schema, 1)))
	require.NoError(t, c.RemoveKey(context.Background(), 1))

	changes := c.Changes()
	_, ok := changes[1]
	require.False(t, ok)
	require.False(t, c.HasPendingChanges())
}

func TestRemoveOnUpdateBecomesDeleteWithBeforeImage(t *testing.T) {
	schema := testSchema(t)
	store := memstore.New()
	ctx := context.Background()
	tup := buildTuple(t, schema, 10)
	_, err := store.Insert(ctx, "accounts", 1, 0, serializeTuple(t, tup), true)
	require.NoError(t, err)

	c := tablecache.New(store, "accounts", schema, 0)
	_ = recvResult(t, c.Get(ctx, 1))
	require.NoError(t, c.UpdateKey(ctx, 1, buildTuple(t, schema, 20)))
	require.NoError(t, c.RemoveKey(ctx, 1))

	changes := c.Changes()
	require.Equal(t, tablecache.Delete, changes[1].Action)
	require.True(t, changes[1].HasBefore)
	require.Equal(t, int64(10), changes[1].Before.Get(0).BigInt())
}

func TestGetOnPendingDeleteSurfacesNotFound(t *testing.T) {
	schema := testSchema(t)
	store := memstore.New()
	ctx := context.Background()
	tup := buildTuple(t, schema, 10)
	_, err := store.Insert(ctx, "accounts", 1, 0, serializeTuple(t, tup), true)
	require.NoError(t, err)

	c := tablecache.New(store, "accounts", schema, 0)
	_ = recvResult(t, c.Get(ctx, 1))
	require.NoError(t, c.RemoveKey(ctx, 1))

	r := recvResult(t, c.Get(ctx, 1))
	require.NoError(t, r.Err)
	require.False(t, r.Found)
}

func TestReinsertAfterDeleteBecomesUpdate(t *testing.T) {
	schema := testSchema(t)
	store := memstore.New()
	ctx := context.Background()
	tup := buildTuple(t, schema, 10)
	_, err := store.Insert(ctx, "accounts", 1, 0, serializeTuple(t, tup), true)
	require.NoError(t, err)

	c := tablecache.New(store, "accounts", schema, 0)
	_ = recvResult(t, c.Get(ctx, 1))
	require.NoError(t, c.RemoveKey(ctx, 1))
	require.NoError(t, c.InsertKey(1, buildTuple(t, schema, 99)))

	changes := c.Changes()
	require.Equal(t, tablecache.Update, changes[1].Action)
	require.Equal(t, int64(99), changes[1].After.Get(0).BigInt())
	require.True(t, changes[1].HasBefore)
}
