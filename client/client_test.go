package client_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/client"
	"github.com/Stone1973/telldb/field"
	"github.com/Stone1973/telldb/storage/memstore"
	"github.com/Stone1973/telldb/tuple"
)

// fakeCommitManager mirrors transaction_test.go's stand-in: an in-memory
// CommitManager sufficient to exercise ClientContext without a live Redis.
type fakeCommitManager struct {
	mu      sync.Mutex
	version uint64
}

func (m *fakeCommitManager) NewSnapshot(_ context.Context, writer telldb.UUID) (telldb.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	return telldb.Snapshot{Version: m.version, InFlightWriters: map[telldb.UUID]struct{}{}}, nil
}

func (m *fakeCommitManager) Complete(_ context.Context, _ telldb.Snapshot, _ telldb.UUID) error {
	return nil
}

func accountsSchema(t *testing.T) *tuple.Schema {
	t.Helper()
	s, err := tuple.NewSchema("accounts", tuple.Column{Name: "balance", Tag: field.BIGINT})
	require.NoError(t, err)
	return s
}

func TestOpenTransactionSeedsSchemaFromCatalog(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	c := client.New(store, &fakeCommitManager{}, nil, nil, client.Options{})

	require.NoError(t, c.CreateTable(ctx, "accounts", accountsSchema(t)))

	txn, err := c.OpenTransaction(ctx, telldb.ReadWrite)
	require.NoError(t, err)

	b := tuple.NewBuilder(accountsSchema(t))
	require.NoError(t, b.Set(0, field.NewBigInt(42)))
	tup, err := b.Build()
	require.NoError(t, err)

	require.NoError(t, txn.Insert(ctx, "accounts", 1, tup))
	require.NoError(t, txn.Commit(ctx))
}

func TestOpenTransactionAssignsDistinctIDs(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	c := client.New(store, &fakeCommitManager{}, nil, nil, client.Options{})
	require.NoError(t, c.CreateTable(ctx, "accounts", accountsSchema(t)))

	txn1, err := c.OpenTransaction(ctx, telldb.ReadOnly)
	require.NoError(t, err)
	txn2, err := c.OpenTransaction(ctx, telldb.ReadOnly)
	require.NoError(t, err)

	require.NotEqual(t, txn1.ID(), txn2.ID())
}

func TestClientContextSchemaLookup(t *testing.T) {
	store := memstore.New()
	c := client.New(store, &fakeCommitManager{}, nil, nil, client.Options{})

	_, ok := c.Schema("accounts")
	require.False(t, ok)

	schema := accountsSchema(t)
	c.RegisterSchema("accounts", schema)

	got, ok := c.Schema("accounts")
	require.True(t, ok)
	require.Equal(t, schema, got)
}
