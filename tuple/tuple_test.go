package tuple_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/field"
	"github.com/Stone1973/telldb/tuple"
)

func testSchema(t *testing.T) *tuple.Schema {
	t.Helper()
	s, err := tuple.NewSchema("accounts",
		tuple.Column{Name: "id", Tag: field.BIGINT},
		tuple.Column{Name: "name", Tag: field.TEXT},
		tuple.Column{Name: "balance", Tag: field.DOUBLE},
	)
	require.NoError(t, err)
	return s
}

func TestSchemaLookup(t *testing.T) {
	s := testSchema(t)
	id, ok := s.IDOf("name")
	require.True(t, ok)
	require.Equal(t, 1, id)

	_, ok = s.IDOf("nope")
	require.False(t, ok)
}

func TestSchemaDuplicateColumnFails(t *testing.T) {
	_, err := tuple.NewSchema("t", tuple.Column{Name: "a", Tag: field.INT}, tuple.Column{Name: "a", Tag: field.INT})
	require.Error(t, err)
}

func TestBuilderBuildAndAccess(t *testing.T) {
	s := testSchema(t)
	b := tuple.NewBuilder(s)
	require.NoError(t, b.Set(0, field.NewBigInt(7)))
	require.NoError(t, b.SetByName("name", field.NewText("alice")))
	require.NoError(t, b.SetByName("balance", field.NewDouble(12.5)))

	tup, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, int64(7), tup.Get(0).BigInt())

	name, err := tup.GetByName("name")
	require.NoError(t, err)
	require.Equal(t, "alice", name.Text())
}

func TestBuilderMissingColumnFailsBuild(t *testing.T) {
	s := testSchema(t)
	b := tuple.NewBuilder(s)
	require.NoError(t, b.Set(0, field.NewBigInt(1)))
	_, err := b.Build()
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.TypeMismatch))
}

func TestSetTagMismatchFails(t *testing.T) {
	s := testSchema(t)
	b := tuple.NewBuilder(s)
	err := b.Set(0, field.NewText("not a bigint"))
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.TypeMismatch))
}

func TestSetNullAlwaysAllowed(t *testing.T) {
	s := testSchema(t)
	b := tuple.NewBuilder(s)
	require.NoError(t, b.Set(0, field.NewBigInt(1)))
	require.NoError(t, b.Set(1, field.Null()))
	require.NoError(t, b.Set(2, field.NewDouble(0)))
	tup, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, field.NULL, tup.Get(1).Tag())
}

func TestGetByNameUnknownColumnFails(t *testing.T) {
	s := testSchema(t)
	b := tuple.NewBuilder(s)
	require.NoError(t, b.Set(0, field.NewBigInt(1)))
	require.NoError(t, b.Set(1, field.NewText("x")))
	require.NoError(t, b.Set(2, field.NewDouble(0)))
	tup, err := b.Build()
	require.NoError(t, err)

	_, err = tup.GetByName("nope")
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.KeyNotFound))
}

func TestSerializeRoundTrip(t *testing.T) {
	s := testSchema(t)
	b := tuple.NewBuilder(s)
	require.NoError(t, b.Set(0, field.NewBigInt(42)))
	require.NoError(t, b.Set(1, field.NewText("bob")))
	require.NoError(t, b.Set(2, field.NewDouble(3.25)))
	tup, err := b.Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = tup.Serialize(&buf)
	require.NoError(t, err)

	got, err := tuple.Deserialize(s, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(42), got.Get(0).BigInt())
	require.Equal(t, "bob", got.Get(1).Text())
	require.Equal(t, 3.25, got.Get(2).Float64())
}

func TestFromTuplePreservesValues(t *testing.T) {
	s := testSchema(t)
	b := tuple.NewBuilder(s)
	require.NoError(t, b.Set(0, field.NewBigInt(1)))
	require.NoError(t, b.Set(1, field.NewText("x")))
	require.NoError(t, b.Set(2, field.NewDouble(0)))
	orig, err := b.Build()
	require.NoError(t, err)

	b2 := tuple.FromTuple(orig)
	require.NoError(t, b2.SetByName("balance", field.NewDouble(99)))
	updated, err := b2.Build()
	require.NoError(t, err)

	require.Equal(t, int64(1), updated.Get(0).BigInt())
	require.Equal(t, 99.0, updated.Get(2).Float64())
	require.Equal(t, 0.0, orig.Get(2).Float64())
}
