package field_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Stone1973/telldb"
	"github.com/Stone1973/telldb/field"
)

func TestCompareSameTag(t *testing.T) {
	lt, err := field.Compare(field.NewInt(1), field.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, field.Less, lt)

	eq, err := field.Compare(field.NewText("abc"), field.NewText("abc"))
	require.NoError(t, err)
	require.Equal(t, field.Equal, eq)

	gt, err := field.Compare(field.NewDouble(3.5), field.NewDouble(1.5))
	require.NoError(t, err)
	require.Equal(t, field.Greater, gt)
}

func TestCompareNullIsAlwaysEqual(t *testing.T) {
	o, err := field.Compare(field.Null(), field.Null())
	require.NoError(t, err)
	require.Equal(t, field.Equal, o)
}

func TestCompareTypeMismatch(t *testing.T) {
	_, err := field.Compare(field.NewInt(1), field.NewBigInt(1))
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.TypeMismatch))
}

func TestCompareBlobUnorderable(t *testing.T) {
	_, err := field.Compare(field.NewBlob([]byte{1}), field.NewBlob([]byte{1}))
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.Unorderable))
}

func TestCastNumericRoundTrip(t *testing.T) {
	f, err := field.NewInt(42).Cast(field.TEXT)
	require.NoError(t, err)
	require.Equal(t, "42", f.Text())

	back, err := f.Cast(field.BIGINT)
	require.NoError(t, err)
	require.Equal(t, int64(42), back.BigInt())
}

func TestCastTextBadNumberFails(t *testing.T) {
	_, err := field.NewText("abc").Cast(field.INT)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.BadCast))
}

func TestCastOverflowFails(t *testing.T) {
	_, err := field.NewText("99999").Cast(field.SMALLINT)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.BadCast))
}

func TestCastBlobAlwaysFails(t *testing.T) {
	_, err := field.NewBlob([]byte("x")).Cast(field.TEXT)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.BadCast))

	_, err = field.NewInt(1).Cast(field.BLOB)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.BadCast))
}

func TestCastIdentityIsNoop(t *testing.T) {
	f, err := field.NewInt(7).Cast(field.INT)
	require.NoError(t, err)
	require.Equal(t, int32(7), f.Int())
}

func TestSerializeFixedWidth(t *testing.T) {
	var buf bytes.Buffer
	n, err := field.NewBigInt(1234567).Serialize(&buf)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, 8, buf.Len())

	got, err := field.Deserialize(field.BIGINT, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(1234567), got.BigInt())
}

func TestSerializeTextIsLengthPrefixedAndPadded(t *testing.T) {
	var buf bytes.Buffer
	n, err := field.NewText("hi").Serialize(&buf)
	require.NoError(t, err)
	// 4-byte length prefix + 2 bytes payload padded up to a multiple of 8.
	require.Equal(t, 8, n)
	require.Equal(t, 0, n%8)

	got, err := field.Deserialize(field.TEXT, &buf)
	require.NoError(t, err)
	require.Equal(t, "hi", got.Text())
}

func TestSerializeNullIsZeroBytes(t *testing.T) {
	var buf bytes.Buffer
	n, err := field.Null().Serialize(&buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 0, buf.Len())
}

func TestSerializeNoTypeFails(t *testing.T) {
	var buf bytes.Buffer
	_, err := field.NoType().Serialize(&buf)
	require.Error(t, err)
	require.True(t, telldb.Is(err, telldb.NotSerializable))
}

func TestOrderingHelpers(t *testing.T) {
	require.True(t, field.NewInt(1).Less(field.NewInt(2)))
	require.True(t, field.NewInt(2).Greater(field.NewInt(1)))
	require.True(t, field.NewInt(2).Equal(field.NewInt(2)))
	require.False(t, field.NewBlob([]byte{1}).Equal(field.NewBlob([]byte{1})))
}
