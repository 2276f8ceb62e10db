package tablecache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeL2EntryRoundTrips(t *testing.T) {
	fields := []byte("some serialized tuple")
	b := encodeL2Entry(42, fields)

	version, got, err := decodeL2Entry(b)
	require.NoError(t, err)
	require.Equal(t, int64(42), version)
	require.Equal(t, fields, got)
}

func TestDecodeL2EntryRejectsShortInput(t *testing.T) {
	_, _, err := decodeL2Entry([]byte("short"))
	require.Error(t, err)
}
