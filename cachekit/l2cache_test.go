package cachekit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Stone1973/telldb/cachekit"
	"github.com/Stone1973/telldb/cachekit/testcache"
)

func TestL2CacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	l2 := cachekit.NewL2Cache(testcache.New(), time.Minute)

	_, ok := l2.Get(ctx, "accounts:1")
	require.False(t, ok)

	require.NoError(t, l2.Set(ctx, "accounts:1", []byte("payload")))
	v, ok := l2.Get(ctx, "accounts:1")
	require.True(t, ok)
	require.Equal(t, []byte("payload"), v)

	require.NoError(t, l2.Delete(ctx, "accounts:1"))
	_, ok = l2.Get(ctx, "accounts:1")
	require.False(t, ok)
}
