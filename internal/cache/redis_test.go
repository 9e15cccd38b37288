package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/cache"
)

func newCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newCache(t)

	require.NoError(t, c.Ping(ctx))

	var got []float32
	ok, err := c.Get(ctx, "emb:x", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "emb:x", []float32{0.25, -1}, time.Minute))
	ok, err = c.Get(ctx, "emb:x", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.25, -1}, got)

	require.NoError(t, c.Del(ctx, "emb:x"))
	ok, err = c.Get(ctx, "emb:x", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_TTLExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newCache(t)

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	var s string
	ok, err := c.Get(ctx, "k", &s)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_GetReportsConnectionErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newCache(t)
	mr.Close()

	var s string
	_, err := c.Get(ctx, "k", &s)
	assert.Error(t, err)
}
