package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "trip_planner/internal/adapters/redis"
	"trip_planner/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	in := domain.SearchResponse{Success: true, Data: []map[string]any{{"id": "1", "name": "Hotel Roma"}}}
	require.NoError(t, c.Set(ctx, "retrieval:lodging:x", in, 60))

	var out domain.SearchResponse
	ok, err := c.Get(ctx, "retrieval:lodging:x", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, out.Success)
	assert.Equal(t, "Hotel Roma", out.Data[0]["name"])
}

func TestCache_MissAndExpiry(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	var out domain.SearchResponse
	ok, err := c.Get(ctx, "nope", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", domain.SearchResponse{Success: true}, 1))
	mr.FastForward(2 * time.Second)
	ok, err = c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_DelPrefix(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	for _, k := range []string{"retrieval:lodging:a", "retrieval:lodging:b", "retrieval:dining:a"} {
		require.NoError(t, c.Set(ctx, k, domain.SearchResponse{Success: true}, 60))
	}

	n, err := c.DelPrefix(ctx, "retrieval:lodging:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists("trip:retrieval:lodging:a"))
	assert.True(t, mr.Exists("trip:retrieval:dining:a"))
}
