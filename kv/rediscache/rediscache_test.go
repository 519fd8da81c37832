package rediscache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/castore/kv"
	"github.com/hupe1980/castore/kv/kvtest"
)

// newIntegrationClient connects to a local Redis instance and skips the test
// when none is running.
func newIntegrationClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// deadClient returns a client whose every command fails fast, for exercising
// the fail-open path without a server.
func deadClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCache_Integration(t *testing.T) {
	client := newIntegrationClient(t)

	run := 0
	kvtest.RunWeakStoreTests(t, "RedisCache", func(t *testing.T) kv.WeakStore {
		run++
		return New(kv.NewMemStore(), client,
			WithKeyPrefix(fmt.Sprintf("castore-test:%d:%d:", time.Now().UnixNano(), run)))
	})
}

func TestCache_Integration_ServesHitsFromCache(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()

	inner := kv.NewMemStore()
	cache := New(inner, client,
		WithKeyPrefix(fmt.Sprintf("castore-test:%d:", time.Now().UnixNano())))

	key := kv.MustKey("cafe01")
	require.NoError(t, cache.WeakPut(ctx, key, []byte("cached value")))

	// Remove the backing entry; the cache must still answer.
	require.NoError(t, inner.WeakDelete(ctx, key))

	got, err := cache.WeakGet(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached value"), got)
}

func TestCache_Integration_DeleteInvalidates(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()

	cache := New(kv.NewMemStore(), client,
		WithKeyPrefix(fmt.Sprintf("castore-test:%d:", time.Now().UnixNano())))

	key := kv.MustKey("dead01")
	require.NoError(t, cache.WeakPut(ctx, key, []byte("v")))
	require.NoError(t, cache.WeakDelete(ctx, key))

	_, err := cache.WeakGet(ctx, key)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCache_FailsOpenWithoutRedis(t *testing.T) {
	ctx := context.Background()
	cache := New(kv.NewMemStore(), deadClient(t))

	key := kv.MustKey("0b5e")
	value := []byte("survives redis outage")

	require.NoError(t, cache.WeakPut(ctx, key, value))

	got, err := cache.WeakGet(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	ok, err := cache.WeakExists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, cache.WeakDelete(ctx, key))
	_, err = cache.WeakGet(ctx, key)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCache_FailsOpenConformance(t *testing.T) {
	kvtest.RunWeakStoreTests(t, "DegradedRedisCache", func(t *testing.T) kv.WeakStore {
		return New(kv.NewMemStore(), deadClient(t))
	})
}
