// Package rediscache decorates a kv.WeakStore with a Redis read-through
// cache.
//
// The cache is strictly an accelerator: every write still lands in the inner
// store before success is reported, and any Redis failure degrades to the
// inner store instead of failing the operation (fail-open). Cache entries
// carry a TTL, so a stale entry after an uncached overwrite converges within
// the TTL, which the weak consistency contract permits.
//
// Concurrent misses for the same key are collapsed into a single inner read
// via singleflight.
package rediscache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/castore/kv"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultKeyPrefix = "castore:"
)

// Cache is a caching kv.WeakStore decorator.
type Cache struct {
	inner  kv.WeakStore
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
	group  singleflight.Group
}

// Option configures New.
type Option func(*Cache)

// WithTTL overrides the default cache entry lifetime of five minutes.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithKeyPrefix overrides the Redis key namespace prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithLogger sets the logger for cache degradation warnings. The default
// discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New wraps inner with a Redis cache.
func New(inner kv.WeakStore, client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		inner:  inner,
		client: client,
		ttl:    defaultTTL,
		prefix: defaultKeyPrefix,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) cacheKey(key kv.Key) string {
	return c.prefix + key.String()
}

// fill writes a value into the cache, logging instead of failing on error.
func (c *Cache) fill(ctx context.Context, key kv.Key, value []byte) {
	if err := c.client.Set(ctx, c.cacheKey(key), value, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache fill failed", "key", key.String(), "error", err)
	}
}

// WeakGet implements kv.WeakStore. Cache hits skip the inner store entirely;
// concurrent misses for one key share a single inner read.
func (c *Cache) WeakGet(ctx context.Context, key kv.Key) ([]byte, error) {
	cached, err := c.client.Get(ctx, c.cacheKey(key)).Bytes()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "cache read failed", "key", key.String(), "error", err)
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		value, err := c.inner.WeakGet(ctx, key)
		if err != nil {
			return nil, err
		}
		c.fill(ctx, key, value)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// WeakPut implements kv.WeakStore. The inner store is written first; the
// cache is then filled write-through.
func (c *Cache) WeakPut(ctx context.Context, key kv.Key, value []byte) error {
	if err := c.inner.WeakPut(ctx, key, value); err != nil {
		return err
	}
	c.fill(ctx, key, value)
	return nil
}

// WeakExists implements kv.WeakStore. A cache hit answers immediately; a miss
// falls through without filling, since existence alone has no value to cache.
func (c *Cache) WeakExists(ctx context.Context, key kv.Key) (bool, error) {
	n, err := c.client.Exists(ctx, c.cacheKey(key)).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "cache exists failed", "key", key.String(), "error", err)
	} else if n > 0 {
		return true, nil
	}
	return c.inner.WeakExists(ctx, key)
}

// WeakDelete implements kv.WeakStore. The cache entry is dropped after the
// inner delete; if the drop fails the entry still expires at the TTL.
func (c *Cache) WeakDelete(ctx context.Context, key kv.Key) error {
	if err := c.inner.WeakDelete(ctx, key); err != nil {
		return err
	}
	if err := c.client.Del(ctx, c.cacheKey(key)).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed", "key", key.String(), "error", err)
	}
	return nil
}

// WeakIter implements kv.WeakStore by delegating to the inner store. Listing
// is not cached.
func (c *Cache) WeakIter(ctx context.Context, cursor kv.Cursor, maxItems int) (kv.IterationResult, error) {
	return c.inner.WeakIter(ctx, cursor, maxItems)
}

var _ kv.WeakStore = (*Cache)(nil)
