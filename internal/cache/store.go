package cache

import (
	"context"
	"time"

	"github.com/ocx/trustengine/internal/trust"
)

// ResultStore is the interface the pipeline depends on, so that
// swapping the in-memory Store for RedisCache never touches pipeline
// logic.
type ResultStore interface {
	Get(ctx context.Context, key string) (trust.TrustResult, bool)
	Put(ctx context.Context, key string, result trust.TrustResult, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// memoryAdapter satisfies ResultStore over the plain in-memory Store,
// whose operations need no context.
type memoryAdapter struct {
	store *Store
}

// NewResultStore wraps an in-memory Store as a ResultStore.
func NewResultStore(store *Store) ResultStore {
	return memoryAdapter{store: store}
}

func (m memoryAdapter) Get(_ context.Context, key string) (trust.TrustResult, bool) {
	return m.store.Get(key)
}

func (m memoryAdapter) Put(_ context.Context, key string, result trust.TrustResult, ttl time.Duration) error {
	m.store.Put(key, result, ttl)
	return nil
}

func (m memoryAdapter) Invalidate(_ context.Context, key string) error {
	m.store.Invalidate(key)
	return nil
}

// redisAdapter satisfies ResultStore over RedisCache, whose operations
// already take a context.
type redisAdapter struct {
	cache *RedisCache
}

// NewRedisResultStore wraps a RedisCache as a ResultStore.
func NewRedisResultStore(c *RedisCache) ResultStore {
	return redisAdapter{cache: c}
}

func (r redisAdapter) Get(ctx context.Context, key string) (trust.TrustResult, bool) {
	return r.cache.Get(ctx, key)
}

func (r redisAdapter) Put(ctx context.Context, key string, result trust.TrustResult, ttl time.Duration) error {
	return r.cache.Put(ctx, key, result, ttl)
}

func (r redisAdapter) Invalidate(ctx context.Context, key string) error {
	return r.cache.Invalidate(ctx, key)
}
