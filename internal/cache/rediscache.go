package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ocx/trustengine/internal/trust"
)

// keyPrefix namespaces every entry this package writes into a shared
// Redis keyspace.
const keyPrefix = "trustengine:result:"

// RedisCache is a Redis-backed alternative to Store, for deployments
// that need the result cache shared across multiple process
// instances rather than scoped to one. It implements the same
// operations as Store but against go-redis v9, reusing Redis's own
// key expiry instead of a sweeper goroutine.
type RedisCache struct {
	rdb        *redis.Client
	defaultTTL time.Duration
}

// NewRedisCache connects to addr/db and verifies reachability with a
// ping before returning. A non-positive defaultTTL falls back to
// DefaultTTL.
func NewRedisCache(addr, password string, db int, defaultTTL time.Duration) (*RedisCache, error) {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	return &RedisCache{rdb: rdb, defaultTTL: defaultTTL}, nil
}

// Close releases the underlying connection pool.
func (r *RedisCache) Close() error {
	return r.rdb.Close()
}

// Get returns the cached result for key, if present and unexpired.
func (r *RedisCache) Get(ctx context.Context, key string) (trust.TrustResult, bool) {
	raw, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return trust.TrustResult{}, false
	}
	var result trust.TrustResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return trust.TrustResult{}, false
	}
	return result, true
}

// Put stores a result under key with the given ttl, falling back to
// the cache's configured default TTL when ttl is non-positive.
func (r *RedisCache) Put(ctx context.Context, key string, result trust.TrustResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyPrefix+key, raw, ttl).Err()
}

// Invalidate removes a single key.
func (r *RedisCache) Invalidate(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, keyPrefix+key).Err()
}
