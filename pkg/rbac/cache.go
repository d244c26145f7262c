package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/tenantry/pkg/observability"
)

// PermissionCache caches resolved permission sets. Implementations treat
// backend failures as misses.
type PermissionCache interface {
	Get(ctx context.Context, key string) (PermissionSet, bool)
	Set(ctx context.Context, key string, perms PermissionSet)
	Flush(ctx context.Context)
}

// NopCache never caches
type NopCache struct{}

func (NopCache) Get(context.Context, string) (PermissionSet, bool) { return nil, false }
func (NopCache) Set(context.Context, string, PermissionSet)        {}
func (NopCache) Flush(context.Context)                             {}

// LRUCache is an in-process cache with per-entry expiry
type LRUCache struct {
	entries *expirable.LRU[string, []string]
	metrics *observability.Metrics
}

// NewLRUCache creates an in-process cache holding up to size entries for ttl
func NewLRUCache(size int, ttl time.Duration, metrics *observability.Metrics) *LRUCache {
	if size <= 0 {
		size = 1024
	}
	return &LRUCache{
		entries: expirable.NewLRU[string, []string](size, nil, ttl),
		metrics: metrics,
	}
}

func (c *LRUCache) Get(_ context.Context, key string) (PermissionSet, bool) {
	names, ok := c.entries.Get(key)
	c.metrics.RecordCacheLookup("lru", ok)
	if !ok {
		return nil, false
	}
	return NewPermissionSet(names...), true
}

func (c *LRUCache) Set(_ context.Context, key string, perms PermissionSet) {
	c.entries.Add(key, perms.Names())
}

func (c *LRUCache) Flush(context.Context) {
	c.entries.Purge()
}

// Len returns the number of live entries
func (c *LRUCache) Len() int {
	return c.entries.Len()
}

// RedisCache shares cached permission sets between processes. Flush bumps a
// generation counter so stale keys are never read again and expire on their own.
type RedisCache struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *RedisCache {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RedisCache{
		client:  client,
		prefix:  "tenantry:permissions",
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":generation"
}

func (c *RedisCache) key(ctx context.Context, key string) (string, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, key), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (PermissionSet, bool) {
	k, err := c.key(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("permission cache unavailable")
		c.metrics.RecordCacheLookup("redis", false)
		return nil, false
	}

	data, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("failed to read permission cache")
		}
		c.metrics.RecordCacheLookup("redis", false)
		return nil, false
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		c.logger.WithError(err).Warn("discarding corrupt permission cache entry")
		c.metrics.RecordCacheLookup("redis", false)
		return nil, false
	}
	c.metrics.RecordCacheLookup("redis", true)
	return NewPermissionSet(names...), true
}

func (c *RedisCache) Set(ctx context.Context, key string, perms PermissionSet) {
	k, err := c.key(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("permission cache unavailable")
		return
	}
	data, err := json.Marshal(perms.Names())
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, k, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("failed to write permission cache")
	}
}

func (c *RedisCache) Flush(ctx context.Context) {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		c.logger.WithError(err).Error("failed to flush permission cache")
	}
}
