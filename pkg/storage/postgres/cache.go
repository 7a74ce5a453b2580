package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/observability"
	"github.com/platinummonkey/bukget/pkg/storage"
)

// Cache layer names used in metrics
const (
	cacheL1 = "l1"
	cacheL2 = "redis"
)

var _ catalog.Repository = (*CachedRepository)(nil)

// CachedRepository is a read-through cache in front of a catalog.Repository: an
// in-process LRU (L1) backed by Redis (L2). Values are stored as JSON so callers
// always receive private copies. Either layer may be disabled. Not-found results
// are never cached.
type CachedRepository struct {
	next    catalog.Repository
	redis   *RedisClient
	l1      *expirable.LRU[string, []byte]
	metrics *observability.Metrics
}

// NewCachedRepository wraps next. redis may be nil; a zero L1CacheSize disables L1.
func NewCachedRepository(next catalog.Repository, redis *RedisClient, cfg storage.Config, metrics *observability.Metrics) *CachedRepository {
	c := &CachedRepository{
		next:    next,
		redis:   redis,
		metrics: metrics,
	}
	if cfg.L1CacheSize > 0 {
		c.l1 = expirable.NewLRU[string, []byte](cfg.L1CacheSize, nil, cfg.L1CacheTTL)
	}
	return c
}

// ListPlugins returns plugins matching the query
func (c *CachedRepository) ListPlugins(ctx context.Context, q catalog.PluginQuery) ([]catalog.Plugin, error) {
	key := fmt.Sprintf("plugins:%s:%s:%s:%t", q.Server, q.Author, q.Category, q.WithVersions)
	return readThrough(ctx, c, key, "plugins", func(ctx context.Context) ([]catalog.Plugin, error) {
		return c.next.ListPlugins(ctx, q)
	})
}

// GetPlugin returns one plugin with its versions
func (c *CachedRepository) GetPlugin(ctx context.Context, server, slug string) (*catalog.Plugin, error) {
	key := fmt.Sprintf("plugin:%s:%s", server, slug)
	return readThrough(ctx, c, key, "plugin", func(ctx context.Context) (*catalog.Plugin, error) {
		return c.next.GetPlugin(ctx, server, slug)
	})
}

// ListAuthors returns every author
func (c *CachedRepository) ListAuthors(ctx context.Context) ([]catalog.Author, error) {
	return readThrough(ctx, c, "authors", "authors", c.next.ListAuthors)
}

// ListCategories returns every category
func (c *CachedRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	return readThrough(ctx, c, "categories", "categories", c.next.ListCategories)
}

// ListGenerations returns the most recent generations
func (c *CachedRepository) ListGenerations(ctx context.Context, limit int) ([]catalog.Generation, error) {
	return readThrough(ctx, c, "geninfo:"+strconv.Itoa(limit), "geninfo", func(ctx context.Context) ([]catalog.Generation, error) {
		return c.next.ListGenerations(ctx, limit)
	})
}

// Invalidate drops every cached entry from both layers
func (c *CachedRepository) Invalidate(ctx context.Context) error {
	if c.l1 != nil {
		c.l1.Purge()
	}
	if c.redis != nil {
		if err := c.redis.InvalidatePatterns(ctx, "*"); err != nil {
			return fmt.Errorf("failed to invalidate redis cache: %w", err)
		}
	}
	return nil
}

func readThrough[T any](ctx context.Context, c *CachedRepository, key, keyType string, load func(context.Context) (T, error)) (T, error) {
	var value T

	if c.l1 != nil {
		if data, ok := c.l1.Get(key); ok {
			if err := json.Unmarshal(data, &value); err == nil {
				c.metrics.RecordCacheHit(cacheL1, keyType)
				return value, nil
			}
			c.l1.Remove(key)
		}
		c.metrics.RecordCacheMiss(cacheL1, keyType)
	}

	if c.redis != nil {
		data, ok, err := c.redis.Get(ctx, key)
		switch {
		case err != nil:
			observability.FromContext(ctx).WithError(err).WithField("key", key).Warn("Redis cache read failed")
		case ok:
			if err := json.Unmarshal(data, &value); err == nil {
				c.metrics.RecordCacheHit(cacheL2, keyType)
				if c.l1 != nil {
					c.l1.Add(key, data)
				}
				return value, nil
			}
			c.redis.Delete(ctx, key)
		}
		c.metrics.RecordCacheMiss(cacheL2, keyType)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return value, nil
	}
	if c.l1 != nil {
		c.l1.Add(key, data)
	}
	if c.redis != nil {
		if err := c.redis.Set(ctx, key, data); err != nil && !errors.Is(err, context.Canceled) {
			observability.FromContext(ctx).WithError(err).WithField("key", key).Warn("Redis cache write failed")
		}
	}

	return value, nil
}
