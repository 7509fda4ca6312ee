// Package pagecache caches resolved page views in Redis.
//
// Keys embed a generation number. Any content write bumps the generation,
// which orphans every cached view at once; orphans expire by TTL. Cache
// failures are logged and counted but never fail a read.
package pagecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratacms/internal/app/system/metrics"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 5 * time.Minute

const (
	keyPrefix     = "stratacms:view:"
	generationKey = keyPrefix + "gen"
)

// Key identifies one cached rendering of a page.
type Key struct {
	Slug   string
	Lang   string
	Format string
}

// Cache is a Redis-backed view cache. A nil *Cache is valid and disabled.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
	sf  singleflight.Group
}

// New returns a cache over rdb. A nil rdb returns a nil (disabled) cache.
func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{rdb: rdb, ttl: ttl, log: logger}
}

// Connect builds a Redis client for addr. An empty addr returns nil, nil.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Enabled reports whether the cache talks to Redis.
func (c *Cache) Enabled() bool { return c != nil }

// Fetch returns the cached view for key, or calls load, stores its result
// and returns it. Concurrent fills of the same key share one load.
func (c *Cache) Fetch(ctx context.Context, key Key, load func(context.Context) (models.PageView, error)) (models.PageView, error) {
	if c == nil {
		return load(ctx)
	}

	gen, err := c.generation(ctx)
	if err != nil {
		c.fail("generation", err)
		return load(ctx)
	}
	rkey := redisKey(gen, key)

	if v, ok := c.get(ctx, rkey); ok {
		return v, nil
	}

	res, err, _ := c.sf.Do(rkey, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return models.PageView{}, err
		}
		c.set(ctx, rkey, v)
		return v, nil
	})
	if err != nil {
		return models.PageView{}, err
	}
	return res.(models.PageView), nil
}

// Invalidate bumps the generation so every cached view becomes unreachable.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		c.fail("invalidate", err)
		return
	}
	metrics.ObserveCache("invalidate")
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) generation(ctx context.Context) (int64, error) {
	n, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (c *Cache) get(ctx context.Context, rkey string) (models.PageView, bool) {
	b, err := c.rdb.Get(ctx, rkey).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveCache("miss")
		return models.PageView{}, false
	}
	if err != nil {
		c.fail("get", err)
		return models.PageView{}, false
	}
	var v models.PageView
	if err := json.Unmarshal(b, &v); err != nil {
		c.fail("decode", err)
		return models.PageView{}, false
	}
	metrics.ObserveCache("hit")
	return v, true
}

func (c *Cache) set(ctx context.Context, rkey string, v models.PageView) {
	b, err := json.Marshal(v)
	if err != nil {
		c.fail("encode", err)
		return
	}
	if err := c.rdb.Set(ctx, rkey, b, c.ttl).Err(); err != nil {
		c.fail("set", err)
		return
	}
	metrics.ObserveCache("set")
}

func (c *Cache) fail(op string, err error) {
	metrics.ObserveCache("error")
	c.log.Warn("view cache unavailable", zap.String("op", op), zap.Error(err))
}

func redisKey(gen int64, k Key) string {
	return fmt.Sprintf("%s%d:%s:%s:%s", keyPrefix, gen, k.Slug, k.Lang, k.Format)
}
