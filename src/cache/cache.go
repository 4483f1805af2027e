// Package cache provides an optional redis read-through cache for
// neighborhood polygons. Neighborhoods are read-only reference data, so
// entries only ever expire, they are never invalidated.
package cache

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"restaurant-reviews/src/metrics"
	"restaurant-reviews/src/types"
)

const keyPrefix = "neighborhood:"

// Neighborhoods caches neighborhood lookups by name. A nil *Neighborhoods is
// valid and passes every lookup straight through.
type Neighborhoods struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.SugaredLogger
}

// OpenFromEnv builds the cache from REDIS_HOST/REDIS_PORT/REDIS_PASS/REDIS_DB
// and NEIGHBORHOOD_CACHE_TTL. Returns nil when REDIS_HOST is unset, which
// disables caching entirely.
func OpenFromEnv(log *zap.SugaredLogger) *Neighborhoods {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		return nil
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, _ := strconv.Atoi(v); n >= 0 {
			db = n
		}
	}
	ttl := 10 * time.Minute
	if v := os.Getenv("NEIGHBORHOOD_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			ttl = d
		}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: os.Getenv("REDIS_PASS"),
		DB:       db,
	})
	return &Neighborhoods{rdb: rdb, ttl: ttl, log: log}
}

// Get returns the cached neighborhood for name, falling back to miss on any
// cache error. types.ErrNotFound results are not cached.
func (c *Neighborhoods) Get(ctx context.Context, name string, miss func(context.Context, string) (*types.Neighborhood, error)) (*types.Neighborhood, error) {
	if c == nil || c.rdb == nil {
		return miss(ctx, name)
	}

	key := keyPrefix + name
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var n types.Neighborhood
		if err := json.Unmarshal(raw, &n); err == nil {
			metrics.NeighborhoodCacheHitsTotal.Inc()
			return &n, nil
		}
		c.log.Warnw("neighborhood cache decode failed", "name", name, "err", err)
	}
	metrics.NeighborhoodCacheMissesTotal.Inc()

	n, err := miss(ctx, name)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(n); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warnw("neighborhood cache store failed", "name", name, "err", err)
		}
	}
	return n, nil
}

// Ping checks connectivity so startup can log whether the cache is usable.
func (c *Neighborhoods) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
