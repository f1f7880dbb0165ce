package distance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"fieldroute/internal/model"
)

// Cache stores provider results per origin/destination pair in redis.
// Coordinates are rounded to 5 decimals (~1m) when keyed, so repeated
// lookups for the same account hit the same entry even if the client
// sends slightly different float noise.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{rdb: rdb, prefix: "fieldroute:dist:", ttl: ttl}
}

func (c *Cache) key(o, d model.Location) string {
	return fmt.Sprintf("%s%.5f,%.5f|%.5f,%.5f", c.prefix,
		round5(o.Lat), round5(o.Lng), round5(d.Lat), round5(d.Lng))
}

// Get returns the cached result for a pair, or ok=false on miss. Redis
// errors are treated as misses; the cache is best-effort.
func (c *Cache) Get(ctx context.Context, o, d model.Location) (Result, bool) {
	if c == nil || c.rdb == nil {
		return Result{}, false
	}
	vals, err := c.rdb.HGetAll(ctx, c.key(o, d)).Result()
	if err != nil || len(vals) == 0 {
		return Result{}, false
	}
	var r Result
	if _, err := fmt.Sscanf(vals["km"], "%g", &r.Km); err != nil {
		return Result{}, false
	}
	if _, err := fmt.Sscanf(vals["min"], "%g", &r.Minutes); err != nil {
		return Result{}, false
	}
	return r, true
}

// Put stores a provider result for a pair.
func (c *Cache) Put(ctx context.Context, o, d model.Location, r Result) {
	if c == nil || c.rdb == nil {
		return
	}
	k := c.key(o, d)
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, k, "km", fmt.Sprintf("%g", r.Km), "min", fmt.Sprintf("%g", r.Minutes))
	pipe.Expire(ctx, k, c.ttl)
	_, _ = pipe.Exec(ctx)
}

func round5(v float64) float64 { return math.Round(v*1e5) / 1e5 }
