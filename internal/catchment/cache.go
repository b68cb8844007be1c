package catchment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// noneSentinel caches the "no membership" outcome, which is as common as a
// hit for rural coordinates and just as worth remembering.
const noneSentinel = "none"

// ResolutionCache memoizes catchment resolutions in Redis. Coordinates are
// quantized to 0.001° (~110 m) so nearby repeat lookups (the same address
// re-queried, neighbors on one street) share an entry. Catchment polygons
// are static between bulk loads, so a short TTL is purely defensive against
// reloads. A nil cache is valid and disables memoization.
type ResolutionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResolutionCache connects to Redis at addr; an empty addr returns nil,
// which every method tolerates.
func NewResolutionCache(addr string, ttl time.Duration) *ResolutionCache {
	if addr == "" {
		return nil
	}
	return &ResolutionCache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

func cacheKey(pt Point, kind string) string {
	return fmt.Sprintf("catchment:%s:%.3f:%.3f", kind, pt.Lat, pt.Lng)
}

// Get returns (membership, true) on a cache hit. The membership is nil for
// a remembered "no membership" outcome. Cache failures read as misses.
func (c *ResolutionCache) Get(ctx context.Context, pt Point, kind string) (*Membership, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(pt, kind)).Result()
	if err != nil {
		return nil, false
	}
	if raw == noneSentinel {
		return nil, true
	}
	var m Membership
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}
	return &m, true
}

// Set stores the resolution outcome. Best effort: a write failure is logged
// and otherwise ignored; the cache never makes a query fail.
func (c *ResolutionCache) Set(ctx context.Context, pt Point, kind string, m *Membership) {
	if c == nil {
		return
	}
	payload := noneSentinel
	if m != nil {
		raw, err := json.Marshal(m)
		if err != nil {
			return
		}
		payload = string(raw)
	}
	if err := c.rdb.Set(ctx, cacheKey(pt, kind), payload, c.ttl).Err(); err != nil {
		log.Printf("[catchment] cache write failed: %v", err)
	}
}

// Invalidate removes every memoized resolution. Run after a bulk catchment
// reload so stale memberships cannot outlive their polygons.
func (c *ResolutionCache) Invalidate(ctx context.Context) (int, error) {
	if c == nil {
		return 0, nil
	}
	var deleted int
	iter := c.rdb.Scan(ctx, 0, "catchment:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, iter.Err()
}
