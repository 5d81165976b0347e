package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/club-overlay/pkg/logger"
)

// versionTTL outlives any count entry so a lapsed version counter can never
// resurrect an old count key.
const versionTTL = 24 * time.Hour

// CountCache keeps per-user unacknowledged counts in Redis.
//
// Count keys embed two counters: a catalog generation bumped by catalog
// writes and a per-user version bumped by acknowledgments. A fill computed
// before a write lands under the old key and is never read again.
// A nil *CountCache is valid and caches nothing.
type CountCache struct {
	rdb *redis.Client
	ttl time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCountCache returns nil when rdb is nil or ttl is not positive.
func NewCountCache(rdb *redis.Client, ttl time.Duration) *CountCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &CountCache{rdb: rdb, ttl: ttl}
}

// Stamp identifies the cache slot a count belongs to.
type Stamp struct {
	Generation int64
	Version    int64
}

func genKey(kind string) string { return "overlay:gen:" + kind }

func versionKey(kind, userID string) string { return fmt.Sprintf("overlay:ver:%s:%s", kind, userID) }

func countKey(kind, userID string, s Stamp) string {
	return fmt.Sprintf("overlay:count:%s:g%d:v%d:%s", kind, s.Generation, s.Version, userID)
}

// Stamp reads the current generation and version in one round trip.
func (c *CountCache) Stamp(ctx context.Context, kind, userID string) (Stamp, error) {
	if c == nil {
		return Stamp{}, errors.New("count cache disabled")
	}
	vals, err := c.rdb.MGet(ctx, genKey(kind), versionKey(kind, userID)).Result()
	if err != nil {
		return Stamp{}, err
	}
	return Stamp{Generation: parseCounter(vals[0]), Version: parseCounter(vals[1])}, nil
}

// Get returns the cached count for the slot, if present.
func (c *CountCache) Get(ctx context.Context, kind, userID string, s Stamp) (int64, bool) {
	if c == nil {
		return 0, false
	}
	n, err := c.rdb.Get(ctx, countKey(kind, userID, s)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("count cache get failed", zap.String("kind", kind), zap.Error(err))
		}
		c.misses.Add(1)
		return 0, false
	}
	c.hits.Add(1)
	return n, true
}

func (c *CountCache) Set(ctx context.Context, kind, userID string, s Stamp, n int64) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, countKey(kind, userID, s), n, c.ttl).Err(); err != nil {
		logger.Warn("count cache set failed", zap.String("kind", kind), zap.Error(err))
	}
}

// Invalidate moves userID to a fresh slot after an acknowledgment.
func (c *CountCache) Invalidate(ctx context.Context, kind, userID string) {
	if c == nil {
		return
	}
	key := versionKey(kind, userID)
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, versionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("count cache invalidate failed", zap.String("kind", kind), zap.String("user", userID), zap.Error(err))
	}
}

// BumpGeneration orphans every cached count of kind after a catalog change.
func (c *CountCache) BumpGeneration(ctx context.Context, kind string) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, genKey(kind)).Err(); err != nil {
		logger.Warn("count cache generation bump failed", zap.String("kind", kind), zap.Error(err))
	}
}

// Counters reports cache hits and misses since start.
func (c *CountCache) Counters() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

func parseCounter(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
