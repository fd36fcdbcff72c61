package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"possync/internal/dto"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// AnalyticsCache memoizes product analytics in Redis. Keys embed a per-product
// version counter that sale ingestion bumps after commit, so a cached result
// never outlives a new sale of that product. A nil *AnalyticsCache (or nil
// client) disables caching.
type AnalyticsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAnalyticsCache(rdb *redis.Client, ttl time.Duration) *AnalyticsCache {
	return &AnalyticsCache{rdb: rdb, ttl: ttl}
}

func (c *AnalyticsCache) enabled() bool { return c != nil && c.rdb != nil && c.ttl > 0 }

func versionKey(productID uuid.UUID) string { return "analytics:ver:" + productID.String() }

// key returns "" when the version cannot be read; callers skip the cache then.
func (c *AnalyticsCache) key(ctx context.Context, productID uuid.UUID, parts ...string) string {
	ver, err := c.rdb.Get(ctx, versionKey(productID)).Int64()
	if err != nil && err != redis.Nil {
		log.Debug().Err(err).Msg("analytics cache: version read failed")
		return ""
	}
	k := fmt.Sprintf("analytics:%s:v%d", productID, ver)
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Get loads a cached response into dst and reports whether it was found.
func (c *AnalyticsCache) Get(ctx context.Context, productID uuid.UUID, dst *dto.ProductAnalyticsResponse, parts ...string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	k := c.key(ctx, productID, parts...)
	if k == "" {
		return "", false
	}
	raw, err := c.rdb.Get(ctx, k).Bytes()
	if err != nil {
		return k, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return k, false
	}
	return k, true
}

// Set stores resp under k (as returned by Get). Failures are only logged.
func (c *AnalyticsCache) Set(ctx context.Context, k string, resp *dto.ProductAnalyticsResponse) {
	if !c.enabled() || k == "" {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, k, raw, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Msg("analytics cache: set failed")
	}
}

// Invalidate bumps the version of every product so existing entries become
// unreachable and expire on their own.
func (c *AnalyticsCache) Invalidate(ctx context.Context, productIDs []uuid.UUID) {
	if !c.enabled() || len(productIDs) == 0 {
		return
	}
	pipe := c.rdb.Pipeline()
	for _, id := range productIDs {
		pipe.Incr(ctx, versionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("analytics cache: invalidation failed")
	}
}
