package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const component = "Cache"

// Standard expirations.
const (
	TTLShort  = 5 * time.Minute
	TTLMedium = 30 * time.Minute
	TTLLong   = time.Hour
)

const keyPrefix = "lap:"

// KeyGovernanceRanking holds the ranking served by the API. Writers of
// governance records delete it.
const KeyGovernanceRanking = "governance:ranking"

// PatternPriceStatistics matches every cached price statistics response.
// Collection runs clear it.
const PatternPriceStatistics = "prices:stats:*"

// PriceStatisticsKey names the statistics of items matching description over
// a window of months. Descriptions match case-insensitively.
func PriceStatisticsKey(description string, months int) string {
	return fmt.Sprintf("prices:stats:%s:%d", strings.ToLower(strings.TrimSpace(description)), months)
}

// Cache stores JSON encoded values in Redis. A nil *Cache, or one built
// without a client, never hits and never stores. Redis failures are logged
// and degrade to a miss.
type Cache struct {
	rdb     redis.Cmdable
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(rdb redis.Cmdable, log *logger.Logger, m *metrics.Metrics) *Cache {
	return &Cache{rdb: rdb, log: log, metrics: m}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

// Get decodes the value stored under key into dst and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if !c.enabled() {
		return false
	}
	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn(component, "Get failed: key=%s err=%v", key, err)
		}
		c.metrics.IncCacheLookup(false)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn(component, "Decode failed: key=%s err=%v", key, err)
		c.metrics.IncCacheLookup(false)
		return false
	}
	c.metrics.IncCacheLookup(true)
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn(component, "Encode failed: key=%s err=%v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		c.log.Warn(component, "Set failed: key=%s err=%v", key, err)
	}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		c.log.Warn(component, "Delete failed: key=%s err=%v", key, err)
	}
}

// ClearPattern deletes every key matching the glob pattern.
func (c *Cache) ClearPattern(ctx context.Context, pattern string) {
	if !c.enabled() {
		return
	}
	iter := c.rdb.Scan(ctx, 0, keyPrefix+pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn(component, "Scan failed: pattern=%s err=%v", pattern, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn(component, "Clear failed: pattern=%s err=%v", pattern, err)
	}
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. Load errors are returned and never cached.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if c.Get(ctx, key, &v) {
		c.log.Debug(component, "Hit: key=%s", key)
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(ctx, key, v, ttl)
	return v, nil
}
