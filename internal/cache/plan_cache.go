package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const planKeyPrefix = "licensehub:plan:"

// PlanCache holds raw plan attributes keyed by plan id.
type PlanCache interface {
	Get(ctx context.Context, planID string) ([]byte, bool)
	Set(ctx context.Context, planID string, raw []byte, ttl time.Duration)
}

// NewPlanCache picks redis when a client is available.
func NewPlanCache(client *redis.Client, log *zap.Logger) PlanCache {
	if client == nil {
		return NewMemoryPlanCache()
	}
	return &redisPlanCache{client: client, log: log.Named("cache.plan")}
}

type redisPlanCache struct {
	client *redis.Client
	log    *zap.Logger
}

func (c *redisPlanCache) Get(ctx context.Context, planID string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, cacheKey(planKeyPrefix, planID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("plan cache read failed", zap.String("plan_id", planID), zap.Error(err))
		}
		return nil, false
	}
	return raw, true
}

func (c *redisPlanCache) Set(ctx context.Context, planID string, raw []byte, ttl time.Duration) {
	if ttl <= 0 || len(raw) == 0 {
		return
	}
	if err := c.client.Set(ctx, cacheKey(planKeyPrefix, planID), raw, ttl).Err(); err != nil {
		c.log.Warn("plan cache write failed", zap.String("plan_id", planID), zap.Error(err))
	}
}

type memoryPlanCache struct {
	items Cache[string, []byte]
}

func NewMemoryPlanCache() PlanCache {
	return &memoryPlanCache{items: NewTTLCache[string, []byte]()}
}

func (c *memoryPlanCache) Get(_ context.Context, planID string) ([]byte, bool) {
	return c.items.Get(cacheKey(planKeyPrefix, planID))
}

func (c *memoryPlanCache) Set(_ context.Context, planID string, raw []byte, ttl time.Duration) {
	if len(raw) == 0 {
		return
	}
	c.items.Set(cacheKey(planKeyPrefix, planID), raw, ttl)
}

func cacheKey(prefix string, parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return prefix + strings.Join(values, "|")
}
