package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &ttlCache[string, int]{items: map[string]entry[int]{}, now: func() time.Time { return now }}

	c.Set("a", 1, time.Minute)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Empty(t, c.items)
}

func TestTTLCacheIgnoresNonPositiveTTL(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestNewPlanCacheWithoutRedisUsesMemory(t *testing.T) {
	pc := NewPlanCache(nil, zap.NewNop())
	_, isMemory := pc.(*memoryPlanCache)
	require.True(t, isMemory)

	ctx := context.Background()
	pc.Set(ctx, " basic ", []byte(`{"precio":10}`), time.Minute)
	raw, ok := pc.Get(ctx, "basic")
	require.True(t, ok)
	assert.JSONEq(t, `{"precio":10}`, string(raw))
}
