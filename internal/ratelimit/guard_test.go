package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/fitsuite/licensehub/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGuardWithoutRedisAllowsEverything(t *testing.T) {
	g := NewGuard(nil, config.Config{}, zap.NewNop())
	assert.False(t, g.Enabled())

	release, ok := g.LockPayment(context.Background(), "123")
	assert.True(t, ok)
	release()

	res, err := g.AllowLink(context.Background(), "gym-1")
	assert.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNilLockerAndBucket(t *testing.T) {
	var l *Locker
	_, _, err := l.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))

	var b *TokenBucket
	_, err = b.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
}

func TestNewResultRetryAfter(t *testing.T) {
	res := newResult(false, 0.5, 0.5, 5)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)
	assert.Equal(t, 5, res.Limit)

	res = newResult(true, 3.2, 1, 5)
	assert.Equal(t, 3, res.Remaining)
	assert.Zero(t, res.RetryAfter)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(0.5, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}
