package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fitsuite/licensehub/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPaymentLock = "licensehub:payment:lock:%s"
	keyLinkBucket  = "licensehub:links:%s"
)

// Guard serializes work on a payment id across instances and throttles
// checkout link creation per tenant. Without Redis every call is allowed.
type Guard struct {
	log     *zap.Logger
	locker  *Locker
	bucket  *TokenBucket
	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewGuard(client *redis.Client, cfg config.Config, log *zap.Logger) *Guard {
	g := &Guard{
		log:     log.Named("ratelimit.guard"),
		locker:  NewLocker(client),
		bucket:  NewTokenBucket(client),
		rate:    cfg.RateLimit.LinkRate,
		burst:   cfg.RateLimit.LinkBurst,
		lockTTL: cfg.RateLimit.PaymentLockTTL,
	}
	if g.lockTTL <= 0 {
		g.lockTTL = 30 * time.Second
	}
	return g
}

func (g *Guard) Enabled() bool {
	return g != nil && g.locker != nil
}

// LockPayment returns a release func when the lock is held. ok is false when
// another worker currently holds the payment. Redis errors fail open.
func (g *Guard) LockPayment(ctx context.Context, paymentID string) (release func(), ok bool) {
	noop := func() {}
	if !g.Enabled() {
		return noop, true
	}

	key := fmt.Sprintf(keyPaymentLock, strings.TrimSpace(paymentID))
	token, acquired, err := g.locker.TryLock(ctx, key, g.lockTTL)
	if err != nil {
		g.log.Warn("payment lock unavailable, continuing without it", zap.String("payment_id", paymentID), zap.Error(err))
		return noop, true
	}
	if !acquired {
		return noop, false
	}
	return func() {
		if err := g.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			g.log.Warn("release payment lock", zap.String("payment_id", paymentID), zap.Error(err))
		}
	}, true
}

// AllowLink spends one token from the tenant's link bucket.
func (g *Guard) AllowLink(ctx context.Context, tenantID string) (Result, error) {
	if g == nil || g.bucket == nil || g.rate <= 0 || g.burst <= 0 {
		return Result{Allowed: true}, nil
	}
	res, err := g.bucket.Allow(ctx, fmt.Sprintf(keyLinkBucket, strings.TrimSpace(tenantID)), g.rate, g.burst)
	if err != nil {
		g.log.Warn("link rate limit unavailable", zap.String("tenant_id", tenantID), zap.Error(err))
		return Result{Allowed: true}, nil
	}
	return res, nil
}
