package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/referral/domain"
	"github.com/fitsuite/licensehub/internal/referral/repository"
	"github.com/fitsuite/licensehub/pkg/db"
	"github.com/fitsuite/licensehub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()
	return setupWithPolicy(t, config.DefaultPolicy())
}

func setupWithPolicy(t *testing.T, policy config.Policy) (*gorm.DB, *Service) {
	t.Helper()
	conn := dbtest.Open(t, domain.Models()...)
	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	svc := NewService(Params{
		Tx:     db.NewTestTxRunner(conn),
		Log:    zap.NewNop(),
		Clock:  clock.NewFakeClock(time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)),
		GenID:  node,
		Policy: config.NewStaticPolicyHolder(policy),
		Repo:   repository.Provide(),
	})
	return conn, svc
}

func seedClaim(t *testing.T, conn *gorm.DB, buyer, referrer string) {
	t.Helper()
	err := conn.Create(&domain.Claim{
		BuyerTenantID:    buyer,
		ReferrerTenantID: referrer,
		UsedCode:         "CODE-" + referrer,
		Status:           domain.ClaimPending,
		CreatedAt:        time.Now().UTC(),
	}).Error
	if err != nil {
		t.Fatalf("seed claim: %v", err)
	}
}

func credit(t *testing.T, conn *gorm.DB, svc *Service, buyer, paymentID string) *domain.Credit {
	t.Helper()
	var out *domain.Credit
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = svc.ApplyCredit(context.Background(), tx, buyer, paymentID, "basic")
		return err
	})
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	return out
}

func TestApplyCreditCreditsReferrerOnce(t *testing.T) {
	conn, svc := setup(t)
	seedClaim(t, conn, "buyer", "referrer")

	c := credit(t, conn, svc, "buyer", "p1")
	require.NotNil(t, c)
	assert.False(t, c.Replayed)
	assert.Equal(t, 4, c.DiscountTier)
	assert.Equal(t, int64(1), c.TotalReferrals)
	assert.Equal(t, int64(100), c.PointsAwarded)

	cfg, err := svc.GetConfig(context.Background(), "referrer")
	require.NoError(t, err)
	assert.Equal(t, int64(100), cfg.PointsAvailable)
	assert.Equal(t, int64(100), cfg.TotalPointsEarned)

	var claim domain.Claim
	require.NoError(t, conn.First(&claim, "buyer_tenant_id = ?", "buyer").Error)
	assert.Equal(t, domain.ClaimConsumed, claim.Status)
	assert.Equal(t, "p1", claim.PaymentID)

	var approval domain.Approval
	require.NoError(t, conn.First(&approval, "buyer_tenant_id = ?", "buyer").Error)
	assert.Equal(t, "referrer", approval.ReferrerTenantID)
	assert.Equal(t, "CODE-referrer", approval.UsedCode)

	// Consumed claims are ignored on redelivery.
	assert.Nil(t, credit(t, conn, svc, "buyer", "p1"))
}

func TestApplyCreditHistoryGuardsReplay(t *testing.T) {
	conn, svc := setup(t)
	seedClaim(t, conn, "buyer", "referrer")

	credit(t, conn, svc, "buyer", "p1")

	// Simulate a unit that bypassed the payment ledger and sees the claim pending again.
	require.NoError(t, conn.Model(&domain.Claim{}).Where("buyer_tenant_id = ?", "buyer").Update("status", domain.ClaimPending).Error)

	c := credit(t, conn, svc, "buyer", "p1")
	require.NotNil(t, c)
	assert.True(t, c.Replayed)

	cfg, err := svc.GetConfig(context.Background(), "referrer")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.TotalReferrals)
	assert.Equal(t, 4, cfg.DiscountTier)

	var claim domain.Claim
	require.NoError(t, conn.First(&claim, "buyer_tenant_id = ?", "buyer").Error)
	assert.Equal(t, domain.ClaimConsumed, claim.Status)
}

func TestApplyCreditRejectsSelfReferral(t *testing.T) {
	conn, svc := setup(t)
	seedClaim(t, conn, "gym-1", "gym-1")

	assert.Nil(t, credit(t, conn, svc, "gym-1", "p1"))

	cfg, err := svc.GetConfig(context.Background(), "gym-1")
	require.NoError(t, err)
	assert.Zero(t, cfg.TotalReferrals)
	assert.Zero(t, cfg.DiscountTier)
}

func TestApplyCreditWithoutClaimIsNoop(t *testing.T) {
	conn, svc := setup(t)
	assert.Nil(t, credit(t, conn, svc, "nobody", "p1"))
}

func TestApplyCreditClampsTier(t *testing.T) {
	conn, svc := setup(t)

	for i := 0; i < 8; i++ {
		buyer := fmt.Sprintf("buyer-%d", i)
		seedClaim(t, conn, buyer, "referrer")
		credit(t, conn, svc, buyer, fmt.Sprintf("p%d", i))
	}

	cfg, err := svc.GetConfig(context.Background(), "referrer")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.DiscountTier)
	assert.Equal(t, int64(8), cfg.TotalReferrals)
	assert.Equal(t, int64(800), cfg.PointsAvailable)

	pct, err := svc.DiscountPercent(context.Background(), "referrer")
	require.NoError(t, err)
	assert.Equal(t, 20, pct)
}

func TestApplyCreditKeepsTierAboveLoweredCap(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.Referral.TierCap = 8
	conn, svc := setupWithPolicy(t, policy)

	require.NoError(t, conn.Create(&domain.Config{
		TenantID:     "referrer",
		DiscountTier: 20,
		UpdatedAt:    time.Now().UTC(),
	}).Error)
	seedClaim(t, conn, "buyer", "referrer")

	c := credit(t, conn, svc, "buyer", "p1")
	require.NotNil(t, c)

	var stored domain.Config
	require.NoError(t, conn.First(&stored, "tenant_id = ?", "referrer").Error)
	assert.Equal(t, 20, stored.DiscountTier)
	assert.Equal(t, int64(1), stored.TotalReferrals)

	// A tier below the lowered cap still stops at the cap.
	require.NoError(t, conn.Model(&domain.Config{}).Where("tenant_id = ?", "referrer").Update("discount_tier", 6).Error)
	seedClaim(t, conn, "buyer-2", "referrer")
	credit(t, conn, svc, "buyer-2", "p2")
	require.NoError(t, conn.First(&stored, "tenant_id = ?", "referrer").Error)
	assert.Equal(t, 8, stored.DiscountTier)
}

func TestRegisterClaim(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	claim, created, err := svc.RegisterClaim(ctx, "buyer", "referrer", "ABC")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.ClaimPending, claim.Status)

	claim, created, err = svc.RegisterClaim(ctx, "buyer", "other", "XYZ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "referrer", claim.ReferrerTenantID)

	_, _, err = svc.RegisterClaim(ctx, "buyer", "buyer", "ABC")
	assert.ErrorIs(t, err, domain.ErrSelfReferral)

	_, _, err = svc.RegisterClaim(ctx, "buyer", "bad|id", "ABC")
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestRedeem(t *testing.T) {
	conn, svc := setup(t)
	seedClaim(t, conn, "buyer", "referrer")
	credit(t, conn, svc, "buyer", "p1")

	ctx := context.Background()
	r, err := svc.Redeem(ctx, "referrer", 60, "free month")
	require.NoError(t, err)
	assert.NotZero(t, r.ID)

	_, err = svc.Redeem(ctx, "referrer", 60, "again")
	assert.True(t, errors.Is(err, domain.ErrInsufficientBalance))

	cfg, err := svc.GetConfig(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, int64(40), cfg.PointsAvailable)

	var count int64
	require.NoError(t, conn.Model(&domain.Redemption{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = svc.Redeem(ctx, "referrer", 0, "")
	assert.ErrorIs(t, err, domain.ErrInvalidCost)
}
