package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fitsuite/licensehub/internal/referral/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindClaimForUpdate(ctx context.Context, db *gorm.DB, buyerTenantID string) (*domain.Claim, error) {
	query := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var claim domain.Claim
	err := query.Where("buyer_tenant_id = ?", buyerTenantID).Take(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repo) InsertClaim(ctx context.Context, db *gorm.DB, claim *domain.Claim) (bool, error) {
	result := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(claim)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ConsumeClaim never moves a consumed claim back.
func (r *repo) ConsumeClaim(ctx context.Context, db *gorm.DB, buyerTenantID, paymentID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE referral_claims
		 SET status = ?, payment_id = ?, consumed_at = ?
		 WHERE buyer_tenant_id = ? AND status = ?`,
		domain.ClaimConsumed,
		paymentID,
		at,
		buyerTenantID,
		domain.ClaimPending,
	).Error
}

func (r *repo) HistoryExists(ctx context.Context, db *gorm.DB, referrerTenantID, paymentID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.HistoryEntry{}).
		Where("referrer_tenant_id = ? AND payment_id = ?", referrerTenantID, paymentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, entry *domain.HistoryEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) SaveApproval(ctx context.Context, db *gorm.DB, approval *domain.Approval) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "buyer_tenant_id"}},
		UpdateAll: true,
	}).Create(approval).Error
}

func (r *repo) EnsureConfig(ctx context.Context, db *gorm.DB, tenantID string, at time.Time) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.Config{
		TenantID:  tenantID,
		UpdatedAt: at,
	}).Error
}

// ApplyCredit is a single increment statement; the tier is capped in SQL so
// concurrent credits never push it past the cap. A tier already above a
// lowered cap is kept as is; a credit never reduces it.
func (r *repo) ApplyCredit(ctx context.Context, db *gorm.DB, tenantID string, policy domain.CreditPolicy, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE referral_configs
		 SET total_referrals = total_referrals + 1,
		     discount_tier = CASE
		         WHEN discount_tier + ? > ? THEN
		             CASE WHEN discount_tier > ? THEN discount_tier ELSE ? END
		         WHEN discount_tier + ? < 0 THEN 0
		         ELSE discount_tier + ?
		     END,
		     points_available = points_available + ?,
		     total_points_earned = total_points_earned + ?,
		     updated_at = ?
		 WHERE tenant_id = ?`,
		policy.TierStep, policy.TierCap,
		policy.TierCap, policy.TierCap,
		policy.TierStep,
		policy.TierStep,
		policy.Points,
		policy.Points,
		at,
		tenantID,
	).Error
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB, tenantID string) (*domain.Config, error) {
	var cfg domain.Config
	err := db.WithContext(ctx).Where("tenant_id = ?", tenantID).Take(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DebitPoints reports false when the balance does not cover cost.
func (r *repo) DebitPoints(ctx context.Context, db *gorm.DB, tenantID string, cost int64, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE referral_configs
		 SET points_available = points_available - ?, updated_at = ?
		 WHERE tenant_id = ? AND points_available >= ?`,
		cost,
		at,
		tenantID,
		cost,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertRedemption(ctx context.Context, db *gorm.DB, redemption *domain.Redemption) error {
	return db.WithContext(ctx).Create(redemption).Error
}
