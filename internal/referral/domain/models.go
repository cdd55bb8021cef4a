package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInsufficientBalance = errors.New("insufficient_referral_balance")
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrSelfReferral        = errors.New("self_referral")
	ErrInvalidCost         = errors.New("invalid_cost")
	ErrInvalidCode         = errors.New("invalid_referral_code")
)

const (
	ClaimPending  = "pending"
	ClaimConsumed = "consumed"
)

const (
	MinDiscountTier = 0
	MaxDiscountTier = 20
)

// Config is the referrer-side balance, one per tenant.
type Config struct {
	TenantID          string    `gorm:"primaryKey;type:varchar(128)" json:"tenant_id"`
	DiscountTier      int       `gorm:"not null;default:0" json:"discount_tier"`
	PointsAvailable   int64     `gorm:"not null;default:0" json:"points_available"`
	TotalPointsEarned int64     `gorm:"not null;default:0" json:"total_points_earned"`
	TotalReferrals    int64     `gorm:"not null;default:0" json:"total_referrals"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

func (Config) TableName() string { return "referral_configs" }

// Claim is written once per buyer at signup and consumed by the first
// approved payment.
type Claim struct {
	BuyerTenantID    string     `gorm:"primaryKey;type:varchar(128)" json:"buyer_tenant_id"`
	ReferrerTenantID string     `gorm:"type:varchar(128);not null;index" json:"referrer_tenant_id"`
	UsedCode         string     `gorm:"type:varchar(64)" json:"used_code"`
	Status           string     `gorm:"type:varchar(16);not null" json:"status"`
	PaymentID        string     `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	ConsumedAt       *time.Time `json:"consumed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
}

func (Claim) TableName() string { return "referral_claims" }

// HistoryEntry guards credit issuance per (referrer, payment).
type HistoryEntry struct {
	ReferrerTenantID string    `gorm:"primaryKey;type:varchar(128)"`
	PaymentID        string    `gorm:"primaryKey;type:varchar(64)"`
	BuyerTenantID    string    `gorm:"type:varchar(128);not null"`
	PlanID           string    `gorm:"type:varchar(128)"`
	TierAfter        int       `gorm:"not null"`
	PointsAwarded    int64     `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
}

func (HistoryEntry) TableName() string { return "referral_history" }

// Approval is the buyer-side record read by the post-commit notifier.
type Approval struct {
	BuyerTenantID    string    `gorm:"primaryKey;type:varchar(128)"`
	ReferrerTenantID string    `gorm:"type:varchar(128);not null"`
	UsedCode         string    `gorm:"type:varchar(64)"`
	PaymentID        string    `gorm:"type:varchar(64);not null"`
	PlanID           string    `gorm:"type:varchar(128)"`
	ApprovedAt       time.Time `gorm:"not null"`
}

func (Approval) TableName() string { return "referral_approvals" }

type Redemption struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  string       `gorm:"type:varchar(128);not null;index" json:"tenant_id"`
	Cost      int64        `gorm:"not null" json:"cost"`
	Reason    string       `gorm:"type:varchar(255)" json:"reason"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Redemption) TableName() string { return "referral_redemptions" }

// Credit is what ApplyCredit staged. Replayed is set when the history entry
// already existed and no balance changed.
type Credit struct {
	ReferrerTenantID string `json:"referrerTenantId"`
	BuyerTenantID    string `json:"buyerTenantId"`
	UsedCode         string `json:"usedCode"`
	PaymentID        string `json:"paymentId"`
	PlanID           string `json:"planId"`
	Replayed         bool   `json:"replayed"`
	DiscountTier     int    `json:"discountTier"`
	TotalReferrals   int64  `json:"totalReferrals"`
	PointsAwarded    int64  `json:"pointsAwarded"`
}

// CreditPolicy is how much one confirmed referral is worth.
type CreditPolicy struct {
	TierStep int
	TierCap  int
	Points   int64
}

func Models() []any {
	return []any{&Config{}, &Claim{}, &HistoryEntry{}, &Approval{}, &Redemption{}}
}

type Repository interface {
	FindClaimForUpdate(ctx context.Context, db *gorm.DB, buyerTenantID string) (*Claim, error)
	InsertClaim(ctx context.Context, db *gorm.DB, claim *Claim) (bool, error)
	ConsumeClaim(ctx context.Context, db *gorm.DB, buyerTenantID, paymentID string, at time.Time) error
	HistoryExists(ctx context.Context, db *gorm.DB, referrerTenantID, paymentID string) (bool, error)
	InsertHistory(ctx context.Context, db *gorm.DB, entry *HistoryEntry) error
	SaveApproval(ctx context.Context, db *gorm.DB, approval *Approval) error
	EnsureConfig(ctx context.Context, db *gorm.DB, tenantID string, at time.Time) error
	ApplyCredit(ctx context.Context, db *gorm.DB, tenantID string, policy CreditPolicy, at time.Time) error
	FindConfig(ctx context.Context, db *gorm.DB, tenantID string) (*Config, error)
	DebitPoints(ctx context.Context, db *gorm.DB, tenantID string, cost int64, at time.Time) (bool, error)
	InsertRedemption(ctx context.Context, db *gorm.DB, redemption *Redemption) error
}
