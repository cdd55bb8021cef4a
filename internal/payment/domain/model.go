package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrBadReference        = errors.New("bad_reference")
	ErrNotApproved         = errors.New("not_approved")
	ErrProviderUnavailable = errors.New("provider_unavailable")
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrInvalidPaymentID    = errors.New("invalid_payment_id")
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrMissingParameters   = errors.New("missing_parameters")
	ErrRateLimited         = errors.New("rate_limited")
)

const StatusApproved = "approved"

const (
	PreferencePending  = "pending"
	PreferenceApproved = "approved"
)

// ProviderPayment is what the provider reports for a payment id.
type ProviderPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	AmountCents       int64
	Currency          string
	ExternalReference string
	PaymentTypeID     string
	PaymentMethodID   string
	PayerEmail        string
	MerchantOrderID   string
	ApprovedAt        *time.Time
}

func (p ProviderPayment) Approved() bool {
	return p.Status == StatusApproved
}

type MerchantOrderPayment struct {
	ID     string
	Status string
}

type MerchantOrder struct {
	ID           string
	PreferenceID string
	Payments     []MerchantOrderPayment
}

// PaymentForNotification prefers an approved payment, then the first one.
func (o MerchantOrder) PaymentForNotification() (string, bool) {
	for _, p := range o.Payments {
		if p.Status == StatusApproved && p.ID != "" {
			return p.ID, true
		}
	}
	if len(o.Payments) > 0 && o.Payments[0].ID != "" {
		return o.Payments[0].ID, true
	}
	return "", false
}

type BackURLs struct {
	Success string
	Failure string
	Pending string
}

type PreferenceRequest struct {
	Title               string
	Description         string
	UnitPriceCents      int64
	Quantity            int
	CurrencyID          string
	CouponCode          string
	CouponAmountCents   int64
	StatementDescriptor string
	ExternalReference   string
	NotificationURL     string
	BackURLs            BackURLs
	AutoReturn          string
}

type Preference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
}

//go:generate mockgen -destination=../mock/provider_mock.go -package=mock github.com/fitsuite/licensehub/internal/payment/domain Provider

// Provider is the payment provider's narrow contract.
type Provider interface {
	GetPayment(ctx context.Context, paymentID string) (ProviderPayment, error)
	GetMerchantOrder(ctx context.Context, orderID string) (MerchantOrder, error)
	CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error)
}

// PreferenceRecord tracks a checkout link through to approval.
type PreferenceRecord struct {
	PreferenceID string    `gorm:"primaryKey;type:varchar(128)" json:"preference_id"`
	TenantID     string    `gorm:"type:varchar(128);not null;index" json:"tenant_id"`
	PlanID       string    `gorm:"type:varchar(128);not null" json:"plan_id"`
	Status       string    `gorm:"type:varchar(16);not null" json:"status"`
	InitPoint    string    `gorm:"type:text" json:"init_point"`
	PaymentID    string    `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (PreferenceRecord) TableName() string { return "payment_preferences" }

func Models() []any {
	return []any{&PreferenceRecord{}}
}
