// Package idempotency records which provider payments have already been applied.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/pkg/db"
	"gorm.io/gorm"
)

var (
	ErrAlreadyProcessed = errors.New("already_processed")
	ErrInvalidPaymentID = errors.New("invalid_payment_id")
)

const (
	KindLicense = "license"
	KindOrder   = "order"
)

// ProcessedPayment is write-once; its presence is the only gate against
// applying a payment twice.
type ProcessedPayment struct {
	PaymentID   string    `gorm:"primaryKey;type:varchar(64)"`
	TenantID    string    `gorm:"type:varchar(128);not null;index"`
	Kind        string    `gorm:"type:varchar(16);not null"`
	ProcessedAt time.Time `gorm:"not null"`
}

func (ProcessedPayment) TableName() string { return "processed_payments" }

type Ledger struct {
	clock clock.Clock
}

func NewLedger(clk clock.Clock) *Ledger {
	return &Ledger{clock: clk}
}

// TryClaim must run on the transaction handle that performs the mutation.
func (l *Ledger) TryClaim(ctx context.Context, tx *gorm.DB, paymentID string) (bool, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return false, ErrInvalidPaymentID
	}

	var count int64
	err := tx.WithContext(ctx).
		Model(&ProcessedPayment{}).
		Where("payment_id = ?", paymentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Mark is the last write of the unit. A concurrent delivery that committed
// first surfaces as ErrAlreadyProcessed so the whole unit rolls back.
func (l *Ledger) Mark(ctx context.Context, tx *gorm.DB, paymentID, tenantID, kind string) error {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return ErrInvalidPaymentID
	}

	record := ProcessedPayment{
		PaymentID:   paymentID,
		TenantID:    tenantID,
		Kind:        kind,
		ProcessedAt: l.clock.Now(),
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return ErrAlreadyProcessed
		}
		return err
	}
	return nil
}

// IsProcessed reads outside any transaction; used by replay tooling.
func (l *Ledger) IsProcessed(ctx context.Context, conn *gorm.DB, paymentID string) (bool, error) {
	return l.TryClaim(ctx, conn, paymentID)
}

func Models() []any {
	return []any{&ProcessedPayment{}}
}
