package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fitsuite/licensehub/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	SavePending(ctx context.Context, db *gorm.DB, record *domain.PreferenceRecord) error
	MarkApproved(ctx context.Context, db *gorm.DB, tenantID, preferenceID, paymentID string, at time.Time) error
	Find(ctx context.Context, db *gorm.DB, preferenceID string) (*domain.PreferenceRecord, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) SavePending(ctx context.Context, db *gorm.DB, record *domain.PreferenceRecord) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "preference_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"init_point", "updated_at"}),
	}).Create(record).Error
}

// MarkApproved upserts so an approval for a link created elsewhere is still kept.
func (r *repo) MarkApproved(ctx context.Context, db *gorm.DB, tenantID, preferenceID, paymentID string, at time.Time) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "preference_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":     domain.PreferenceApproved,
			"payment_id": paymentID,
			"updated_at": at,
		}),
	}).Create(&domain.PreferenceRecord{
		PreferenceID: preferenceID,
		TenantID:     tenantID,
		Status:       domain.PreferenceApproved,
		PaymentID:    paymentID,
		CreatedAt:    at,
		UpdatedAt:    at,
	}).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, preferenceID string) (*domain.PreferenceRecord, error) {
	var record domain.PreferenceRecord
	err := db.WithContext(ctx).Where("preference_id = ?", preferenceID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
