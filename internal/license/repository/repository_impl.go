package repository

import (
	"context"
	"errors"

	"github.com/fitsuite/licensehub/internal/license/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, tenantID string) (*domain.License, error) {
	query := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var record domain.License
	err := query.Where("tenant_id = ?", tenantID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, record *domain.License) (int64, error) {
	record.Revision = 1
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":      record.Status,
			"plan_id":     record.PlanID,
			"revision":    gorm.Expr("revision + 1"),
			"start_date":  record.StartDate,
			"expiry_date": record.ExpiryDate,
			"grace_hours": record.GraceHours,
			"license_id":  record.LicenseID,
			"modules":     record.Modules,
			"limits":      record.Limits,
			"updated_at":  record.UpdatedAt,
		}),
	}).Create(record).Error
	if err != nil {
		return 0, err
	}

	var revision int64
	err = db.WithContext(ctx).
		Model(&domain.License{}).
		Select("revision").
		Where("tenant_id = ?", record.TenantID).
		Scan(&revision).Error
	if err != nil {
		return 0, err
	}
	record.Revision = revision
	return revision, nil
}

func (r *repo) SaveConfigCache(ctx context.Context, db *gorm.DB, cache *domain.ConfigCache) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		UpdateAll: true,
	}).Create(cache).Error
}

func (r *repo) SaveDeviceCache(ctx context.Context, db *gorm.DB, cache *domain.DeviceCache) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		UpdateAll: true,
	}).Create(cache).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}
