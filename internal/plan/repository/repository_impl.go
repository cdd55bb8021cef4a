package repository

import (
	"context"
	"errors"

	"github.com/fitsuite/licensehub/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindAttributes(ctx context.Context, db *gorm.DB, planID string) ([]byte, error) {
	var primary domain.CatalogEntry
	err := db.WithContext(ctx).Where("id = ?", planID).Take(&primary).Error
	if err == nil {
		return primary.Attributes, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var legacy domain.LegacyCatalogEntry
	err = db.WithContext(ctx).Where("id = ?", planID).Take(&legacy).Error
	if err == nil {
		return legacy.Attributes, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPlanNotFound
	}
	return nil, err
}
