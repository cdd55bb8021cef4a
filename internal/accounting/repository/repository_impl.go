package repository

import (
	"context"
	"time"

	"github.com/fitsuite/licensehub/internal/accounting/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

// IncrementDaily seeds a zeroed row that concurrent first writers can race on
// harmlessly, then applies pure increments.
func (r *repo) IncrementDaily(ctx context.Context, db *gorm.DB, tenantID, day, category string, delta domain.Counters, at time.Time) error {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.DailySummary{
		TenantID:  tenantID,
		Day:       day,
		Category:  category,
		UpdatedAt: at,
	}).Error
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Exec(
		`UPDATE daily_revenue_summaries
		 SET count = count + ?,
		     total = total + ?,
		     cash_total = cash_total + ?,
		     online_total = online_total + ?,
		     updated_at = ?
		 WHERE tenant_id = ? AND day = ? AND category = ?`,
		delta.Count, delta.Total, delta.CashTotal, delta.OnlineTotal,
		at,
		tenantID, day, category,
	).Error
}

func (r *repo) IncrementMonthly(ctx context.Context, db *gorm.DB, tenantID, month, category string, delta domain.Counters, at time.Time) error {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.MonthlySummary{
		TenantID:  tenantID,
		Month:     month,
		Category:  category,
		UpdatedAt: at,
	}).Error
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Exec(
		`UPDATE monthly_revenue_summaries
		 SET count = count + ?,
		     total = total + ?,
		     cash_total = cash_total + ?,
		     online_total = online_total + ?,
		     updated_at = ?
		 WHERE tenant_id = ? AND month = ? AND category = ?`,
		delta.Count, delta.Total, delta.CashTotal, delta.OnlineTotal,
		at,
		tenantID, month, category,
	).Error
}

func (r *repo) ListDaily(ctx context.Context, db *gorm.DB, tenantID, day string) ([]domain.DailySummary, error) {
	var rows []domain.DailySummary
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND day = ?", tenantID, day).
		Order("category ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) ListMonthly(ctx context.Context, db *gorm.DB, tenantID, month string) ([]domain.MonthlySummary, error) {
	var rows []domain.MonthlySummary
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND month = ?", tenantID, month).
		Order("category ASC").
		Find(&rows).Error
	return rows, err
}
