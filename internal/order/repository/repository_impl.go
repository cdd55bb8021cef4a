package repository

import (
	"context"
	"errors"

	"github.com/fitsuite/licensehub/internal/order/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOrderForUpdate(ctx context.Context, db *gorm.DB, tenantID, orderID string) (*domain.Order, error) {
	query := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var order domain.Order
	err := query.Where("tenant_id = ? AND id = ?", tenantID, orderID).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, tenantID, orderID string) ([]domain.Item, error) {
	var items []domain.Item
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) FindProduct(ctx context.Context, db *gorm.DB, tenantID, productID string) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, productID).Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repo) ListVariants(ctx context.Context, db *gorm.DB, tenantID, productID string) ([]domain.Variant, error) {
	var variants []domain.Variant
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("id ASC").
		Find(&variants).Error
	return variants, err
}

func (r *repo) DecrementProductStock(ctx context.Context, db *gorm.DB, tenantID, productID string, qty int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock = stock - ?
		 WHERE tenant_id = ? AND id = ? AND stock >= ?`,
		qty,
		tenantID,
		productID,
		qty,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DecrementVariantStock(ctx context.Context, db *gorm.DB, tenantID, variantID string, qty int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE product_variants
		 SET stock = stock - ?
		 WHERE tenant_id = ? AND id = ? AND stock >= ?`,
		qty,
		tenantID,
		variantID,
		qty,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, order *domain.Order) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, payment_id = ?, payment_medium = ?, payment_method = ?, paid_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = ?`,
		domain.StatusPaid,
		order.PaymentID,
		order.PaymentMedium,
		order.PaymentMethod,
		order.PaidAt,
		order.TenantID,
		order.ID,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
