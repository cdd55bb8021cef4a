package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrProductNotFound   = errors.New("product_not_found")
	ErrVariantNotFound   = errors.New("variant_not_found")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidRequest    = errors.New("invalid_request")
)

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

type Order struct {
	TenantID      string     `gorm:"primaryKey;type:varchar(128)" json:"tenant_id"`
	ID            string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Status        string     `gorm:"type:varchar(16);not null" json:"status"`
	Total         int64      `gorm:"not null" json:"total"`
	PaymentID     string     `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	PaymentMedium string     `gorm:"type:varchar(16)" json:"payment_medium,omitempty"`
	PaymentMethod string     `gorm:"type:varchar(64)" json:"payment_method,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
}

func (Order) TableName() string { return "orders" }

type Item struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TenantID  string `gorm:"type:varchar(128);not null;index:idx_order_items_order"`
	OrderID   string `gorm:"type:varchar(64);not null;index:idx_order_items_order"`
	ProductID string `gorm:"type:varchar(64);not null"`
	Quantity  int64  `gorm:"not null"`
	UnitPrice int64  `gorm:"not null"`
	Color     string `gorm:"type:varchar(64)"`
	Size      string `gorm:"type:varchar(64)"`
}

func (Item) TableName() string { return "order_items" }

type Product struct {
	TenantID    string `gorm:"primaryKey;type:varchar(128)"`
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	Name        string `gorm:"type:varchar(255)"`
	Stock       int64  `gorm:"not null;default:0"`
	HasVariants bool   `gorm:"not null;default:false"`
}

func (Product) TableName() string { return "products" }

type Variant struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	TenantID  string `gorm:"type:varchar(128);not null;index:idx_product_variants_product"`
	ProductID string `gorm:"type:varchar(64);not null;index:idx_product_variants_product"`
	Color     string `gorm:"type:varchar(64)"`
	Size      string `gorm:"type:varchar(64)"`
	Stock     int64  `gorm:"not null;default:0"`
}

func (Variant) TableName() string { return "product_variants" }

type SettleRequest struct {
	TenantID  string
	OrderID   string
	PaymentID string
	// Medium is cash or online; derived from Method when empty.
	Medium string
	Method string
}

type Result struct {
	TenantID    string    `json:"tenantId"`
	OrderID     string    `json:"orderId"`
	Status      string    `json:"status"`
	Total       int64     `json:"total"`
	AlreadyPaid bool      `json:"alreadyPaid"`
	PaidAt      time.Time `json:"paidAt"`
}

func Models() []any {
	return []any{&Order{}, &Item{}, &Product{}, &Variant{}}
}

type Repository interface {
	FindOrderForUpdate(ctx context.Context, db *gorm.DB, tenantID, orderID string) (*Order, error)
	ListItems(ctx context.Context, db *gorm.DB, tenantID, orderID string) ([]Item, error)
	FindProduct(ctx context.Context, db *gorm.DB, tenantID, productID string) (*Product, error)
	ListVariants(ctx context.Context, db *gorm.DB, tenantID, productID string) ([]Variant, error)
	DecrementProductStock(ctx context.Context, db *gorm.DB, tenantID, productID string, qty int64) (bool, error)
	DecrementVariantStock(ctx context.Context, db *gorm.DB, tenantID, variantID string, qty int64) (bool, error)
	MarkPaid(ctx context.Context, db *gorm.DB, order *Order) (bool, error)
}
