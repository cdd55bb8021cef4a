package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountingdomain "github.com/fitsuite/licensehub/internal/accounting/domain"
	accountingrepo "github.com/fitsuite/licensehub/internal/accounting/repository"
	accountingservice "github.com/fitsuite/licensehub/internal/accounting/service"
	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/order/domain"
	"github.com/fitsuite/licensehub/internal/order/repository"
	"github.com/fitsuite/licensehub/internal/tenant"
	"github.com/fitsuite/licensehub/pkg/db"
	"github.com/fitsuite/licensehub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()
	models := append(domain.Models(), accountingdomain.Models()...)
	models = append(models, &tenant.Tenant{})
	conn := dbtest.Open(t, models...)

	node, err := snowflake.NewNode(5)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	runner := db.NewTestTxRunner(conn)
	books := accountingservice.NewService(accountingservice.Params{
		Tx:      runner,
		Log:     zap.NewNop(),
		GenID:   node,
		Tenants: tenant.NewDirectory(zap.NewNop(), config.NewStaticPolicyHolder(config.DefaultPolicy())),
		Repo:    accountingrepo.Provide(),
	})
	svc := NewService(Params{
		Tx:    runner,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, 8, 3, 18, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		Books: books,
	})
	return conn, svc
}

func seed(t *testing.T, conn *gorm.DB, values ...any) {
	t.Helper()
	for _, v := range values {
		if err := conn.Create(v).Error; err != nil {
			t.Fatalf("seed %T: %v", v, err)
		}
	}
}

func pendingOrder(id string, total int64) *domain.Order {
	return &domain.Order{TenantID: "gym-1", ID: id, Status: domain.StatusPending, Total: total, CreatedAt: time.Now().UTC()}
}

func stockOf(t *testing.T, conn *gorm.DB, productID string) int64 {
	t.Helper()
	var p domain.Product
	require.NoError(t, conn.First(&p, "tenant_id = ? AND id = ?", "gym-1", productID).Error)
	return p.Stock
}

func TestSettleAllOrNothing(t *testing.T) {
	conn, svc := setup(t)
	seed(t, conn,
		&domain.Product{TenantID: "gym-1", ID: "A", Stock: 5},
		&domain.Product{TenantID: "gym-1", ID: "B", Stock: 1},
		pendingOrder("o1", 4000),
		&domain.Item{TenantID: "gym-1", OrderID: "o1", ProductID: "A", Quantity: 2, UnitPrice: 1000},
		&domain.Item{TenantID: "gym-1", OrderID: "o1", ProductID: "B", Quantity: 2, UnitPrice: 1000},
	)

	_, err := svc.Settle(context.Background(), domain.SettleRequest{TenantID: "gym-1", OrderID: "o1", PaymentID: "p1"})
	require.True(t, errors.Is(err, domain.ErrInsufficientStock), "got %v", err)

	assert.Equal(t, int64(5), stockOf(t, conn, "A"))
	assert.Equal(t, int64(1), stockOf(t, conn, "B"))

	var o domain.Order
	require.NoError(t, conn.First(&o, "tenant_id = ? AND id = ?", "gym-1", "o1").Error)
	assert.Equal(t, domain.StatusPending, o.Status)

	var txns int64
	require.NoError(t, conn.Model(&accountingdomain.Transaction{}).Count(&txns).Error)
	assert.Zero(t, txns)
}

func TestSettleDecrementsAndBooks(t *testing.T) {
	conn, svc := setup(t)
	seed(t, conn,
		&domain.Product{TenantID: "gym-1", ID: "A", Stock: 5},
		&domain.Product{TenantID: "gym-1", ID: "shirt", HasVariants: true},
		&domain.Variant{ID: "shirt-red-m", TenantID: "gym-1", ProductID: "shirt", Color: "Red", Size: "M", Stock: 3},
		&domain.Variant{ID: "shirt-red-l", TenantID: "gym-1", ProductID: "shirt", Color: "Red", Size: "L", Stock: 3},
		pendingOrder("o1", 7000),
		&domain.Item{TenantID: "gym-1", OrderID: "o1", ProductID: "A", Quantity: 2, UnitPrice: 1000},
		&domain.Item{TenantID: "gym-1", OrderID: "o1", ProductID: "shirt", Quantity: 1, UnitPrice: 1000, Color: "red", Size: " m "},
		&domain.Item{TenantID: "gym-1", OrderID: "o1", ProductID: "shirt", Quantity: 2, UnitPrice: 1000, Color: "RED", Size: "M"},
	)

	res, err := svc.Settle(context.Background(), domain.SettleRequest{TenantID: "gym-1", OrderID: "o1", PaymentID: "p1", Method: "efectivo"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, res.Status)
	assert.False(t, res.AlreadyPaid)

	assert.Equal(t, int64(3), stockOf(t, conn, "A"))
	var v domain.Variant
	require.NoError(t, conn.First(&v, "id = ?", "shirt-red-m").Error)
	assert.Zero(t, v.Stock)
	require.NoError(t, conn.First(&v, "id = ?", "shirt-red-l").Error)
	assert.Equal(t, int64(3), v.Stock)

	var o domain.Order
	require.NoError(t, conn.First(&o, "tenant_id = ? AND id = ?", "gym-1", "o1").Error)
	assert.Equal(t, domain.StatusPaid, o.Status)
	assert.Equal(t, accountingdomain.MediumCash, o.PaymentMedium)
	assert.Equal(t, "p1", o.PaymentID)

	var day accountingdomain.DailySummary
	require.NoError(t, conn.First(&day, "tenant_id = ? AND category = ?", "gym-1", accountingdomain.CategoryStoreSale).Error)
	assert.Equal(t, "2024-08-03", day.Day)
	assert.Equal(t, int64(7000), day.CashTotal)
}

func TestSettleAggregatesQuantitiesPerVariant(t *testing.T) {
	conn, svc := setup(t)
	seed(t, conn,
		&domain.Product{TenantID: "gym-1", ID: "shirt", HasVariants: true},
		&domain.Variant{ID: "v1", TenantID: "gym-1", ProductID: "shirt", Color: "Blue", Size: "S", Stock: 2},
		pendingOrder("o1", 3000),
		&domain.Item{TenantID: "gym-1", OrderID: "o1", ProductID: "shirt", Quantity: 2, Color: "blue", Size: "s"},
		&domain.Item{TenantID: "gym-1", OrderID: "o1", ProductID: "shirt", Quantity: 1, Color: "Blue", Size: "S"},
	)

	_, err := svc.Settle(context.Background(), domain.SettleRequest{TenantID: "gym-1", OrderID: "o1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	var v domain.Variant
	require.NoError(t, conn.First(&v, "id = ?", "v1").Error)
	assert.Equal(t, int64(2), v.Stock)
}

func TestSettleAlreadyPaidIsNoop(t *testing.T) {
	conn, svc := setup(t)
	seed(t, conn,
		&domain.Product{TenantID: "gym-1", ID: "A", Stock: 5},
		pendingOrder("o1", 1000),
		&domain.Item{TenantID: "gym-1", OrderID: "o1", ProductID: "A", Quantity: 1},
	)

	req := domain.SettleRequest{TenantID: "gym-1", OrderID: "o1", PaymentID: "p1"}
	_, err := svc.Settle(context.Background(), req)
	require.NoError(t, err)

	res, err := svc.Settle(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.AlreadyPaid)
	assert.Equal(t, int64(4), stockOf(t, conn, "A"))

	var txns int64
	require.NoError(t, conn.Model(&accountingdomain.Transaction{}).Count(&txns).Error)
	assert.Equal(t, int64(1), txns)
}

func TestSettleLookupErrors(t *testing.T) {
	conn, svc := setup(t)
	seed(t, conn,
		&domain.Product{TenantID: "gym-1", ID: "shirt", HasVariants: true},
		pendingOrder("missing-product", 0),
		&domain.Item{TenantID: "gym-1", OrderID: "missing-product", ProductID: "ghost", Quantity: 1},
		pendingOrder("missing-variant", 0),
		&domain.Item{TenantID: "gym-1", OrderID: "missing-variant", ProductID: "shirt", Quantity: 1, Color: "green", Size: "xl"},
	)
	ctx := context.Background()

	_, err := svc.Settle(ctx, domain.SettleRequest{TenantID: "gym-1", OrderID: "nope"})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = svc.Settle(ctx, domain.SettleRequest{TenantID: "gym-1", OrderID: "missing-product"})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = svc.Settle(ctx, domain.SettleRequest{TenantID: "gym-1", OrderID: "missing-variant"})
	assert.ErrorIs(t, err, domain.ErrVariantNotFound)

	_, err = svc.Settle(ctx, domain.SettleRequest{TenantID: "", OrderID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
