package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	accountingdomain "github.com/fitsuite/licensehub/internal/accounting/domain"
	"github.com/fitsuite/licensehub/internal/clock"
	obsmetrics "github.com/fitsuite/licensehub/internal/observability/metrics"
	"github.com/fitsuite/licensehub/internal/order/domain"
	"github.com/fitsuite/licensehub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder books the sale in the tenant ledger and daily rollup.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, txn accountingdomain.Transaction) (accountingdomain.Transaction, error)
}

type Params struct {
	fx.In

	Tx      *db.TxRunner
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Books   Recorder
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	tx      *db.TxRunner
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	books   Recorder
	metrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		tx:      p.Tx,
		log:     p.Log.Named("order.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		books:   p.Books,
		metrics: p.Metrics,
	}
}

// Settle runs SettleInTx in its own transaction.
func (s *Service) Settle(ctx context.Context, req domain.SettleRequest) (domain.Result, error) {
	var result domain.Result
	err := s.tx.Run(ctx, "order.settle", func(tx *gorm.DB) error {
		var err error
		result, err = s.SettleInTx(ctx, tx, req)
		return err
	})

	outcome := "settled"
	switch {
	case err != nil:
		outcome = settlementFailure(err)
		s.log.Warn("order settlement failed",
			zap.String("tenant_id", req.TenantID),
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
	case result.AlreadyPaid:
		outcome = "already_paid"
	}
	s.metrics.RecordOrderSettlement(ctx, outcome)

	if err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

// SettleInTx flips a pending order to paid and takes its stock. Either every
// item is taken or none is.
func (s *Service) SettleInTx(ctx context.Context, tx *gorm.DB, req domain.SettleRequest) (domain.Result, error) {
	tenantID := strings.TrimSpace(req.TenantID)
	orderID := strings.TrimSpace(req.OrderID)
	if tenantID == "" || orderID == "" {
		return domain.Result{}, domain.ErrInvalidRequest
	}

	order, err := s.repo.FindOrderForUpdate(ctx, tx, tenantID, orderID)
	if err != nil {
		return domain.Result{}, err
	}
	if order == nil {
		return domain.Result{}, domain.ErrOrderNotFound
	}
	if order.Status == domain.StatusPaid {
		result := domain.Result{
			TenantID:    tenantID,
			OrderID:     orderID,
			Status:      domain.StatusPaid,
			Total:       order.Total,
			AlreadyPaid: true,
		}
		if order.PaidAt != nil {
			result.PaidAt = *order.PaidAt
		}
		return result, nil
	}

	items, err := s.repo.ListItems(ctx, tx, tenantID, orderID)
	if err != nil {
		return domain.Result{}, err
	}

	slots, err := s.resolveSlots(ctx, tx, tenantID, items)
	if err != nil {
		return domain.Result{}, err
	}
	if err := domain.Verify(slots); err != nil {
		return domain.Result{}, err
	}

	for _, key := range domain.SortedKeys(slots) {
		slot := slots[key]
		var ok bool
		if slot.VariantID != "" {
			ok, err = s.repo.DecrementVariantStock(ctx, tx, tenantID, slot.VariantID, slot.Requested)
		} else {
			ok, err = s.repo.DecrementProductStock(ctx, tx, tenantID, slot.ProductID, slot.Requested)
		}
		if err != nil {
			return domain.Result{}, err
		}
		if !ok {
			return domain.Result{}, fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, slot.ProductID)
		}
	}

	now := s.clock.Now()
	medium := req.Medium
	if medium == "" {
		medium = accountingdomain.NormalizeMedium(req.Method)
	}
	order.PaymentID = strings.TrimSpace(req.PaymentID)
	order.PaymentMedium = accountingdomain.NormalizeMedium(medium)
	order.PaymentMethod = strings.TrimSpace(req.Method)
	order.PaidAt = &now

	flipped, err := s.repo.MarkPaid(ctx, tx, order)
	if err != nil {
		return domain.Result{}, err
	}
	if !flipped {
		return domain.Result{}, fmt.Errorf("order %s changed during settlement", orderID)
	}

	_, err = s.books.Record(ctx, tx, accountingdomain.Transaction{
		TenantID:  tenantID,
		Kind:      accountingdomain.KindStore,
		Category:  accountingdomain.CategoryStoreSale,
		PaymentID: order.PaymentID,
		Amount:    order.Total,
		Medium:    order.PaymentMedium,
		Method:    order.PaymentMethod,
		Detail:    "order " + orderID,
		CreatedAt: now,
	})
	if err != nil {
		return domain.Result{}, err
	}

	return domain.Result{
		TenantID: tenantID,
		OrderID:  orderID,
		Status:   domain.StatusPaid,
		Total:    order.Total,
		PaidAt:   now,
	}, nil
}

// resolveSlots sums requested quantities per stock counter so two lines for
// the same variant are checked against its stock together.
func (s *Service) resolveSlots(ctx context.Context, tx *gorm.DB, tenantID string, items []domain.Item) (map[string]*domain.Slot, error) {
	slots := map[string]*domain.Slot{}
	products := map[string]*domain.Product{}
	variants := map[string][]domain.Variant{}

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", domain.ErrInvalidQuantity, item.ProductID)
		}

		product, seen := products[item.ProductID]
		if !seen {
			p, err := s.repo.FindProduct(ctx, tx, tenantID, item.ProductID)
			if err != nil {
				return nil, err
			}
			products[item.ProductID] = p
			product = p
		}
		if product == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
		}

		slot := domain.Slot{ProductID: product.ID, Available: product.Stock}
		if product.HasVariants {
			list, loaded := variants[product.ID]
			if !loaded {
				v, err := s.repo.ListVariants(ctx, tx, tenantID, product.ID)
				if err != nil {
					return nil, err
				}
				variants[product.ID] = v
				list = v
			}
			variant, ok := domain.MatchVariant(list, item.Color, item.Size)
			if !ok {
				return nil, fmt.Errorf("%w: product %s color %q size %q", domain.ErrVariantNotFound, product.ID, item.Color, item.Size)
			}
			slot.VariantID = variant.ID
			slot.Available = variant.Stock
		}

		if existing, ok := slots[slot.Key()]; ok {
			existing.Requested += item.Quantity
			continue
		}
		slot.Requested = item.Quantity
		slots[slot.Key()] = &slot
	}
	return slots, nil
}

func settlementFailure(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrVariantNotFound):
		return "variant_not_found"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "order_not_found"
	default:
		return "error"
	}
}
