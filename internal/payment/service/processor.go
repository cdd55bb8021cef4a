package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountingdomain "github.com/fitsuite/licensehub/internal/accounting/domain"
	accountingservice "github.com/fitsuite/licensehub/internal/accounting/service"
	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/internal/idempotency"
	licensedomain "github.com/fitsuite/licensehub/internal/license/domain"
	licenseservice "github.com/fitsuite/licensehub/internal/license/service"
	"github.com/fitsuite/licensehub/internal/notification"
	obsmetrics "github.com/fitsuite/licensehub/internal/observability/metrics"
	orderdomain "github.com/fitsuite/licensehub/internal/order/domain"
	orderservice "github.com/fitsuite/licensehub/internal/order/service"
	"github.com/fitsuite/licensehub/internal/payment/domain"
	"github.com/fitsuite/licensehub/internal/payment/repository"
	plandomain "github.com/fitsuite/licensehub/internal/plan/domain"
	"github.com/fitsuite/licensehub/internal/ratelimit"
	referraldomain "github.com/fitsuite/licensehub/internal/referral/domain"
	referralservice "github.com/fitsuite/licensehub/internal/referral/service"
	"github.com/fitsuite/licensehub/internal/tenant"
	"github.com/fitsuite/licensehub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProcessorParams struct {
	fx.In

	Tx        *db.TxRunner
	Log       *zap.Logger
	Clock     clock.Clock
	Provider  domain.Provider
	Plans     plandomain.Reader
	Licenses  *licenseservice.Service
	Referrals *referralservice.Service
	Books     *accountingservice.Service
	Orders    *orderservice.Service
	Ledger    *idempotency.Ledger
	Prefs     repository.Repository
	Tenants   *tenant.Directory
	Publisher notification.Publisher
	Guard     *ratelimit.Guard    `optional:"true"`
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

// Processor reconciles one provider payment into license, referral, order and
// accounting state exactly once.
type Processor struct {
	tx        *db.TxRunner
	log       *zap.Logger
	clock     clock.Clock
	provider  domain.Provider
	plans     plandomain.Reader
	licenses  *licenseservice.Service
	referrals *referralservice.Service
	books     *accountingservice.Service
	orders    *orderservice.Service
	ledger    *idempotency.Ledger
	prefs     repository.Repository
	tenants   *tenant.Directory
	publisher notification.Publisher
	guard     *ratelimit.Guard
	metrics   *obsmetrics.Metrics
}

func NewProcessor(p ProcessorParams) *Processor {
	return &Processor{
		tx:        p.Tx,
		log:       p.Log.Named("payment.processor"),
		clock:     p.Clock,
		provider:  p.Provider,
		plans:     p.Plans,
		licenses:  p.Licenses,
		referrals: p.Referrals,
		books:     p.Books,
		orders:    p.Orders,
		ledger:    p.Ledger,
		prefs:     p.Prefs,
		tenants:   p.Tenants,
		publisher: p.Publisher,
		guard:     p.Guard,
		metrics:   p.Metrics,
	}
}

// Process is safe to call any number of times for the same payment id.
// Expected conditions come back as an Outcome; anything else is an error and
// nothing was committed.
func (p *Processor) Process(ctx context.Context, paymentID string) (domain.Outcome, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.Outcome{}, domain.ErrInvalidPaymentID
	}

	release, ok := p.guard.LockPayment(ctx, paymentID)
	if !ok {
		p.log.Info("payment already being processed", zap.String("payment_id", paymentID))
		return domain.Outcome{Status: domain.OutcomeInProgress, PaymentID: paymentID}, nil
	}
	defer release()

	payment, err := p.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !payment.Approved() {
		return p.finish(ctx, domain.Outcome{
			Status:    domain.OutcomeNotApproved,
			PaymentID: paymentID,
			Reason:    payment.Status,
		}), nil
	}

	ref, err := domain.ParseReference(payment.ExternalReference)
	if err != nil {
		p.log.Warn("unparseable external reference",
			zap.String("payment_id", paymentID),
			zap.String("external_reference", payment.ExternalReference),
			zap.Error(err),
		)
		return p.finish(ctx, domain.Outcome{
			Status:    domain.OutcomeBadReference,
			PaymentID: paymentID,
			Reason:    err.Error(),
		}), nil
	}

	if ref.Kind() == domain.KindOrder {
		return p.processOrder(ctx, payment, ref)
	}
	return p.processLicense(ctx, payment, ref)
}

func (p *Processor) processLicense(ctx context.Context, payment domain.ProviderPayment, ref domain.Reference) (domain.Outcome, error) {
	plan, err := p.plans.Get(ctx, ref.PlanID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("resolve plan %q: %w", ref.PlanID, err)
	}
	preferenceID := p.preferenceID(ctx, payment)

	out := domain.Outcome{
		Status:    domain.OutcomeApplied,
		Kind:      domain.KindLicense,
		PaymentID: payment.ID,
		TenantID:  ref.TenantID,
	}
	var (
		event  licensedomain.Event
		credit *referraldomain.Credit
		now    time.Time
	)

	err = p.tx.Run(ctx, "payment.license", func(tx *gorm.DB) error {
		out.Status = domain.OutcomeApplied
		credit = nil

		done, err := p.ledger.TryClaim(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if done {
			out.Status = domain.OutcomeAlreadyProcessed
			return nil
		}

		event, err = p.licenses.ApplyPayment(ctx, tx, ref.TenantID, plan, licensedomain.Payment{
			ID:          payment.ID,
			AmountCents: payment.AmountCents,
			Method:      payment.PaymentMethodID,
		})
		if err != nil {
			return err
		}
		now = event.StartDate

		if _, err := p.books.Record(ctx, tx, accountingdomain.Transaction{
			TenantID:        ref.TenantID,
			Kind:            accountingdomain.KindLicense,
			Category:        licenseCategory(event.Type),
			PaymentID:       payment.ID,
			Amount:          payment.AmountCents,
			Medium:          accountingdomain.MediumOnline,
			Method:          payment.PaymentMethodID,
			DiscountPercent: event.DiscountPercent,
			Detail:          plan.Name,
			CreatedAt:       now,
		}); err != nil {
			return err
		}

		credit, err = p.referrals.ApplyCredit(ctx, tx, ref.TenantID, payment.ID, plan.ID)
		if err != nil {
			return err
		}

		if preferenceID != "" {
			if err := p.prefs.MarkApproved(ctx, tx, ref.TenantID, preferenceID, payment.ID, now); err != nil {
				return err
			}
		}

		return p.ledger.Mark(ctx, tx, payment.ID, ref.TenantID, idempotency.KindLicense)
	})
	if errors.Is(err, idempotency.ErrAlreadyProcessed) {
		out.Status = domain.OutcomeAlreadyProcessed
		err = nil
	}
	if err != nil {
		p.metrics.RecordPaymentOutcome(ctx, domain.KindLicense, "error")
		return domain.Outcome{}, err
	}
	if out.Status != domain.OutcomeApplied {
		return p.finish(ctx, out), nil
	}

	out.EventType = event.Type
	p.log.Info("license payment applied",
		zap.String("payment_id", payment.ID),
		zap.String("tenant_id", ref.TenantID),
		zap.String("plan_id", plan.ID),
		zap.String("event_type", event.Type),
		zap.Int64("revision", event.Revision),
	)
	p.metrics.RecordLicenseTransition(ctx, event.Type, event.Tier)
	p.metrics.RecordRevenue(ctx, licenseCategory(event.Type), accountingdomain.MediumOnline, payment.AmountCents)
	if credit != nil {
		outcome := "credited"
		if credit.Replayed {
			outcome = "replayed"
		}
		p.metrics.RecordReferralCredit(ctx, outcome)
	}

	p.publisher.Publish(ctx, p.licenseEvents(ctx, event, credit)...)
	return p.finish(ctx, out), nil
}

func (p *Processor) processOrder(ctx context.Context, payment domain.ProviderPayment, ref domain.Reference) (domain.Outcome, error) {
	out := domain.Outcome{
		Status:    domain.OutcomeApplied,
		Kind:      domain.KindOrder,
		PaymentID: payment.ID,
		TenantID:  ref.TenantID,
	}
	var result orderdomain.Result

	err := p.tx.Run(ctx, "payment.order", func(tx *gorm.DB) error {
		out.Status = domain.OutcomeApplied
		out.Reason = ""

		done, err := p.ledger.TryClaim(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if done {
			out.Status = domain.OutcomeAlreadyProcessed
			return nil
		}

		result, err = p.orders.SettleInTx(ctx, tx, orderdomain.SettleRequest{
			TenantID:  ref.TenantID,
			OrderID:   ref.OrderID,
			PaymentID: payment.ID,
			Medium:    accountingdomain.MediumOnline,
			Method:    payment.PaymentMethodID,
		})
		if err != nil {
			return err
		}
		if result.AlreadyPaid {
			out.Status = domain.OutcomeAlreadyProcessed
			out.Reason = "order_already_paid"
		}

		return p.ledger.Mark(ctx, tx, payment.ID, ref.TenantID, idempotency.KindOrder)
	})
	if errors.Is(err, idempotency.ErrAlreadyProcessed) {
		out.Status = domain.OutcomeAlreadyProcessed
		err = nil
	}
	if err != nil {
		p.metrics.RecordPaymentOutcome(ctx, domain.KindOrder, "error")
		return domain.Outcome{}, err
	}
	if out.Status != domain.OutcomeApplied {
		return p.finish(ctx, out), nil
	}

	p.log.Info("order payment applied",
		zap.String("payment_id", payment.ID),
		zap.String("tenant_id", ref.TenantID),
		zap.String("order_id", ref.OrderID),
		zap.Int64("total", result.Total),
	)
	p.metrics.RecordOrderSettlement(ctx, "settled")
	p.metrics.RecordRevenue(ctx, accountingdomain.CategoryStoreSale, accountingdomain.MediumOnline, result.Total)

	p.publisher.Publish(ctx, notification.Event{
		ID:        notification.OrderEventID(payment.ID),
		Type:      notification.TypeOrderPaid,
		Source:    notification.SourceStore,
		TenantID:  ref.TenantID,
		PaymentID: payment.ID,
		Title:     "Pedido pagado: " + ref.OrderID,
		Body:      fmt.Sprintf("El pedido %s fue pagado y el stock descontado.", ref.OrderID),
		Details: map[string]any{
			"orderId": ref.OrderID,
			"total":   result.Total,
		},
		OccurredAt: result.PaidAt,
	})
	return p.finish(ctx, out), nil
}

// preferenceID resolves the checkout link behind a payment. It is best-effort
// and runs before the transaction so the closure does no remote I/O.
func (p *Processor) preferenceID(ctx context.Context, payment domain.ProviderPayment) string {
	if payment.MerchantOrderID == "" {
		return ""
	}
	order, err := p.provider.GetMerchantOrder(ctx, payment.MerchantOrderID)
	if err != nil {
		p.log.Warn("merchant order lookup failed",
			zap.String("payment_id", payment.ID),
			zap.String("merchant_order_id", payment.MerchantOrderID),
			zap.Error(err),
		)
		return ""
	}
	return order.PreferenceID
}

func (p *Processor) licenseEvents(ctx context.Context, ev licensedomain.Event, credit *referraldomain.Credit) []notification.Event {
	loc, err := p.tenants.Location(ctx, p.tx.DB(), ev.TenantID)
	if err != nil {
		loc = time.UTC
	}
	eventType := notification.LicenseEventType(ev.Type)

	events := []notification.Event{{
		ID:        notification.LicenseEventID(ev.PaymentID),
		Type:      eventType,
		Source:    notification.SourceLicense,
		TenantID:  ev.TenantID,
		PaymentID: ev.PaymentID,
		Title:     notification.LicenseTitle(eventType, ev.PlanName),
		Body:      notification.LicenseBody(ev.PlanName, ev.StartDate, ev.ExpiryDate, ev.DiscountPercent, loc),
		Details: map[string]any{
			"eventType":       ev.Type,
			"planId":          ev.PlanID,
			"planName":        ev.PlanName,
			"licenseId":       ev.LicenseID,
			"revision":        ev.Revision,
			"startDate":       ev.StartDate,
			"expiryDate":      ev.ExpiryDate,
			"discountPercent": ev.DiscountPercent,
		},
		OccurredAt: ev.StartDate,
	}}

	if credit != nil && !credit.Replayed {
		events = append(events, notification.Event{
			ID:        notification.ReferralEventID(ev.PaymentID),
			Type:      notification.TypeReferralCredit,
			Source:    notification.SourceReferral,
			TenantID:  credit.ReferrerTenantID,
			PaymentID: ev.PaymentID,
			Title:     "Nuevo referido confirmado",
			Body:      fmt.Sprintf("Un gimnasio activó su plan con tu código %s. Tu descuento ahora es %d%%.", credit.UsedCode, credit.DiscountTier),
			Details: map[string]any{
				"buyerTenantId":  credit.BuyerTenantID,
				"usedCode":       credit.UsedCode,
				"planId":         credit.PlanID,
				"discountTier":   credit.DiscountTier,
				"totalReferrals": credit.TotalReferrals,
				"pointsAwarded":  credit.PointsAwarded,
			},
			OccurredAt: ev.StartDate,
		})
	}
	return events
}

func (p *Processor) finish(ctx context.Context, out domain.Outcome) domain.Outcome {
	kind := out.Kind
	if kind == "" {
		kind = "unknown"
	}
	p.metrics.RecordPaymentOutcome(ctx, kind, out.Status)
	if out.Status != domain.OutcomeApplied {
		p.log.Info("payment not applied",
			zap.String("payment_id", out.PaymentID),
			zap.String("status", out.Status),
			zap.String("reason", out.Reason),
		)
	}
	return out
}

func licenseCategory(eventType string) string {
	if eventType == licensedomain.EventActivated {
		return accountingdomain.CategoryNewSignup
	}
	return accountingdomain.CategoryRenewal
}
