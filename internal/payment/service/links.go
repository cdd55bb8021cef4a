package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/payment/domain"
	"github.com/fitsuite/licensehub/internal/payment/repository"
	plandomain "github.com/fitsuite/licensehub/internal/plan/domain"
	"github.com/fitsuite/licensehub/internal/ratelimit"
	referralservice "github.com/fitsuite/licensehub/internal/referral/service"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxLinkDiscount = 20

type LinkRequest struct {
	TenantID     string
	PlanID       string
	ReferralCode string
}

// Link is a checkout link priced with the tenant's referral discount.
type Link struct {
	PreferenceID        string `json:"preference_id"`
	InitPoint           string `json:"init_point"`
	SandboxInitPoint    string `json:"sandbox_init_point"`
	PlanID              string `json:"plan_id"`
	PriceCents          int64  `json:"price_cents"`
	FinalPriceCents     int64  `json:"final_price_cents"`
	DiscountPercent     int    `json:"descuento_pct"`
	DiscountAmountCents int64  `json:"descuento_monto"`
}

type LinkParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Clock     clock.Clock
	Provider  domain.Provider
	Plans     plandomain.Reader
	Referrals *referralservice.Service
	Prefs     repository.Repository
	Guard     *ratelimit.Guard `optional:"true"`
}

type LinkService struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.Config
	clock     clock.Clock
	provider  domain.Provider
	plans     plandomain.Reader
	referrals *referralservice.Service
	prefs     repository.Repository
	guard     *ratelimit.Guard
}

func NewLinkService(p LinkParams) *LinkService {
	return &LinkService{
		db:        p.DB,
		log:       p.Log.Named("payment.links"),
		cfg:       p.Cfg,
		clock:     p.Clock,
		provider:  p.Provider,
		plans:     p.Plans,
		referrals: p.Referrals,
		prefs:     p.Prefs,
		guard:     p.Guard,
	}
}

func (s *LinkService) Create(ctx context.Context, req LinkRequest) (Link, error) {
	ref := domain.Reference{
		TenantID:     strings.TrimSpace(req.TenantID),
		PlanID:       strings.TrimSpace(req.PlanID),
		ReferralCode: strings.TrimSpace(req.ReferralCode),
	}
	if ref.TenantID == "" || ref.PlanID == "" {
		return Link{}, domain.ErrMissingParameters
	}
	if strings.ContainsAny(ref.ReferralCode, "|:") {
		return Link{}, domain.ErrBadReference
	}
	if _, err := domain.ParseReference(ref.Encode()); err != nil {
		return Link{}, err
	}

	limit, err := s.guard.AllowLink(ctx, ref.TenantID)
	if err != nil {
		return Link{}, err
	}
	if !limit.Allowed {
		return Link{}, domain.ErrRateLimited
	}

	plan, err := s.plans.Get(ctx, ref.PlanID)
	if err != nil {
		return Link{}, err
	}

	pct, err := s.referrals.DiscountPercent(ctx, ref.TenantID)
	if err != nil {
		return Link{}, err
	}
	pct = min(max(pct, 0), maxLinkDiscount)
	ref.DiscountPercent = &pct

	finalCents := discountedCents(plan.PriceCents, pct)
	discountCents := plan.PriceCents - finalCents

	base := s.cfg.PublicURL
	prefReq := domain.PreferenceRequest{
		Title:               "Plan " + plan.Name,
		Description:         fmt.Sprintf("Licencia %s por %d días", plan.Name, plan.DurationDays),
		UnitPriceCents:      finalCents,
		Quantity:            1,
		CurrencyID:          s.cfg.MercadoPago.Currency,
		StatementDescriptor: s.cfg.MercadoPago.Descriptor,
		ExternalReference:   ref.Encode(),
		NotificationURL:     base + "/webhook",
		BackURLs: domain.BackURLs{
			Success: base + "/success",
			Failure: base + "/failure",
			Pending: base + "/pending",
		},
		AutoReturn: domain.StatusApproved,
	}
	if pct > 0 {
		prefReq.CouponCode = fmt.Sprintf("REFERIDOS_%d", pct)
		prefReq.CouponAmountCents = discountCents
	}

	pref, err := s.provider.CreatePreference(ctx, prefReq)
	if err != nil {
		return Link{}, err
	}

	now := s.clock.Now()
	if err := s.prefs.SavePending(ctx, s.db, &domain.PreferenceRecord{
		PreferenceID: pref.ID,
		TenantID:     ref.TenantID,
		PlanID:       plan.ID,
		Status:       domain.PreferencePending,
		InitPoint:    pref.InitPoint,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return Link{}, err
	}

	s.log.Info("payment link created",
		zap.String("tenant_id", ref.TenantID),
		zap.String("plan_id", plan.ID),
		zap.String("preference_id", pref.ID),
		zap.Int("discount_pct", pct),
	)

	return Link{
		PreferenceID:        pref.ID,
		InitPoint:           pref.InitPoint,
		SandboxInitPoint:    pref.SandboxInitPoint,
		PlanID:              plan.ID,
		PriceCents:          plan.PriceCents,
		FinalPriceCents:     finalCents,
		DiscountPercent:     pct,
		DiscountAmountCents: discountCents,
	}, nil
}

// discountedCents applies pct to a price and rounds to whole cents.
func discountedCents(priceCents int64, pct int) int64 {
	factor := decimal.NewFromInt(int64(100 - pct)).Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(priceCents).Mul(factor).Round(0).IntPart()
}
