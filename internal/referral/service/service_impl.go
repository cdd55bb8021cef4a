package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/referral/domain"
	"github.com/fitsuite/licensehub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Tx     *db.TxRunner
	Log    *zap.Logger
	Clock  clock.Clock
	GenID  *snowflake.Node
	Policy *config.PolicyHolder
	Repo   domain.Repository
}

type Service struct {
	tx     *db.TxRunner
	log    *zap.Logger
	clock  clock.Clock
	genID  *snowflake.Node
	policy *config.PolicyHolder
	repo   domain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		tx:     p.Tx,
		log:    p.Log.Named("referral.service"),
		clock:  p.Clock,
		genID:  p.GenID,
		policy: p.Policy,
		repo:   p.Repo,
	}
}

// ApplyCredit consumes the buyer's pending claim and credits the referrer at
// most once per payment. A nil credit means there was nothing to apply.
func (s *Service) ApplyCredit(ctx context.Context, tx *gorm.DB, buyerTenantID, paymentID, planID string) (*domain.Credit, error) {
	claim, err := s.repo.FindClaimForUpdate(ctx, tx, buyerTenantID)
	if err != nil {
		return nil, err
	}
	if claim == nil || claim.Status != domain.ClaimPending {
		return nil, nil
	}

	referrer := claim.ReferrerTenantID
	if !domain.ValidTenantID(referrer) || referrer == buyerTenantID {
		s.log.Warn("ignoring referral claim",
			zap.String("buyer_tenant_id", buyerTenantID),
			zap.String("referrer_tenant_id", referrer),
		)
		return nil, nil
	}

	now := s.clock.Now()
	credit := &domain.Credit{
		ReferrerTenantID: referrer,
		BuyerTenantID:    buyerTenantID,
		UsedCode:         claim.UsedCode,
		PaymentID:        paymentID,
		PlanID:           planID,
	}

	seen, err := s.repo.HistoryExists(ctx, tx, referrer, paymentID)
	if err != nil {
		return nil, err
	}

	if seen {
		credit.Replayed = true
	} else {
		policy := s.creditPolicy()
		if err := s.repo.EnsureConfig(ctx, tx, referrer, now); err != nil {
			return nil, err
		}
		if err := s.repo.ApplyCredit(ctx, tx, referrer, policy, now); err != nil {
			return nil, err
		}
		cfg, err := s.repo.FindConfig(ctx, tx, referrer)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			credit.DiscountTier = cfg.DiscountTier
			credit.TotalReferrals = cfg.TotalReferrals
		}
		credit.PointsAwarded = policy.Points

		if err := s.repo.InsertHistory(ctx, tx, &domain.HistoryEntry{
			ReferrerTenantID: referrer,
			PaymentID:        paymentID,
			BuyerTenantID:    buyerTenantID,
			PlanID:           planID,
			TierAfter:        credit.DiscountTier,
			PointsAwarded:    policy.Points,
			CreatedAt:        now,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.repo.SaveApproval(ctx, tx, &domain.Approval{
		BuyerTenantID:    buyerTenantID,
		ReferrerTenantID: referrer,
		UsedCode:         claim.UsedCode,
		PaymentID:        paymentID,
		PlanID:           planID,
		ApprovedAt:       now,
	}); err != nil {
		return nil, err
	}
	if err := s.repo.ConsumeClaim(ctx, tx, buyerTenantID, paymentID, now); err != nil {
		return nil, err
	}

	return credit, nil
}

// RegisterClaim records a signup-time referral. An existing claim for the
// buyer is returned unchanged.
func (s *Service) RegisterClaim(ctx context.Context, buyerTenantID, referrerTenantID, code string) (domain.Claim, bool, error) {
	buyerTenantID = strings.TrimSpace(buyerTenantID)
	referrerTenantID = strings.TrimSpace(referrerTenantID)
	code = strings.TrimSpace(code)

	if !domain.ValidTenantID(buyerTenantID) || !domain.ValidTenantID(referrerTenantID) {
		return domain.Claim{}, false, domain.ErrInvalidTenant
	}
	if buyerTenantID == referrerTenantID {
		return domain.Claim{}, false, domain.ErrSelfReferral
	}
	if len(code) > 64 {
		return domain.Claim{}, false, domain.ErrInvalidCode
	}

	var (
		claim   domain.Claim
		created bool
	)
	err := s.tx.Run(ctx, "referral.register_claim", func(tx *gorm.DB) error {
		candidate := domain.Claim{
			BuyerTenantID:    buyerTenantID,
			ReferrerTenantID: referrerTenantID,
			UsedCode:         code,
			Status:           domain.ClaimPending,
			CreatedAt:        s.clock.Now(),
		}
		inserted, err := s.repo.InsertClaim(ctx, tx, &candidate)
		if err != nil {
			return err
		}
		created = inserted

		existing, err := s.repo.FindClaimForUpdate(ctx, tx, buyerTenantID)
		if err != nil {
			return err
		}
		if existing != nil {
			claim = *existing
		}
		return nil
	})
	if err != nil {
		return domain.Claim{}, false, err
	}
	return claim, created, nil
}

// Redeem spends points; the balance never goes negative.
func (s *Service) Redeem(ctx context.Context, tenantID string, cost int64, reason string) (domain.Redemption, error) {
	tenantID = strings.TrimSpace(tenantID)
	if !domain.ValidTenantID(tenantID) {
		return domain.Redemption{}, domain.ErrInvalidTenant
	}
	if cost <= 0 {
		return domain.Redemption{}, domain.ErrInvalidCost
	}

	var redemption domain.Redemption
	err := s.tx.Run(ctx, "referral.redeem", func(tx *gorm.DB) error {
		now := s.clock.Now()
		ok, err := s.repo.DebitPoints(ctx, tx, tenantID, cost, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInsufficientBalance
		}
		redemption = domain.Redemption{
			ID:        s.genID.Generate(),
			TenantID:  tenantID,
			Cost:      cost,
			Reason:    strings.TrimSpace(reason),
			CreatedAt: now,
		}
		return s.repo.InsertRedemption(ctx, tx, &redemption)
	})
	if err != nil {
		return domain.Redemption{}, err
	}

	s.log.Info("referral points redeemed",
		zap.String("tenant_id", tenantID),
		zap.Int64("cost", cost),
	)
	return redemption, nil
}

// GetConfig returns a zero balance for tenants that never referred anyone.
func (s *Service) GetConfig(ctx context.Context, tenantID string) (domain.Config, error) {
	tenantID = strings.TrimSpace(tenantID)
	if !domain.ValidTenantID(tenantID) {
		return domain.Config{}, domain.ErrInvalidTenant
	}
	cfg, err := s.repo.FindConfig(ctx, s.tx.DB(), tenantID)
	if err != nil {
		return domain.Config{}, err
	}
	if cfg == nil {
		return domain.Config{TenantID: tenantID}, nil
	}
	return *cfg, nil
}

// DiscountPercent is the tier applied when the tenant buys a license.
func (s *Service) DiscountPercent(ctx context.Context, tenantID string) (int, error) {
	cfg, err := s.GetConfig(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return domain.ClampTier(cfg.DiscountTier, s.policy.Get().Referral.TierCap), nil
}

func (s *Service) creditPolicy() domain.CreditPolicy {
	p := s.policy.Get().Referral
	return domain.CreditPolicy{
		TierStep: p.TierStep,
		TierCap:  domain.ClampTier(p.TierCap, domain.MaxDiscountTier),
		Points:   p.PointsPerReferral,
	}
}
