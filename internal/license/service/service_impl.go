package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/license/domain"
	plandomain "github.com/fitsuite/licensehub/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Policy *config.PolicyHolder
	Repo   domain.Repository
}

type Service struct {
	log    *zap.Logger
	clock  clock.Clock
	policy *config.PolicyHolder
	repo   domain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		log:    p.Log.Named("license.service"),
		clock:  p.Clock,
		policy: p.Policy,
		repo:   p.Repo,
	}
}

// ApplyPayment moves the tenant's license to its next state. It only touches
// tx and is safe to re-run when the surrounding transaction is retried.
func (s *Service) ApplyPayment(ctx context.Context, tx *gorm.DB, tenantID string, plan plandomain.Plan, payment domain.Payment) (domain.Event, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.Event{}, domain.ErrInvalidTenant
	}

	prev, err := s.repo.FindForUpdate(ctx, tx, tenantID)
	if err != nil {
		return domain.Event{}, err
	}

	eventType := domain.Classify(prev, plan.ID)
	now := s.clock.Now()
	start := now
	expiry := start.AddDate(0, 0, plan.DurationDays)

	licenseID := ""
	graceHours := s.policy.Get().License.GraceHours
	if prev != nil {
		if prev.LicenseID != "" {
			licenseID = prev.LicenseID
		}
		if prev.GraceHours > 0 {
			graceHours = prev.GraceHours
		}
	}
	if licenseID == "" {
		licenseID = domain.NewLicenseID(plan.ID)
	}

	modules, err := json.Marshal(plan.Modules)
	if err != nil {
		return domain.Event{}, err
	}
	enabled, err := json.Marshal(plan.EnabledModules())
	if err != nil {
		return domain.Event{}, err
	}
	limits, err := json.Marshal(plan.Limits)
	if err != nil {
		return domain.Event{}, err
	}

	record := domain.License{
		TenantID:   tenantID,
		Status:     domain.StatusActive,
		PlanID:     plan.ID,
		StartDate:  start,
		ExpiryDate: expiry,
		GraceHours: graceHours,
		LicenseID:  licenseID,
		Modules:    datatypes.JSON(modules),
		Limits:     datatypes.JSON(limits),
		UpdatedAt:  now,
	}
	revision, err := s.repo.Upsert(ctx, tx, &record)
	if err != nil {
		return domain.Event{}, err
	}

	seats := plan.SeatLimit()
	if err := s.repo.SaveConfigCache(ctx, tx, &domain.ConfigCache{
		TenantID:  tenantID,
		Status:    domain.StatusActive,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Tier:      plan.Tier,
		StartAt:   start,
		ExpiryAt:  expiry,
		MaxUsers:  seats,
		Limits:    datatypes.JSON(limits),
		Modules:   datatypes.JSON(modules),
		UpdatedAt: now,
	}); err != nil {
		return domain.Event{}, err
	}

	if err := s.repo.SaveDeviceCache(ctx, tx, &domain.DeviceCache{
		TenantID:       tenantID,
		PlanID:         plan.ID,
		PlanName:       plan.Name,
		DurationDays:   plan.DurationDays,
		MaxUsers:       seats,
		Tier:           plan.Tier,
		Price:          plan.PriceCents,
		Modules:        datatypes.JSON(modules),
		EnabledModules: datatypes.JSON(enabled),
		Limits:         datatypes.JSON(limits),
		UpdatedAt:      now,
	}); err != nil {
		return domain.Event{}, err
	}

	discount := domain.DiscountPercent(payment.AmountCents, plan.PriceCents)
	if err := s.repo.InsertPayment(ctx, tx, &domain.PaymentRecord{
		TenantID:        tenantID,
		PaymentID:       payment.ID,
		PlanID:          plan.ID,
		EventType:       eventType,
		AmountPaid:      payment.AmountCents,
		OriginalPrice:   plan.PriceCents,
		DiscountPercent: discount,
		Method:          payment.Method,
		CreatedAt:       now,
	}); err != nil {
		return domain.Event{}, err
	}

	s.log.Debug("license transition staged",
		zap.String("tenant_id", tenantID),
		zap.String("plan_id", plan.ID),
		zap.String("event_type", eventType),
		zap.Int64("revision", revision),
	)

	return domain.Event{
		Type:            eventType,
		TenantID:        tenantID,
		PaymentID:       payment.ID,
		PlanID:          plan.ID,
		PlanName:        plan.Name,
		Tier:            plan.Tier,
		LicenseID:       licenseID,
		Revision:        revision,
		StartDate:       start,
		ExpiryDate:      expiry,
		AmountCents:     payment.AmountCents,
		DiscountPercent: discount,
	}, nil
}

// Get returns the current license or nil when the tenant never paid.
func (s *Service) Get(ctx context.Context, db *gorm.DB, tenantID string) (*domain.License, error) {
	var record domain.License
	err := db.WithContext(ctx).Where("tenant_id = ?", strings.TrimSpace(tenantID)).Limit(1).Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.TenantID == "" {
		return nil, nil
	}
	return &record, nil
}
