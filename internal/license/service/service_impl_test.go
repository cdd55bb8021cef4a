package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/license/domain"
	"github.com/fitsuite/licensehub/internal/license/repository"
	plandomain "github.com/fitsuite/licensehub/internal/plan/domain"
	"github.com/fitsuite/licensehub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var basicPlan = plandomain.Plan{
	ID:           "basic",
	Name:         "Basic",
	Tier:         "basic",
	DurationDays: 30,
	PriceCents:   100000,
	Modules:      map[string]bool{"members": true, "reports": false},
	Limits:       plandomain.Limits{MaxMembers: 50, MaxDevices: 1, MaxBranches: 1, MaxOfflineHours: 168},
}

var proPlan = plandomain.Plan{
	ID:           "pro",
	Name:         "Pro",
	Tier:         "pro",
	DurationDays: 90,
	PriceCents:   250000,
	MaxUsers:     5,
	Modules:      map[string]bool{"members": true, "reports": true},
	Limits:       plandomain.Limits{MaxMembers: 500, MaxDevices: 3, MaxBranches: 2, MaxOfflineHours: 72},
}

func setup(t *testing.T) (*gorm.DB, *Service, *clock.FakeClock) {
	t.Helper()
	conn := dbtest.Open(t, domain.Models()...)
	clk := clock.NewFakeClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		Log:    zap.NewNop(),
		Clock:  clk,
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicy()),
		Repo:   repository.Provide(),
	})
	return conn, svc, clk
}

func apply(t *testing.T, conn *gorm.DB, svc *Service, tenantID string, plan plandomain.Plan, payment domain.Payment) domain.Event {
	t.Helper()
	var ev domain.Event
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		ev, err = svc.ApplyPayment(context.Background(), tx, tenantID, plan, payment)
		return err
	})
	if err != nil {
		t.Fatalf("apply payment: %v", err)
	}
	return ev
}

func TestApplyPaymentActivatesNewTenant(t *testing.T) {
	conn, svc, clk := setup(t)

	ev := apply(t, conn, svc, "gym-1", basicPlan, domain.Payment{ID: "p1", AmountCents: 80000, Method: "account_money"})
	assert.Equal(t, domain.EventActivated, ev.Type)
	assert.Equal(t, int64(1), ev.Revision)
	assert.Equal(t, 20, ev.DiscountPercent)
	assert.True(t, ev.StartDate.Equal(clk.Now()))
	assert.True(t, ev.ExpiryDate.Equal(clk.Now().AddDate(0, 0, 30)))

	var lic domain.License
	require.NoError(t, conn.First(&lic, "tenant_id = ?", "gym-1").Error)
	assert.Equal(t, domain.StatusActive, lic.Status)
	assert.Equal(t, 72, lic.GraceHours)
	assert.Equal(t, ev.LicenseID, lic.LicenseID)

	var cfgCache domain.ConfigCache
	require.NoError(t, conn.First(&cfgCache, "tenant_id = ?", "gym-1").Error)
	assert.Equal(t, 50, cfgCache.MaxUsers)
	assert.True(t, cfgCache.ExpiryAt.Equal(lic.ExpiryDate))

	var device domain.DeviceCache
	require.NoError(t, conn.First(&device, "tenant_id = ?", "gym-1").Error)
	var enabled map[string]bool
	require.NoError(t, json.Unmarshal(device.EnabledModules, &enabled))
	assert.Equal(t, map[string]bool{"members": true}, enabled)
	assert.Equal(t, int64(100000), device.Price)

	var history domain.PaymentRecord
	require.NoError(t, conn.First(&history, "tenant_id = ? AND payment_id = ?", "gym-1", "p1").Error)
	assert.Equal(t, domain.EventActivated, history.EventType)
}

func TestApplyPaymentRenewalPreservesIdentity(t *testing.T) {
	conn, svc, clk := setup(t)

	first := apply(t, conn, svc, "gym-1", basicPlan, domain.Payment{ID: "p1", AmountCents: 100000})
	require.NoError(t, conn.Model(&domain.License{}).Where("tenant_id = ?", "gym-1").Update("grace_hours", 48).Error)

	clk.Advance(10 * 24 * time.Hour)
	second := apply(t, conn, svc, "gym-1", basicPlan, domain.Payment{ID: "p2", AmountCents: 100000})

	assert.Equal(t, domain.EventRenewed, second.Type)
	assert.Equal(t, first.LicenseID, second.LicenseID)
	assert.Equal(t, int64(2), second.Revision)

	var lic domain.License
	require.NoError(t, conn.First(&lic, "tenant_id = ?", "gym-1").Error)
	assert.Equal(t, 48, lic.GraceHours)
}

func TestApplyPaymentUpgrade(t *testing.T) {
	conn, svc, _ := setup(t)

	apply(t, conn, svc, "gym-1", basicPlan, domain.Payment{ID: "p1", AmountCents: 100000})
	ev := apply(t, conn, svc, "gym-1", proPlan, domain.Payment{ID: "p2", AmountCents: 250000})

	assert.Equal(t, domain.EventUpgraded, ev.Type)
	var cfgCache domain.ConfigCache
	require.NoError(t, conn.First(&cfgCache, "tenant_id = ?", "gym-1").Error)
	assert.Equal(t, "pro", cfgCache.PlanID)
	assert.Equal(t, 5, cfgCache.MaxUsers)
}

func TestApplyPaymentRestartsExpiredLicenseFromNow(t *testing.T) {
	conn, svc, clk := setup(t)

	apply(t, conn, svc, "gym-1", basicPlan, domain.Payment{ID: "p1", AmountCents: 100000})
	clk.Advance(90 * 24 * time.Hour)

	ev := apply(t, conn, svc, "gym-1", basicPlan, domain.Payment{ID: "p2", AmountCents: 100000})
	assert.True(t, ev.StartDate.Equal(clk.Now()))
	assert.True(t, ev.ExpiryDate.Equal(clk.Now().AddDate(0, 0, 30)))
}

func TestApplyPaymentRevisionCountsDistinctPayments(t *testing.T) {
	conn, svc, _ := setup(t)

	for i, id := range []string{"a", "b", "c", "d"} {
		plan := basicPlan
		if i%2 == 1 {
			plan = proPlan
		}
		apply(t, conn, svc, "gym-1", plan, domain.Payment{ID: id, AmountCents: 1})
	}

	var lic domain.License
	require.NoError(t, conn.First(&lic, "tenant_id = ?", "gym-1").Error)
	assert.Equal(t, int64(4), lic.Revision)
}

func TestApplyPaymentRollsBackWithTransaction(t *testing.T) {
	conn, svc, _ := setup(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.ApplyPayment(context.Background(), tx, "gym-1", basicPlan, domain.Payment{ID: "p1"}); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	got, err := svc.Get(context.Background(), conn, "gym-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestApplyPaymentRejectsEmptyTenant(t *testing.T) {
	conn, svc, _ := setup(t)
	_, err := svc.ApplyPayment(context.Background(), conn, " ", basicPlan, domain.Payment{ID: "p1"})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}
