package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountingdomain "github.com/fitsuite/licensehub/internal/accounting/domain"
	accountingrepo "github.com/fitsuite/licensehub/internal/accounting/repository"
	accountingservice "github.com/fitsuite/licensehub/internal/accounting/service"
	"github.com/fitsuite/licensehub/internal/cache"
	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/idempotency"
	licensedomain "github.com/fitsuite/licensehub/internal/license/domain"
	licenserepo "github.com/fitsuite/licensehub/internal/license/repository"
	licenseservice "github.com/fitsuite/licensehub/internal/license/service"
	"github.com/fitsuite/licensehub/internal/notification"
	orderdomain "github.com/fitsuite/licensehub/internal/order/domain"
	orderrepo "github.com/fitsuite/licensehub/internal/order/repository"
	orderservice "github.com/fitsuite/licensehub/internal/order/service"
	"github.com/fitsuite/licensehub/internal/payment/domain"
	"github.com/fitsuite/licensehub/internal/payment/mock"
	"github.com/fitsuite/licensehub/internal/payment/repository"
	plandomain "github.com/fitsuite/licensehub/internal/plan/domain"
	planrepo "github.com/fitsuite/licensehub/internal/plan/repository"
	planservice "github.com/fitsuite/licensehub/internal/plan/service"
	referraldomain "github.com/fitsuite/licensehub/internal/referral/domain"
	referralrepo "github.com/fitsuite/licensehub/internal/referral/repository"
	referralservice "github.com/fitsuite/licensehub/internal/referral/service"
	"github.com/fitsuite/licensehub/internal/tenant"
	"github.com/fitsuite/licensehub/pkg/db"
	"github.com/fitsuite/licensehub/pkg/db/dbtest"
	"github.com/golang/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []notification.Event
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, ev notification.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) all() []notification.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Event(nil), s.events...)
}

type harness struct {
	conn      *gorm.DB
	provider  *mock.MockProvider
	sink      *recordingSink
	clock     *clock.FakeClock
	processor *Processor
	links     *LinkService
	referrals *referralservice.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	models := []any{&tenant.Tenant{}, &plandomain.CatalogEntry{}, &plandomain.LegacyCatalogEntry{}}
	models = append(models, licensedomain.Models()...)
	models = append(models, referraldomain.Models()...)
	models = append(models, accountingdomain.Models()...)
	models = append(models, orderdomain.Models()...)
	models = append(models, domain.Models()...)
	models = append(models, idempotency.Models()...)
	conn := dbtest.Open(t, models...)

	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	ctrl := gomock.NewController(t)
	provider := mock.NewMockProvider(ctrl)

	log := zap.NewNop()
	clk := clock.NewFakeClock(testNow)
	policy := config.NewStaticPolicyHolder(config.DefaultPolicy())
	tx := db.NewTestTxRunner(conn)
	tenants := tenant.NewDirectory(log, policy)

	plans := planservice.NewReader(planservice.Params{
		DB:     conn,
		Log:    log,
		Repo:   planrepo.Provide(),
		Cache:  cache.NewMemoryPlanCache(),
		Policy: policy,
	})
	books := accountingservice.NewService(accountingservice.Params{
		Tx:      tx,
		Log:     log,
		GenID:   node,
		Tenants: tenants,
		Repo:    accountingrepo.Provide(),
	})
	referrals := referralservice.NewService(referralservice.Params{
		Tx:     tx,
		Log:    log,
		Clock:  clk,
		GenID:  node,
		Policy: policy,
		Repo:   referralrepo.Provide(),
	})
	orders := orderservice.NewService(orderservice.Params{
		Tx:    tx,
		Log:   log,
		Clock: clk,
		Repo:  orderrepo.Provide(),
		Books: books,
	})
	licenses := licenseservice.NewService(licenseservice.Params{
		Log:    log,
		Clock:  clk,
		Policy: policy,
		Repo:   licenserepo.Provide(),
	})

	sink := &recordingSink{}
	prefs := repository.Provide()

	h := &harness{
		conn:      conn,
		provider:  provider,
		sink:      sink,
		clock:     clk,
		referrals: referrals,
	}
	h.processor = NewProcessor(ProcessorParams{
		Tx:        tx,
		Log:       log,
		Clock:     clk,
		Provider:  provider,
		Plans:     plans,
		Licenses:  licenses,
		Referrals: referrals,
		Books:     books,
		Orders:    orders,
		Ledger:    idempotency.NewLedger(clk),
		Prefs:     prefs,
		Tenants:   tenants,
		Publisher: notification.NewSyncDispatcher(log, sink),
	})
	h.links = NewLinkService(LinkParams{
		DB:        conn,
		Log:       log,
		Cfg:       config.Config{PublicURL: "https://hub.test", MercadoPago: config.MercadoPagoConfig{Currency: "ARS", Descriptor: "LICENSEHUB"}},
		Clock:     clk,
		Provider:  provider,
		Plans:     plans,
		Referrals: referrals,
		Prefs:     prefs,
	})
	return h
}

func (h *harness) seedPlan(t *testing.T, id, attrs string) {
	t.Helper()
	err := h.conn.Create(&plandomain.CatalogEntry{ID: id, Attributes: datatypes.JSON(attrs), UpdatedAt: testNow}).Error
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}
}

func (h *harness) seedClaim(t *testing.T, buyer, referrer string) {
	t.Helper()
	err := h.conn.Create(&referraldomain.Claim{
		BuyerTenantID:    buyer,
		ReferrerTenantID: referrer,
		UsedCode:         "CODE-" + referrer,
		Status:           referraldomain.ClaimPending,
		CreatedAt:        testNow,
	}).Error
	if err != nil {
		t.Fatalf("seed claim: %v", err)
	}
}

func approved(id, ref string, cents int64) domain.ProviderPayment {
	at := testNow
	return domain.ProviderPayment{
		ID:                id,
		Status:            domain.StatusApproved,
		StatusDetail:      "accredited",
		AmountCents:       cents,
		Currency:          "ARS",
		ExternalReference: ref,
		PaymentTypeID:     "credit_card",
		PaymentMethodID:   "visa",
		ApprovedAt:        &at,
	}
}
