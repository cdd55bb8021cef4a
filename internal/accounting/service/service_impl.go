package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitsuite/licensehub/internal/accounting/domain"
	"github.com/fitsuite/licensehub/internal/tenant"
	"github.com/fitsuite/licensehub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Tx      *db.TxRunner
	Log     *zap.Logger
	GenID   *snowflake.Node
	Tenants *tenant.Directory
	Repo    domain.Repository
}

type Service struct {
	tx      *db.TxRunner
	log     *zap.Logger
	genID   *snowflake.Node
	tenants *tenant.Directory
	repo    domain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		tx:      p.Tx,
		log:     p.Log.Named("accounting.service"),
		genID:   p.GenID,
		tenants: p.Tenants,
		repo:    p.Repo,
	}
}

// Accumulate credits one category/medium pair on the tenant-local day and
// month of e.At.
func (s *Service) Accumulate(ctx context.Context, tx *gorm.DB, e domain.Entry) error {
	if !domain.ValidCategory(e.Category) {
		return domain.ErrInvalidCategory
	}
	if e.Amount < 0 {
		return domain.ErrInvalidAmount
	}

	loc, err := s.tenants.Location(ctx, tx, e.TenantID)
	if err != nil {
		return err
	}
	local := e.At.In(loc)

	delta := domain.Counters{Count: 1, Total: e.Amount}
	if domain.NormalizeMedium(e.Medium) == domain.MediumCash {
		delta.CashTotal = e.Amount
	} else {
		delta.OnlineTotal = e.Amount
	}

	now := e.At.UTC()
	if err := s.repo.IncrementDaily(ctx, tx, e.TenantID, local.Format(domain.DayLayout), e.Category, delta, now); err != nil {
		return err
	}
	return s.repo.IncrementMonthly(ctx, tx, e.TenantID, local.Format(domain.MonthLayout), e.Category, delta, now)
}

// Record writes the revenue line and rolls it up in one step.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, txn domain.Transaction) (domain.Transaction, error) {
	if !domain.ValidCategory(txn.Category) {
		return domain.Transaction{}, domain.ErrInvalidCategory
	}
	if txn.ID == 0 {
		txn.ID = s.genID.Generate()
	}
	txn.Medium = domain.NormalizeMedium(txn.Medium)
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.InsertTransaction(ctx, tx, &txn); err != nil {
		return domain.Transaction{}, err
	}
	err := s.Accumulate(ctx, tx, domain.Entry{
		TenantID: txn.TenantID,
		Category: txn.Category,
		Amount:   txn.Amount,
		Medium:   txn.Medium,
		At:       txn.CreatedAt,
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

// Day reads a tenant-local day formatted as YYYY-MM-DD.
func (s *Service) Day(ctx context.Context, tenantID, day string) (domain.Period, error) {
	day = strings.TrimSpace(day)
	if _, err := time.Parse(domain.DayLayout, day); err != nil {
		return domain.Period{}, domain.ErrInvalidDay
	}
	rows, err := s.repo.ListDaily(ctx, s.tx.DB(), tenantID, day)
	if err != nil {
		return domain.Period{}, err
	}

	period := newPeriod(tenantID, day)
	for _, row := range rows {
		period.Categories[row.Category] = row.Counters
	}
	return period, nil
}

// Month reads a tenant-local month formatted as YYYY-MM.
func (s *Service) Month(ctx context.Context, tenantID, month string) (domain.Period, error) {
	month = strings.TrimSpace(month)
	if _, err := time.Parse(domain.MonthLayout, month); err != nil {
		return domain.Period{}, domain.ErrInvalidDay
	}
	rows, err := s.repo.ListMonthly(ctx, s.tx.DB(), tenantID, month)
	if err != nil {
		return domain.Period{}, err
	}

	period := newPeriod(tenantID, month)
	for _, row := range rows {
		period.Categories[row.Category] = row.Counters
	}
	return period, nil
}

func newPeriod(tenantID, key string) domain.Period {
	period := domain.Period{
		TenantID:   tenantID,
		Key:        key,
		Categories: map[string]domain.Counters{},
	}
	for _, c := range domain.Categories() {
		period.Categories[c] = domain.Counters{}
	}
	return period
}
