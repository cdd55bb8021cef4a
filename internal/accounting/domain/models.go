package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidDay      = errors.New("invalid_day")
)

const (
	CategoryNewSignup = "newSignup"
	CategoryRenewal   = "renewal"
	CategoryStoreSale = "storeSale"
)

const (
	MediumCash   = "cash"
	MediumOnline = "online"
)

const (
	KindLicense = "license"
	KindStore   = "store"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

// Transaction is one revenue line in the tenant's books.
type Transaction struct {
	TenantID        string       `gorm:"primaryKey;type:varchar(128)" json:"tenant_id"`
	ID              snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Kind            string       `gorm:"type:varchar(16);not null" json:"kind"`
	Category        string       `gorm:"type:varchar(16);not null" json:"category"`
	PaymentID       string       `gorm:"type:varchar(64);index" json:"payment_id"`
	Amount          int64        `gorm:"not null" json:"amount"`
	Medium          string       `gorm:"type:varchar(16);not null" json:"medium"`
	Method          string       `gorm:"type:varchar(64)" json:"method"`
	DiscountPercent int          `gorm:"not null;default:0" json:"discount_percent"`
	Detail          string       `gorm:"type:varchar(255)" json:"detail"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
}

func (Transaction) TableName() string { return "tenant_transactions" }

type Counters struct {
	Count       int64 `gorm:"not null;default:0" json:"count"`
	Total       int64 `gorm:"not null;default:0" json:"total"`
	CashTotal   int64 `gorm:"not null;default:0" json:"cashTotal"`
	OnlineTotal int64 `gorm:"not null;default:0" json:"onlineTotal"`
}

type DailySummary struct {
	TenantID  string `gorm:"primaryKey;type:varchar(128)"`
	Day       string `gorm:"primaryKey;type:varchar(10)"`
	Category  string `gorm:"primaryKey;type:varchar(16)"`
	Counters  `gorm:"embedded"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (DailySummary) TableName() string { return "daily_revenue_summaries" }

type MonthlySummary struct {
	TenantID  string `gorm:"primaryKey;type:varchar(128)"`
	Month     string `gorm:"primaryKey;type:varchar(7)"`
	Category  string `gorm:"primaryKey;type:varchar(16)"`
	Counters  `gorm:"embedded"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (MonthlySummary) TableName() string { return "monthly_revenue_summaries" }

// Entry is one revenue event to roll up.
type Entry struct {
	TenantID string
	Category string
	Amount   int64
	Medium   string
	At       time.Time
}

// Period is a rollup keyed by category.
type Period struct {
	TenantID   string              `json:"tenantId"`
	Key        string              `json:"key"`
	Categories map[string]Counters `json:"categories"`
}

func Categories() []string {
	return []string{CategoryNewSignup, CategoryRenewal, CategoryStoreSale}
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryNewSignup, CategoryRenewal, CategoryStoreSale:
		return true
	}
	return false
}

// NormalizeMedium maps provider or cashier methods onto cash/online.
func NormalizeMedium(method string) string {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "cash", "efectivo":
		return MediumCash
	default:
		return MediumOnline
	}
}

func Models() []any {
	return []any{&Transaction{}, &DailySummary{}, &MonthlySummary{}}
}

type Repository interface {
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error
	IncrementDaily(ctx context.Context, db *gorm.DB, tenantID, day, category string, delta Counters, at time.Time) error
	IncrementMonthly(ctx context.Context, db *gorm.DB, tenantID, month, category string, delta Counters, at time.Time) error
	ListDaily(ctx context.Context, db *gorm.DB, tenantID, day string) ([]DailySummary, error)
	ListMonthly(ctx context.Context, db *gorm.DB, tenantID, month string) ([]MonthlySummary, error)
}
