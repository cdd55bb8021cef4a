package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrInvalidTenant = errors.New("invalid_tenant")

const (
	StatusInactive = "inactive"
	StatusActive   = "active"
)

const (
	EventActivated = "activated"
	EventRenewed   = "renewed"
	EventUpgraded  = "upgraded"
)

// License is the source-of-truth record, one per tenant.
type License struct {
	TenantID   string         `gorm:"primaryKey;type:varchar(128)" json:"tenant_id"`
	Status     string         `gorm:"type:varchar(16);not null" json:"status"`
	PlanID     string         `gorm:"type:varchar(128);not null" json:"plan_id"`
	Revision   int64          `gorm:"not null;default:0" json:"revision"`
	StartDate  time.Time      `gorm:"not null" json:"start_date"`
	ExpiryDate time.Time      `gorm:"not null" json:"expiry_date"`
	GraceHours int            `gorm:"not null" json:"grace_hours"`
	LicenseID  string         `gorm:"type:varchar(160);not null" json:"license_id"`
	Modules    datatypes.JSON `json:"modules"`
	Limits     datatypes.JSON `json:"limits"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (License) TableName() string { return "licenses" }

// ConfigCache is the projection read by the tenant dashboard.
type ConfigCache struct {
	TenantID  string    `gorm:"primaryKey;type:varchar(128)"`
	Status    string    `gorm:"type:varchar(16);not null"`
	PlanID    string    `gorm:"type:varchar(128);not null"`
	PlanName  string    `gorm:"type:varchar(255)"`
	Tier      string    `gorm:"type:varchar(64)"`
	StartAt   time.Time `gorm:"not null"`
	ExpiryAt  time.Time `gorm:"not null"`
	MaxUsers  int       `gorm:"not null"`
	Limits    datatypes.JSON
	Modules   datatypes.JSON
	UpdatedAt time.Time `gorm:"not null"`
}

func (ConfigCache) TableName() string { return "license_config_cache" }

// DeviceCache is the projection polled by device clients.
type DeviceCache struct {
	TenantID       string `gorm:"primaryKey;type:varchar(128)"`
	PlanID         string `gorm:"type:varchar(128);not null"`
	PlanName       string `gorm:"type:varchar(255)"`
	DurationDays   int    `gorm:"not null"`
	MaxUsers       int    `gorm:"not null"`
	Tier           string `gorm:"type:varchar(64)"`
	Price          int64  `gorm:"not null"`
	Modules        datatypes.JSON
	EnabledModules datatypes.JSON
	Limits         datatypes.JSON
	UpdatedAt      time.Time `gorm:"not null"`
}

func (DeviceCache) TableName() string { return "device_config_cache" }

// PaymentRecord is the per-tenant license payment history.
type PaymentRecord struct {
	TenantID        string    `gorm:"primaryKey;type:varchar(128)"`
	PaymentID       string    `gorm:"primaryKey;type:varchar(64)"`
	PlanID          string    `gorm:"type:varchar(128);not null"`
	EventType       string    `gorm:"type:varchar(16);not null"`
	AmountPaid      int64     `gorm:"not null"`
	OriginalPrice   int64     `gorm:"not null"`
	DiscountPercent int       `gorm:"not null"`
	Method          string    `gorm:"type:varchar(64)"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (PaymentRecord) TableName() string { return "license_payments" }

// Payment is the approved provider payment being applied.
type Payment struct {
	ID          string
	AmountCents int64
	Method      string
}

// Event describes one applied transition and is handed to notifiers after commit.
type Event struct {
	Type            string    `json:"eventType"`
	TenantID        string    `json:"tenantId"`
	PaymentID       string    `json:"paymentId"`
	PlanID          string    `json:"planId"`
	PlanName        string    `json:"planName"`
	Tier            string    `json:"tier"`
	LicenseID       string    `json:"licenseId"`
	Revision        int64     `json:"revision"`
	StartDate       time.Time `json:"startDate"`
	ExpiryDate      time.Time `json:"expiryDate"`
	AmountCents     int64     `json:"amountCents"`
	DiscountPercent int       `json:"discountPercent"`
}

type Repository interface {
	FindForUpdate(ctx context.Context, db *gorm.DB, tenantID string) (*License, error)
	// Upsert writes the record and increments its revision by one, returning the new value.
	Upsert(ctx context.Context, db *gorm.DB, record *License) (int64, error)
	SaveConfigCache(ctx context.Context, db *gorm.DB, cache *ConfigCache) error
	SaveDeviceCache(ctx context.Context, db *gorm.DB, cache *DeviceCache) error
	InsertPayment(ctx context.Context, db *gorm.DB, record *PaymentRecord) error
}

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&License{}, &ConfigCache{}, &DeviceCache{}, &PaymentRecord{}}
}
