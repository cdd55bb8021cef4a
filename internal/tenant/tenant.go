// Package tenant reads gym account profiles owned by the signup flow.
package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fitsuite/licensehub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Tenant struct {
	ID        string    `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Timezone  *string   `gorm:"type:varchar(64)" json:"timezone,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Tenant) TableName() string { return "tenants" }

func Models() []any {
	return []any{&Tenant{}}
}

type Directory struct {
	log    *zap.Logger
	policy *config.PolicyHolder
}

func NewDirectory(log *zap.Logger, policy *config.PolicyHolder) *Directory {
	return &Directory{log: log.Named("tenant.directory"), policy: policy}
}

// Find returns nil when the tenant has no profile row.
func (d *Directory) Find(ctx context.Context, db *gorm.DB, tenantID string) (*Tenant, error) {
	var t Tenant
	err := db.WithContext(ctx).Where("id = ?", tenantID).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Location resolves the tenant's business timezone, falling back to the
// configured default and then UTC.
func (d *Directory) Location(ctx context.Context, db *gorm.DB, tenantID string) (*time.Location, error) {
	t, err := d.Find(ctx, db, tenantID)
	if err != nil {
		return nil, err
	}
	if t != nil && t.Timezone != nil && strings.TrimSpace(*t.Timezone) != "" {
		if loc, err := time.LoadLocation(strings.TrimSpace(*t.Timezone)); err == nil {
			return loc, nil
		}
		d.log.Warn("invalid tenant timezone", zap.String("tenant_id", tenantID), zap.String("timezone", *t.Timezone))
	}
	return d.defaultLocation(), nil
}

func (d *Directory) defaultLocation() *time.Location {
	name := d.policy.Get().Timezone
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.UTC
}

var Module = fx.Module("tenant",
	fx.Provide(NewDirectory),
)
