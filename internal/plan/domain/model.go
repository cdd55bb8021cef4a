package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("plan_not_found")

// Limits bounds what a tenant may run under a plan.
type Limits struct {
	MaxMembers      int `json:"maxMembers"`
	MaxDevices      int `json:"maxDevices"`
	MaxBranches     int `json:"maxBranches"`
	MaxOfflineHours int `json:"maxOfflineHours"`
}

// Map renders limits in catalog shape so they can be fed back to NormalizeLimits.
func (l Limits) Map() map[string]any {
	return map[string]any{
		"maxMembers":      l.MaxMembers,
		"maxDevices":      l.MaxDevices,
		"maxBranches":     l.MaxBranches,
		"maxOfflineHours": l.MaxOfflineHours,
	}
}

// Plan is the canonical, normalized plan descriptor.
type Plan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Tier         string          `json:"tier"`
	DurationDays int             `json:"durationDays"`
	PriceCents   int64           `json:"priceCents"`
	MaxUsers     int             `json:"maxUsers"`
	Modules      map[string]bool `json:"modules"`
	Limits       Limits          `json:"limits"`
}

// SeatLimit prefers the explicit user cap and falls back to the member limit.
func (p Plan) SeatLimit() int {
	if p.MaxUsers > 0 {
		return p.MaxUsers
	}
	return p.Limits.MaxMembers
}

// EnabledModules returns only the modules switched on.
func (p Plan) EnabledModules() map[string]bool {
	out := make(map[string]bool, len(p.Modules))
	for name, on := range p.Modules {
		if on {
			out[name] = true
		}
	}
	return out
}

// CatalogEntry is a plan as stored in the primary catalog.
type CatalogEntry struct {
	ID         string         `gorm:"primaryKey;type:varchar(128)"`
	Attributes datatypes.JSON `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

func (CatalogEntry) TableName() string { return "license_plans" }

// LegacyCatalogEntry is a plan kept in the older catalog namespace.
type LegacyCatalogEntry struct {
	ID         string         `gorm:"primaryKey;type:varchar(128)"`
	Attributes datatypes.JSON `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

func (LegacyCatalogEntry) TableName() string { return "legacy_license_plans" }

type Repository interface {
	// FindAttributes returns the raw attributes, primary catalog first.
	FindAttributes(ctx context.Context, db *gorm.DB, planID string) ([]byte, error)
}

type Reader interface {
	Get(ctx context.Context, planID string) (Plan, error)
}

func Models() []any {
	return []any{&CatalogEntry{}, &LegacyCatalogEntry{}}
}
