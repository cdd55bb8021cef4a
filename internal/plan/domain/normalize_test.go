package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeModulesShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want map[string]bool
	}{
		{
			name: "array of names",
			raw:  map[string]any{"modulos": []any{"members", " classes ", ""}},
			want: map[string]bool{"members": true, "classes": true, "reports": false},
		},
		{
			name: "object map",
			raw:  map[string]any{"modules": map[string]any{"members": true, "store": 0.0, "reports": "yes"}},
			want: map[string]bool{"members": true, "store": false, "reports": true},
		},
		{
			name: "later keys override earlier ones",
			raw: map[string]any{
				"modulosPlan": []any{"store"},
				"features":    map[string]any{"store": false},
			},
			want: map[string]bool{"store": false, "reports": false},
		},
		{
			name: "no modules at all",
			raw:  map[string]any{},
			want: map[string]bool{"reports": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeModules(tt.raw))
		})
	}
}

func TestNormalizeLimitsFloorsAndDefaults(t *testing.T) {
	got := NormalizeLimits(map[string]any{})
	assert.Equal(t, Limits{MaxMembers: 0, MaxDevices: 1, MaxBranches: 1, MaxOfflineHours: 168}, got)

	got = NormalizeLimits(map[string]any{
		"limits": map[string]any{
			"maxMembers":      -5.0,
			"maxDevices":      0.0,
			"maxBranches":     "abc",
			"maxOfflineHours": 3.0,
		},
	})
	assert.Equal(t, Limits{MaxMembers: 0, MaxDevices: 1, MaxBranches: 1, MaxOfflineHours: 24}, got)

	got = NormalizeLimits(map[string]any{"maxDevices": math.Inf(1), "maxOfflineHours": math.NaN()})
	assert.Equal(t, 1, got.MaxDevices)
	assert.Equal(t, 24, got.MaxOfflineHours)
}

func TestNormalizeLimitsPrecedence(t *testing.T) {
	got := NormalizeLimits(map[string]any{
		"limits":      map[string]any{"maxDevices": 4.0},
		"maxDevices":  9.0,
		"maxBranches": json.Number("3"),
		"maxUsuarios": 150.0,
	})
	assert.Equal(t, 4, got.MaxDevices)
	assert.Equal(t, 3, got.MaxBranches)
	assert.Equal(t, 150, got.MaxMembers)

	got = NormalizeLimits(map[string]any{"maxMembers": 20.0, "maxUsuarios": 150.0})
	assert.Equal(t, 20, got.MaxMembers)
}

func TestNormalizeLimitsIsIdempotent(t *testing.T) {
	inputs := []map[string]any{
		{},
		{"limits": map[string]any{"maxMembers": 12.7, "maxDevices": -1.0, "maxOfflineHours": 500.0}},
		{"maxUsuarios": "80", "maxBranches": math.NaN()},
	}
	for _, in := range inputs {
		once := NormalizeLimits(in)
		twice := NormalizeLimits(map[string]any{"limits": once.Map()})
		assert.Equal(t, once, twice)
	}
}

func TestNormalizePlanLegacyShape(t *testing.T) {
	raw := map[string]any{
		"nombre":       "Plan Pro",
		"precio":       json.Number("15999.99"),
		"duracionDias": 90.0,
		"maxUsuarios":  3.0,
		"tier":         "pro",
		"modulos":      []any{"reports", "store"},
	}

	p := Normalize("pro", raw, 0)
	require.Equal(t, "pro", p.ID)
	assert.Equal(t, "Plan Pro", p.Name)
	assert.Equal(t, "pro", p.Tier)
	assert.Equal(t, 90, p.DurationDays)
	assert.Equal(t, int64(1599999), p.PriceCents)
	assert.Equal(t, 3, p.MaxUsers)
	assert.Equal(t, 3, p.SeatLimit())
	assert.Equal(t, map[string]bool{"reports": true, "store": true}, p.Modules)
}

func TestNormalizePlanDefaults(t *testing.T) {
	p := Normalize("basic", map[string]any{"modules": map[string]any{"members": true, "store": false}}, 45)
	assert.Equal(t, "basic", p.Name)
	assert.Equal(t, DefaultTier, p.Tier)
	assert.Equal(t, 45, p.DurationDays)
	assert.Zero(t, p.PriceCents)
	assert.Equal(t, map[string]bool{"members": true}, p.EnabledModules())
}

func TestNormalizePlanClampsHugeNumbers(t *testing.T) {
	p := Normalize("odd", map[string]any{"durationDays": 1e19, "maxUsers": 1e19}, 0)
	assert.Equal(t, 36500, p.DurationDays)
	assert.Equal(t, math.MaxInt32, p.MaxUsers)

	p = Normalize("odd", map[string]any{"duracion": 90.9}, 0)
	assert.Equal(t, 90, p.DurationDays)
}
