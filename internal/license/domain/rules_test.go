package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		prev *License
		plan string
		want string
	}{
		{"no previous record", nil, "basic", EventActivated},
		{"inactive previous record", &License{Status: StatusInactive, PlanID: "basic"}, "basic", EventActivated},
		{"same plan", &License{Status: StatusActive, PlanID: "basic"}, "basic", EventRenewed},
		{"different plan", &License{Status: StatusActive, PlanID: "basic"}, "pro", EventUpgraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.prev, tt.plan))
		})
	}
}

func TestDiscountPercent(t *testing.T) {
	assert.Equal(t, 0, DiscountPercent(1000, 1000))
	assert.Equal(t, 20, DiscountPercent(800, 1000))
	assert.Equal(t, 33, DiscountPercent(6667, 10000))
	assert.Equal(t, 0, DiscountPercent(1500, 1000))
	assert.Equal(t, 0, DiscountPercent(500, 0))
	assert.Equal(t, 100, DiscountPercent(0, 1000))
}

func TestNewLicenseID(t *testing.T) {
	a := NewLicenseID("basic")
	b := NewLicenseID("basic")
	assert.True(t, strings.HasPrefix(a, "basic-"))
	assert.NotEqual(t, a, b)
}
