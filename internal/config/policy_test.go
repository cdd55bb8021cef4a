package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePolicyDefaults(t *testing.T) {
	assert.NoError(t, validatePolicy(DefaultPolicy()))
}

func TestValidatePolicyRejectsBadValues(t *testing.T) {
	cases := map[string]func(p *Policy){
		"negative grace":    func(p *Policy) { p.License.GraceHours = -1 },
		"zero duration":     func(p *Policy) { p.License.DurationDays = 0 },
		"negative tier cap": func(p *Policy) { p.Referral.TierCap = -4 },
		"negative points":   func(p *Policy) { p.Referral.PointsPerReferral = -1 },
		"unknown timezone":  func(p *Policy) { p.Timezone = "Mars/Olympus_Mons" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultPolicy()
			mutate(&p)
			assert.Error(t, validatePolicy(p))
		})
	}
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *PolicyHolder
	assert.Equal(t, DefaultPolicy(), holder.Get())
}

func TestStaticHolderReturnsStoredPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.Referral.PointsPerReferral = 250
	holder := NewStaticPolicyHolder(p)
	assert.Equal(t, int64(250), holder.Get().Referral.PointsPerReferral)
}
