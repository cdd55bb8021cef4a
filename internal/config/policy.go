package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy holds business knobs that operators may change without a redeploy.
type Policy struct {
	License  LicensePolicy  `mapstructure:"license"`
	Referral ReferralPolicy `mapstructure:"referral"`
	Timezone string         `mapstructure:"timezone"`
	PlanTTL  time.Duration  `mapstructure:"planCacheTTL"`
}

type LicensePolicy struct {
	GraceHours   int `mapstructure:"graceHours"`
	DurationDays int `mapstructure:"durationDays"`
}

type ReferralPolicy struct {
	TierStep          int   `mapstructure:"tierStep"`
	TierCap           int   `mapstructure:"tierCap"`
	PointsPerReferral int64 `mapstructure:"pointsPerReferral"`
}

func DefaultPolicy() Policy {
	return Policy{
		License: LicensePolicy{
			GraceHours:   72,
			DurationDays: 30,
		},
		Referral: ReferralPolicy{
			TierStep:          4,
			TierCap:           20,
			PointsPerReferral: 100,
		},
		Timezone: "America/Argentina/Buenos_Aires",
		PlanTTL:  5 * time.Minute,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.policy")

	v := viper.New()
	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/licensehub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LICENSEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("policy.license.graceHours", defaults.License.GraceHours)
	v.SetDefault("policy.license.durationDays", defaults.License.DurationDays)
	v.SetDefault("policy.referral.tierStep", defaults.Referral.TierStep)
	v.SetDefault("policy.referral.tierCap", defaults.Referral.TierCap)
	v.SetDefault("policy.referral.pointsPerReferral", defaults.Referral.PointsPerReferral)
	v.SetDefault("policy.timezone", defaults.Timezone)
	v.SetDefault("policy.planCacheTTL", defaults.PlanTTL)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var p Policy
	if err := v.UnmarshalKey("policy", &p); err != nil {
		return nil, err
	}
	if err := validatePolicy(p); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(p)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Policy
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	p, ok := h.current.Load().(Policy)
	if !ok {
		return DefaultPolicy()
	}
	return p
}

func validatePolicy(p Policy) error {
	if p.License.GraceHours < 0 {
		return errors.New("policy.license.graceHours cannot be negative")
	}
	if p.License.DurationDays <= 0 {
		return errors.New("policy.license.durationDays must be positive")
	}
	if p.Referral.TierStep < 0 || p.Referral.TierCap < 0 {
		return errors.New("policy.referral tier settings cannot be negative")
	}
	if p.Referral.PointsPerReferral < 0 {
		return errors.New("policy.referral.pointsPerReferral cannot be negative")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(p.Timezone)); err != nil {
		return errors.New("policy.timezone is not a valid IANA zone")
	}
	return nil
}
