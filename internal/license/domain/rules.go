package domain

import (
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Classify picks the transition for a payment against the previous record.
func Classify(prev *License, planID string) string {
	if prev == nil || prev.Status != StatusActive {
		return EventActivated
	}
	if prev.PlanID != planID {
		return EventUpgraded
	}
	return EventRenewed
}

// DiscountPercent is round((1 - paid/original) * 100), never negative.
func DiscountPercent(paidCents, originalCents int64) int {
	if originalCents <= 0 {
		return 0
	}
	ratio := decimal.NewFromInt(paidCents).Div(decimal.NewFromInt(originalCents))
	pct := decimal.NewFromInt(1).Sub(ratio).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if pct < 0 {
		return 0
	}
	return int(pct)
}

func NewLicenseID(planID string) string {
	return planID + "-" + ulid.Make().String()
}
