package domain

import "strings"

// ClampTier keeps a tier inside the advertised discount range.
func ClampTier(tier, cap int) int {
	if cap <= 0 || cap > MaxDiscountTier {
		cap = MaxDiscountTier
	}
	if tier < MinDiscountTier {
		return MinDiscountTier
	}
	if tier > cap {
		return cap
	}
	return tier
}

// ValidTenantID rejects ids that cannot be tenant keys.
func ValidTenantID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	if strings.TrimSpace(id) != id {
		return false
	}
	return !strings.ContainsAny(id, "/|\\ \t\n")
}
