package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	KindLicense = "license"
	KindOrder   = "order"
)

// Reference is the external reference echoed back by the provider:
// gym:{tenant}|plan:{plan}|ref:{code}|disc:{pct} or gym:{tenant}|order:{id}.
type Reference struct {
	TenantID        string
	PlanID          string
	OrderID         string
	ReferralCode    string
	DiscountPercent *int
}

func (r Reference) Kind() string {
	if r.OrderID != "" {
		return KindOrder
	}
	return KindLicense
}

// ParseReference fails closed on a missing tenant or a reference that names
// neither a plan nor an order.
func ParseReference(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reference{}, ErrBadReference
	}

	var ref Reference
	for _, part := range strings.Split(raw, "|") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "gym", "tenant":
			ref.TenantID = value
		case "plan":
			ref.PlanID = value
		case "order":
			ref.OrderID = value
		case "ref":
			ref.ReferralCode = value
		case "disc":
			if value == "" {
				continue
			}
			pct, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			ref.DiscountPercent = &pct
		}
	}

	if !validID(ref.TenantID) {
		return Reference{}, fmt.Errorf("%w: tenant", ErrBadReference)
	}
	if ref.PlanID == "" && ref.OrderID == "" {
		return Reference{}, fmt.Errorf("%w: plan or order", ErrBadReference)
	}
	if ref.PlanID != "" && !validID(ref.PlanID) {
		return Reference{}, fmt.Errorf("%w: plan", ErrBadReference)
	}
	if ref.OrderID != "" && !validID(ref.OrderID) {
		return Reference{}, fmt.Errorf("%w: order", ErrBadReference)
	}
	return ref, nil
}

// Encode renders the reference in the format ParseReference reads.
func (r Reference) Encode() string {
	if r.OrderID != "" {
		return "gym:" + r.TenantID + "|order:" + r.OrderID
	}
	disc := 0
	if r.DiscountPercent != nil {
		disc = *r.DiscountPercent
	}
	return fmt.Sprintf("gym:%s|plan:%s|ref:%s|disc:%d", r.TenantID, r.PlanID, r.ReferralCode, disc)
}

func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	return !strings.ContainsAny(id, "/\\ \t\n:")
}
