// Package notification fans out post-commit events to best-effort sinks.
package notification

import (
	"context"
	"fmt"
	"time"
)

const (
	TypeLicenseActivated = "license_activated"
	TypeLicenseRenewed   = "license_renewed"
	TypeLicenseUpgraded  = "license_upgraded"
	TypeReferralCredit   = "referral_credit"
	TypeOrderPaid        = "order_paid"
)

const (
	SourceLicense  = "license"
	SourceReferral = "referral"
	SourceStore    = "store"
)

// Event is addressed to one tenant. ID is stable per payment so sinks can
// deduplicate redelivered events.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	TenantID   string         `json:"tenantId"`
	PaymentID  string         `json:"paymentId"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

// LicenseEventType maps a license transition onto a notification type.
func LicenseEventType(transition string) string {
	switch transition {
	case "renewed":
		return TypeLicenseRenewed
	case "upgraded":
		return TypeLicenseUpgraded
	default:
		return TypeLicenseActivated
	}
}

func LicenseEventID(paymentID string) string  { return "lic-" + paymentID }
func ReferralEventID(paymentID string) string { return "ref-" + paymentID }
func OrderEventID(paymentID string) string    { return "ord-" + paymentID }

func LicenseTitle(eventType, planName string) string {
	switch eventType {
	case TypeLicenseUpgraded:
		return "Plan mejorado: " + planName
	case TypeLicenseRenewed:
		return "Licencia renovada: " + planName
	default:
		return "Licencia activada: " + planName
	}
}

func LicenseBody(planName string, start, end time.Time, discountPercent int, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	body := fmt.Sprintf("Plan %s vigente del %s al %s.", planName, start.In(loc).Format("02/01/2006"), end.In(loc).Format("02/01/2006"))
	if discountPercent > 0 {
		body += fmt.Sprintf(" Descuento aplicado: %d%%.", discountPercent)
	}
	return body
}
