package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsHighCardinalityLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tenant_id", "gym-1"),
		attribute.String("payment_id", "123"),
		attribute.String("outcome", "applied"),
		attribute.String("kind", "license"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "tenant_id" || attr.Key == "payment_id" {
			t.Fatalf("expected %s to be dropped", attr.Key)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordPaymentOutcome(ctx, "license", "applied")
	m.RecordLicenseTransition(ctx, "license_activated", "pro")
	m.RecordReferralCredit(ctx, "credited")
	m.RecordOrderSettlement(ctx, "paid")
	m.RecordRevenue(ctx, "storeSale", "online", 100)
	m.RecordNotificationFailure(ctx, "email", "license_activated")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "licensehub"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordPaymentOutcome(context.Background(), "order", "applied")
}
