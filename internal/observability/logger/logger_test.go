package logger

import (
	"context"
	"testing"

	obscontext "github.com/fitsuite/licensehub/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithTenantID(ctx, "gym-42")
	ctx = obscontext.WithPaymentID(ctx, "pay-9")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" {
		t.Fatalf("expected request_id, got %v", fields["request_id"])
	}
	if fields["tenant_id"] != "gym-42" {
		t.Fatalf("expected tenant_id, got %v", fields["tenant_id"])
	}
	if fields["payment_id"] != "pay-9" {
		t.Fatalf("expected payment_id, got %v", fields["payment_id"])
	}
}

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"select * from licenses":                      "SELECT",
		"  INSERT INTO processed_payments VALUES (1)": "INSERT",
		"UPDATE licenses SET revision = revision + 1": "UPDATE",
		"": "UNKNOWN",
	}
	for sql, want := range cases {
		if got := operationFromSQL(sql); got != want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", sql, got, want)
		}
	}
}
