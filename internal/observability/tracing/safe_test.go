package tracing

import (
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("payer_email", "a@b.c"),
		attribute.String("http.route", "/webhook"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
}

func TestSafeErrorRedactsBearerToken(t *testing.T) {
	err := SafeError(errors.New("request failed: Authorization: Bearer APP_USR-123"))
	if strings.Contains(err.Error(), "APP_USR-123") {
		t.Fatalf("token leaked: %s", err)
	}
}
