package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	paymentOutcomes    metric.Int64Counter
	licenseTransitions metric.Int64Counter
	referralCredits    metric.Int64Counter
	orderSettlements   metric.Int64Counter
	revenueCents       metric.Int64Counter
	notifyFailures     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "licensehub"
	}
	meter := provider.Meter(name)

	paymentOutcomes, err := meter.Int64Counter("licensehub_payment_outcomes_total")
	if err != nil {
		return nil, err
	}
	licenseTransitions, err := meter.Int64Counter("licensehub_license_transitions_total")
	if err != nil {
		return nil, err
	}
	referralCredits, err := meter.Int64Counter("licensehub_referral_credits_total")
	if err != nil {
		return nil, err
	}
	orderSettlements, err := meter.Int64Counter("licensehub_order_settlements_total")
	if err != nil {
		return nil, err
	}
	revenueCents, err := meter.Int64Counter("licensehub_revenue_cents_total", metric.WithUnit("{cent}"))
	if err != nil {
		return nil, err
	}
	notifyFailures, err := meter.Int64Counter("licensehub_notification_failures_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		paymentOutcomes:    paymentOutcomes,
		licenseTransitions: licenseTransitions,
		referralCredits:    referralCredits,
		orderSettlements:   orderSettlements,
		revenueCents:       revenueCents,
		notifyFailures:     notifyFailures,
	}, nil
}

// RecordPaymentOutcome counts reconciliation results (applied, already_processed, ...).
func (m *Metrics) RecordPaymentOutcome(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.paymentOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordLicenseTransition(ctx context.Context, eventType, tier string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("tier", strings.TrimSpace(tier)),
	)
	m.licenseTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordReferralCredit(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.referralCredits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordOrderSettlement(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.orderSettlements.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRevenue adds settled money, in cents, per rollup category and medium.
func (m *Metrics) RecordRevenue(ctx context.Context, category, medium string, cents int64) {
	if m == nil || cents <= 0 {
		return
	}
	attrs := FilterAttributes(
		attribute.String("category", strings.TrimSpace(category)),
		attribute.String("medium", strings.TrimSpace(medium)),
	)
	m.revenueCents.Add(ctx, cents, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordNotificationFailure(ctx context.Context, sink, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("sink", strings.TrimSpace(sink)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.notifyFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":        {},
	"outcome":     {},
	"event_type":  {},
	"tier":        {},
	"category":    {},
	"medium":      {},
	"sink":        {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
