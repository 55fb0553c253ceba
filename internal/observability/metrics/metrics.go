package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
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
	webhookEvents  metric.Int64Counter
	paymentRecords metric.Int64Counter
	notifications  metric.Int64Counter
	dispatchQueued metric.Int64UpDownCounter

	pipeline *pipelineCounters
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
	return newMetrics(cfg, provider, prometheus.DefaultRegisterer)
}

func newMetrics(cfg Config, provider metric.MeterProvider, registerer prometheus.Registerer) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "rentpay"
	}
	meter := provider.Meter(name)

	webhookEvents, err := meter.Int64Counter("rentpay_webhook_events_total",
		metric.WithDescription("Verified webhook events by type and outcome."))
	if err != nil {
		return nil, err
	}
	paymentRecords, err := meter.Int64Counter("rentpay_payment_records_total",
		metric.WithDescription("Payment record merges by collection and outcome."))
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("rentpay_notifications_total",
		metric.WithDescription("Tenant notification attempts by outcome."))
	if err != nil {
		return nil, err
	}
	dispatchQueued, err := meter.Int64UpDownCounter("rentpay_dispatch_queued",
		metric.WithDescription("Record tasks waiting in the in-process queue."))
	if err != nil {
		return nil, err
	}

	pipeline, err := newPipelineCounters(registerer)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookEvents:  webhookEvents,
		paymentRecords: paymentRecords,
		notifications:  notifications,
		dispatchQueued: dispatchQueued,
		pipeline:       pipeline,
	}, nil
}

// RecordWebhookEvent counts a verified webhook event.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", "stripe"),
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.pipeline.webhookEvent(eventType, outcome)
}

// RecordPaymentRecord counts a merge into a payment collection.
func (m *Metrics) RecordPaymentRecord(ctx context.Context, collection, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("collection", strings.TrimSpace(collection)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.paymentRecords.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.pipeline.paymentRecord(collection, outcome)
}

// RecordNotification counts a tenant email attempt.
func (m *Metrics) RecordNotification(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.pipeline.notification(outcome)
}

// AddDispatchQueued tracks queue depth; delta is +1 on enqueue and -1 on pickup.
func (m *Metrics) AddDispatchQueued(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.dispatchQueued.Add(ctx, delta)
	m.pipeline.queued(delta)
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
	"provider":    {},
	"event_type":  {},
	"collection":  {},
	"outcome":     {},
	"status_code": {},
	"route":       {},
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
