package ctxlogger

import (
	"context"
	"sync/atomic"

	"github.com/smallbiznis/rentpay/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type eventKey struct{}

type eventRef struct {
	id        string
	eventType string
}

var serviceName atomic.Pointer[string]

// SetServiceName configures the service name added to every log entry.
func SetServiceName(name string) {
	serviceName.Store(&name)
}

// ContextWithEvent annotates the context with the provider event being handled.
func ContextWithEvent(ctx context.Context, eventID, eventType string) context.Context {
	if eventID == "" && eventType == "" {
		return ctx
	}
	return context.WithValue(ctx, eventKey{}, eventRef{id: eventID, eventType: eventType})
}

// FromContext returns a logger enriched with tracing and correlation metadata from context.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches the provided logger using metadata in the context.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.L()
	}
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 6)
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	fields = append(fields, ExtractTrace(ctx)...)

	if namePtr := serviceName.Load(); namePtr != nil && *namePtr != "" {
		fields = append(fields, zap.String("service_name", *namePtr))
	}

	if ref, ok := ctx.Value(eventKey{}).(eventRef); ok {
		fields = append(fields,
			zap.String("event_id", ref.id),
			zap.String("event_type", ref.eventType),
		)
	}

	return base.With(fields...)
}

// ExtractTrace pulls tracing identifiers from the context span.
func ExtractTrace(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
