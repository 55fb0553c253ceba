package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/webhook"),
		attribute.String("tenant_email", "a@b.com"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	err := SafeError(errors.New("first line\nsecond line"))
	assert.Equal(t, "first line", err.Error())

	long := SafeError(errors.New(strings.Repeat("x", 500)))
	assert.Len(t, long.Error(), 200)

	assert.Nil(t, SafeError(nil))
}

func TestWrapHTTPClientInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	provider := sdktrace.NewTracerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	ctx, span := provider.Tracer("test").Start(context.Background(), "parent")
	defer span.End()

	client := WrapHTTPClient(&http.Client{Timeout: time.Second})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}
