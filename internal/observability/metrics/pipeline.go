package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelinePrefix names every payment pipeline series in the Prometheus registry.
const PipelinePrefix = "rentpay_"

// pipelineCounters mirrors the payment instruments into the Prometheus
// registry, which /metrics serves and metricspush forwards.
type pipelineCounters struct {
	webhookEvents  *prometheus.CounterVec
	paymentRecords *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	dispatchQueued prometheus.Gauge
}

func newPipelineCounters(registerer prometheus.Registerer) (*pipelineCounters, error) {
	webhookEvents, err := registerCounterVec(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: PipelinePrefix + "webhook_events_total",
		Help: "Verified webhook events by type and outcome.",
	}, []string{"event_type", "outcome"}))
	if err != nil {
		return nil, err
	}
	paymentRecords, err := registerCounterVec(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: PipelinePrefix + "payment_records_total",
		Help: "Payment record merges by collection and outcome.",
	}, []string{"collection", "outcome"}))
	if err != nil {
		return nil, err
	}
	notifications, err := registerCounterVec(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: PipelinePrefix + "notifications_total",
		Help: "Tenant notification attempts by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	dispatchQueued := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: PipelinePrefix + "dispatch_queued",
		Help: "Record tasks waiting in the in-process queue.",
	})
	if err := registerer.Register(dispatchQueued); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(prometheus.Gauge)
		if !ok {
			return nil, err
		}
		dispatchQueued = existing
	}

	return &pipelineCounters{
		webhookEvents:  webhookEvents,
		paymentRecords: paymentRecords,
		notifications:  notifications,
		dispatchQueued: dispatchQueued,
	}, nil
}

// registerCounterVec reuses a vector already registered under the same name.
func registerCounterVec(registerer prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func (p *pipelineCounters) webhookEvent(eventType, outcome string) {
	if p == nil {
		return
	}
	p.webhookEvents.WithLabelValues(labelValue(eventType), labelValue(outcome)).Inc()
}

func (p *pipelineCounters) paymentRecord(collection, outcome string) {
	if p == nil {
		return
	}
	p.paymentRecords.WithLabelValues(labelValue(collection), labelValue(outcome)).Inc()
}

func (p *pipelineCounters) notification(outcome string) {
	if p == nil {
		return
	}
	p.notifications.WithLabelValues(labelValue(outcome)).Inc()
}

func (p *pipelineCounters) queued(delta int64) {
	if p == nil {
		return
	}
	p.dispatchQueued.Add(float64(delta))
}

func labelValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
