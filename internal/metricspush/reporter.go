package metricspush

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/rentpay/internal/config"
	"go.uber.org/zap"
)

// Reporter forwards the selected payment pipeline series to a Sink.
type Reporter struct {
	gatherer  prometheus.Gatherer
	selection Selection
	sink      Sink
	interval  time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// NewReporter returns nil when forwarding is not configured or the
// configuration is unusable.
func NewReporter(cfg config.Config, gatherer prometheus.Gatherer, log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("metrics.push")

	sink := newSink(cfg, log)
	if sink == nil {
		return nil
	}
	selection := NewSelection(cfg.MetricsPush.Prefixes...)
	if len(selection.prefixes) == 0 {
		log.Warn("metrics push disabled, METRICS_PUSH_PREFIXES selects nothing")
		return nil
	}

	interval := time.Duration(cfg.MetricsPush.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reporter{
		gatherer:  gatherer,
		selection: selection,
		sink:      sink,
		interval:  interval,
		log:       log,
		now:       time.Now,
	}
}

func newSink(cfg config.Config, log *zap.Logger) Sink {
	exporter := strings.ToLower(strings.TrimSpace(cfg.MetricsPush.Exporter))
	if exporter == "" {
		return nil
	}
	endpoint := strings.TrimSpace(cfg.MetricsPush.Endpoint)
	if endpoint == "" {
		log.Warn("metrics push disabled, METRICS_PUSH_ENDPOINT is empty", zap.String("exporter", exporter))
		return nil
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		log.Warn("metrics push disabled, invalid METRICS_PUSH_ENDPOINT", zap.Error(err))
		return nil
	}

	labels := map[string]string{
		"service": strings.TrimSpace(cfg.AppName),
		"env":     strings.TrimSpace(cfg.Environment),
	}
	switch exporter {
	case ExporterRemoteWrite:
		return NewRemoteWriteSink(endpoint, strings.TrimSpace(cfg.MetricsPush.AuthToken), labels)
	case ExporterPushgateway:
		job := labels["service"]
		if job == "" {
			job = "rentpay"
		}
		return NewPushgatewaySink(endpoint, job, map[string]string{"env": labels["env"]})
	default:
		log.Warn("metrics push disabled, unknown exporter", zap.String("exporter", exporter))
		return nil
	}
}

// Report gathers once and sends the selected families. An empty selection
// sends nothing.
func (r *Reporter) Report(ctx context.Context) error {
	if r == nil {
		return nil
	}
	families, err := r.gatherer.Gather()
	if err != nil {
		return err
	}
	selected := r.selection.Apply(families)
	if len(selected) == 0 {
		return nil
	}
	return r.sink.Send(ctx, Snapshot{Families: selected, At: r.now()})
}

// Run reports on the configured interval until ctx ends.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Report(ctx); err != nil {
				r.log.Warn("metrics push failed", zap.Error(err))
			}
		}
	}
}
