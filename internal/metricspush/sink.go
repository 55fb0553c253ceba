package metricspush

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	obstracing "github.com/smallbiznis/rentpay/internal/observability/tracing"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	ExporterRemoteWrite = "prometheus_remote_write"
	ExporterPushgateway = "prometheus_pushgateway"

	sendTimeout = 5 * time.Second
)

// Snapshot is one gathered and selected view of the registry.
type Snapshot struct {
	Families []*dto.MetricFamily
	At       time.Time
}

// Sink delivers a snapshot to a remote collector.
type Sink interface {
	Send(ctx context.Context, snap Snapshot) error
}

// RemoteWriteSink posts snapshots to a Prometheus remote_write endpoint.
type RemoteWriteSink struct {
	endpoint string
	token    string
	labels   map[string]string
	client   *http.Client
}

func NewRemoteWriteSink(endpoint, token string, labels map[string]string) *RemoteWriteSink {
	return &RemoteWriteSink{
		endpoint: endpoint,
		token:    token,
		labels:   labels,
		client:   obstracing.WrapHTTPClient(&http.Client{Timeout: sendTimeout}),
	}
}

func (s *RemoteWriteSink) Send(ctx context.Context, snap Snapshot) error {
	series := toTimeSeries(snap.Families, s.labels, snap.At.UnixMilli())
	if len(series) == 0 {
		return nil
	}
	body, err := proto.Marshal(protoadapt.MessageV2Of(&prompb.WriteRequest{Timeseries: series}))
	if err != nil {
		return fmt.Errorf("encode write request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(snappy.Encode(nil, body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote write: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("remote write: status %d", resp.StatusCode)
	}
	return nil
}

// PushgatewaySink replaces the service's group on a Pushgateway with each snapshot.
type PushgatewaySink struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewaySink(endpoint, job string, grouping map[string]string) *PushgatewaySink {
	return &PushgatewaySink{endpoint: endpoint, job: job, grouping: grouping}
}

func (s *PushgatewaySink) Send(ctx context.Context, snap Snapshot) error {
	if s.job == "" {
		return errors.New("pushgateway job is required")
	}
	families := snap.Families
	pusher := push.New(s.endpoint, s.job).Gatherer(prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		return families, nil
	}))
	for key, value := range s.grouping {
		if key != "" && value != "" {
			pusher = pusher.Grouping(key, value)
		}
	}
	return pusher.PushContext(ctx)
}
