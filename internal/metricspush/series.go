package metricspush

import (
	"math"
	"sort"
	"strconv"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
)

// toTimeSeries renders one sample per series. Histograms and summaries are
// sent as their _count and _sum series, plus one _bucket series per bound.
// External labels fill in labels a metric does not set itself.
func toTimeSeries(families []*dto.MetricFamily, external map[string]string, timestampMs int64) []prompb.TimeSeries {
	var out []prompb.TimeSeries
	add := func(name string, metric *dto.Metric, value float64, extra ...prompb.Label) {
		if math.IsNaN(value) {
			return
		}
		out = append(out, prompb.TimeSeries{
			Labels:  seriesLabels(name, metric, external, extra...),
			Samples: []prompb.Sample{{Value: value, Timestamp: timestampMs}},
		})
	}

	for _, family := range families {
		name := family.GetName()
		for _, metric := range family.GetMetric() {
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				add(name, metric, metric.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				add(name, metric, metric.GetGauge().GetValue())
			case dto.MetricType_UNTYPED:
				add(name, metric, metric.GetUntyped().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := metric.GetHistogram()
				add(name+"_count", metric, float64(h.GetSampleCount()))
				add(name+"_sum", metric, h.GetSampleSum())
				for _, bucket := range h.GetBucket() {
					if math.IsInf(bucket.GetUpperBound(), 1) {
						continue
					}
					add(name+"_bucket", metric, float64(bucket.GetCumulativeCount()),
						prompb.Label{Name: "le", Value: strconv.FormatFloat(bucket.GetUpperBound(), 'g', -1, 64)})
				}
				add(name+"_bucket", metric, float64(h.GetSampleCount()), prompb.Label{Name: "le", Value: "+Inf"})
			case dto.MetricType_SUMMARY:
				sm := metric.GetSummary()
				add(name+"_count", metric, float64(sm.GetSampleCount()))
				add(name+"_sum", metric, sm.GetSampleSum())
			}
		}
	}
	return out
}

func seriesLabels(name string, metric *dto.Metric, external map[string]string, extra ...prompb.Label) []prompb.Label {
	labels := make([]prompb.Label, 0, len(metric.GetLabel())+len(external)+len(extra)+1)
	seen := make(map[string]struct{}, cap(labels))
	push := func(label prompb.Label) {
		if _, ok := seen[label.Name]; ok || label.Value == "" {
			return
		}
		seen[label.Name] = struct{}{}
		labels = append(labels, label)
	}

	push(prompb.Label{Name: "__name__", Value: name})
	for _, label := range extra {
		push(label)
	}
	for _, pair := range metric.GetLabel() {
		push(prompb.Label{Name: pair.GetName(), Value: pair.GetValue()})
	}
	for key, value := range external {
		push(prompb.Label{Name: key, Value: value})
	}

	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return labels
}
