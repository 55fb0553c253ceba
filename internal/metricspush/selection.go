package metricspush

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Selection keeps the metric families whose names start with one of its
// prefixes. An empty selection keeps nothing.
type Selection struct {
	prefixes []string
}

func NewSelection(prefixes ...string) Selection {
	out := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			out = append(out, prefix)
		}
	}
	return Selection{prefixes: out}
}

func (s Selection) Matches(name string) bool {
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Apply drops unselected families and families without samples.
func (s Selection) Apply(families []*dto.MetricFamily) []*dto.MetricFamily {
	out := make([]*dto.MetricFamily, 0, len(families))
	for _, family := range families {
		if len(family.GetMetric()) == 0 || !s.Matches(family.GetName()) {
			continue
		}
		out = append(out, family)
	}
	return out
}

// Gatherer wraps g so it only yields the selected families.
func (s Selection) Gatherer(g prometheus.Gatherer) prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		families, err := g.Gather()
		if err != nil {
			return nil, err
		}
		return s.Apply(families), nil
	})
}
