package verification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts milestone transitions and the value they release.
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec
	ValueUnlockedCents prometheus.Counter
}

// NewMetrics creates and registers the verification metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_milestone_transitions_total",
			Help: "Milestone state transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		ValueUnlockedCents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_value_unlocked_cents_total",
			Help: "Monetary value released by completed milestones.",
		}),
	}
}

// NewMetricsWith registers against a caller-supplied registry, for tests.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heirloom_milestone_transitions_total",
			Help: "Milestone state transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		ValueUnlockedCents: factory.NewCounter(prometheus.CounterOpts{
			Name: "heirloom_value_unlocked_cents_total",
			Help: "Monetary value released by completed milestones.",
		}),
	}
}

func (m *Metrics) observe(action, outcome string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) unlocked(cents int64) {
	if m == nil || cents <= 0 {
		return
	}
	m.ValueUnlockedCents.Add(float64(cents))
}
