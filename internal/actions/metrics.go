package actions

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for user actions.
type Metrics struct {
	ActionsTotal *prometheus.CounterVec
}

// NewMetrics registers the action metrics once per process.
//
// Metrics:
//   - roadwatch_actions_total{action,outcome} - actions by outcome (succeeded, failed, rejected)
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ActionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "roadwatch_actions_total",
					Help: "Total number of user actions by outcome",
				},
				[]string{"action", "outcome"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) record(action, outcome string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(action, outcome).Inc()
}
