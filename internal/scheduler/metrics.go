package scheduler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the revalidation scheduler.
type Metrics struct {
	FetchesTotal   *prometheus.CounterVec
	CoalescedTotal *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	LiveResources  prometheus.Gauge
}

// NewMetrics registers the scheduler metrics once per process.
//
// Metrics:
//   - roadwatch_scheduler_fetches_total{resource,result} - fetches by outcome (ok, error, discarded)
//   - roadwatch_scheduler_coalesced_total{resource} - revalidations that shared an in-flight fetch
//   - roadwatch_scheduler_fetch_duration_seconds{resource} - fetch latency
//   - roadwatch_scheduler_live_resources - keys with at least one subscriber
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			FetchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "roadwatch_scheduler_fetches_total",
					Help: "Total number of resource fetches by result",
				},
				[]string{"resource", "result"},
			),

			CoalescedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "roadwatch_scheduler_coalesced_total",
					Help: "Total number of revalidations that shared an in-flight fetch",
				},
				[]string{"resource"},
			),

			FetchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "roadwatch_scheduler_fetch_duration_seconds",
					Help:    "Duration of resource fetches in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
				},
				[]string{"resource"},
			),

			LiveResources: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "roadwatch_scheduler_live_resources",
					Help: "Current number of subscribed resource keys",
				},
			),
		}
	})

	return globalMetrics
}

func (m *Metrics) recordFetch(key Key, result string, seconds float64) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(key.Class(), result).Inc()
	m.FetchDuration.WithLabelValues(key.Class()).Observe(seconds)
}

func (m *Metrics) recordCoalesced(key Key) {
	if m == nil {
		return
	}
	m.CoalescedTotal.WithLabelValues(key.Class()).Inc()
}

func (m *Metrics) setLive(n int) {
	if m == nil {
		return
	}
	m.LiveResources.Set(float64(n))
}
