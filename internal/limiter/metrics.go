package limiter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision outcomes recorded by Metrics.
const (
	outcomeAllowed    = "allowed"
	outcomeDenied     = "denied"
	outcomeFailOpen   = "fail_open"
	outcomeFailClosed = "fail_closed"
)

// Metrics holds the limiter's Prometheus collectors.
type Metrics struct {
	decisions     *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	storeDuration prometheus.Histogram
}

// NewMetrics registers the limiter collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socialplane_ratelimit_decisions_total",
			Help: "Rate limit decisions by bucket and outcome",
		}, []string{"bucket", "outcome"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socialplane_ratelimit_store_errors_total",
			Help: "Window store failures by bucket",
		}, []string{"bucket"}),
		storeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialplane_ratelimit_store_duration_seconds",
			Help:    "Latency of a single window store hit",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
	}
}

func (m *Metrics) decision(bucket, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(bucket, outcome).Inc()
}

func (m *Metrics) storeError(bucket string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(bucket).Inc()
}

func (m *Metrics) observeStore(seconds float64) {
	if m == nil {
		return
	}
	m.storeDuration.Observe(seconds)
}
