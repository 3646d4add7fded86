package metrics

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector keeps in-process request statistics for the admin stats endpoint and mirrors
// them into Prometheus.
type Collector struct {
	mu            sync.RWMutex
	totalRequests uint64
	totalErrors   uint64
	rateLimited   uint64
	statusCounts  map[int]uint64

	// Sliding window of the most recent latencies.
	latencies  []time.Duration
	next       int
	maxSamples int

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCollector registers the HTTP metrics on reg. A nil reg keeps them unregistered.
func NewCollector(maxSamples int, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		statusCounts: make(map[int]uint64),
		latencies:    make([]time.Duration, 0, maxSamples),
		maxSamples:   maxSamples,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialplane",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "socialplane",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Record counts one finished request. route should be the route pattern, not the raw path.
func (c *Collector) Record(method, route string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.duration.WithLabelValues(method, route).Observe(duration.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	if statusCode >= 400 {
		c.totalErrors++
	}
	if statusCode == 429 {
		c.rateLimited++
	}
	c.statusCounts[statusCode]++

	if c.maxSamples <= 0 {
		return
	}
	if len(c.latencies) < c.maxSamples {
		c.latencies = append(c.latencies, duration)
		return
	}
	c.latencies[c.next] = duration
	c.next = (c.next + 1) % c.maxSamples
}

type Stats struct {
	TotalRequests uint64         `json:"totalRequests"`
	TotalErrors   uint64         `json:"totalErrors"`
	RateLimited   uint64         `json:"rateLimited"`
	ErrorRate     float64        `json:"errorRate"`
	P50Latency    string         `json:"p50Latency"`
	P95Latency    string         `json:"p95Latency"`
	P99Latency    string         `json:"p99Latency"`
	StatusCounts  map[int]uint64 `json:"statusCounts"`
}

func (c *Collector) Stats() Stats {
	c.mu.RLock()
	sorted := slices.Clone(c.latencies)
	s := Stats{
		TotalRequests: c.totalRequests,
		TotalErrors:   c.totalErrors,
		RateLimited:   c.rateLimited,
		StatusCounts:  maps.Clone(c.statusCounts),
	}
	c.mu.RUnlock()

	slices.Sort(sorted)
	s.P50Latency = percentile(sorted, 0.50).String()
	s.P95Latency = percentile(sorted, 0.95).String()
	s.P99Latency = percentile(sorted, 0.99).String()

	if s.TotalRequests > 0 {
		s.ErrorRate = float64(s.TotalErrors) / float64(s.TotalRequests)
	}
	return s
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p * float64(len(sorted))))
	return sorted[min(max(rank-1, 0), len(sorted)-1)]
}
