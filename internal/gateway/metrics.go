package gateway

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Call metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Recovery metrics
	retriesTotal   *prometheus.CounterVec
	rotationsTotal *prometheus.CounterVec

	// Polling metrics
	pollsTotal *prometheus.CounterVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered atomic.Bool
)

// Metrics records gateway call outcomes. It is a no-op until InitMetrics
// has been called.
type Metrics struct{}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// InitMetrics registers all gateway metrics with the default registry.
// Safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apimprobe_requests_total",
				Help: "Total number of gateway calls by tenant and status",
			},
			[]string{"tenant", "status"},
		)

		requestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apimprobe_request_duration_seconds",
				Help:    "Duration of gateway calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"tenant"},
		)

		retriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apimprobe_retries_total",
				Help: "Total number of retried gateway calls",
			},
			[]string{"tenant", "reason"},
		)

		rotationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apimprobe_rotations_total",
				Help: "Total number of credential rotations attempted after a 401",
			},
			[]string{"tenant", "result"},
		)

		pollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apimprobe_polls_total",
				Help: "Total number of operation status polls by outcome",
			},
			[]string{"tenant", "outcome"},
		)

		metricsRegistered.Store(true)
	})
}

// RecordRequest records one completed call.
func (m *Metrics) RecordRequest(tenant, status string, durationSeconds float64) {
	if m == nil || !metricsRegistered.Load() {
		return
	}
	if requestsTotal != nil {
		requestsTotal.WithLabelValues(tenant, status).Inc()
	}
	if requestDuration != nil {
		requestDuration.WithLabelValues(tenant).Observe(durationSeconds)
	}
}

// RecordRetry records a retry caused by reason ("transport" or "rate_limited").
func (m *Metrics) RecordRetry(tenant, reason string) {
	if m == nil || !metricsRegistered.Load() || retriesTotal == nil {
		return
	}
	retriesTotal.WithLabelValues(tenant, reason).Inc()
}

// RecordRotation records a rotation attempt with result "success" or "failure".
func (m *Metrics) RecordRotation(tenant, result string) {
	if m == nil || !metricsRegistered.Load() || rotationsTotal == nil {
		return
	}
	rotationsTotal.WithLabelValues(tenant, result).Inc()
}

// RecordPoll records one poll with outcome "pending", "succeeded", "failed"
// or "timeout".
func (m *Metrics) RecordPoll(tenant, outcome string) {
	if m == nil || !metricsRegistered.Load() || pollsTotal == nil {
		return
	}
	pollsTotal.WithLabelValues(tenant, outcome).Inc()
}

// GetRequestsTotal returns the request counter for testing.
func GetRequestsTotal() *prometheus.CounterVec {
	return requestsTotal
}

// GetRequestDuration returns the request duration histogram for testing.
func GetRequestDuration() *prometheus.HistogramVec {
	return requestDuration
}

// GetRetriesTotal returns the retry counter for testing.
func GetRetriesTotal() *prometheus.CounterVec {
	return retriesTotal
}

// GetRotationsTotal returns the rotation counter for testing.
func GetRotationsTotal() *prometheus.CounterVec {
	return rotationsTotal
}

// GetPollsTotal returns the poll counter for testing.
func GetPollsTotal() *prometheus.CounterVec {
	return pollsTotal
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered.Load()
}
