package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	completionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_completion_requests_total",
			Help: "Total number of completion backend calls",
		},
		[]string{"provider", "purpose", "status"},
	)

	completionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_completion_duration_seconds",
			Help:    "Completion backend call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "purpose"},
	)

	summariesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_summaries_total",
			Help: "Total number of summarization passes by outcome",
		},
		[]string{"outcome"},
	)

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_turns_total",
			Help: "Total number of conversation turns appended",
		},
		[]string{"role"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "advisor_active_sessions",
			Help: "Number of live advisory sessions",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the advisor metrics with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			completionRequestsTotal,
			completionDuration,
			summariesTotal,
			turnsTotal,
			activeSessions,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordCompletion records a completion backend call.
func RecordCompletion(provider, purpose, status string, duration time.Duration) {
	completionRequestsTotal.WithLabelValues(provider, purpose, status).Inc()
	completionDuration.WithLabelValues(provider, purpose).Observe(duration.Seconds())
}

// RecordSummary records the outcome of a summarization pass: "refreshed" or "kept".
func RecordSummary(outcome string) {
	summariesTotal.WithLabelValues(outcome).Inc()
}

// RecordTurn counts an appended turn.
func RecordTurn(role string) {
	turnsTotal.WithLabelValues(role).Inc()
}

// SessionOpened increments the live session gauge.
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the live session gauge.
func SessionClosed() {
	activeSessions.Dec()
}
