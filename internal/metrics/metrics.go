// Package metrics provides Prometheus instrumentation for the query runner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all runner metrics.
	MetricsNamespace = "findable"

	// MetricsSubsystem is the subsystem for runner metrics.
	MetricsSubsystem = "runner"
)

// Metrics holds all Prometheus metrics for the query runner.
type Metrics struct {
	// Session metrics
	SessionsProcessedTotal *prometheus.CounterVec
	SessionDurationSeconds prometheus.Histogram

	// Attempt metrics
	AttemptsTotal          *prometheus.CounterVec
	AttemptDurationSeconds *prometheus.HistogramVec

	// Queue metrics
	QueuePending  prometheus.Gauge
	QueueInFlight prometheus.Gauge
}

// NewMetrics creates and registers all runner metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		SessionsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "sessions_processed_total",
				Help:      "Total number of sessions processed, by terminal status",
			},
			[]string{"status"},
		),
		SessionDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "session_duration_seconds",
				Help:      "Wall-clock duration of one session's processing pass",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "attempts_total",
				Help:      "Total number of (query, model, run) attempts, by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		AttemptDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "attempt_duration_seconds",
				Help:      "Wall-clock duration of one model call",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"model"},
		),
		QueuePending: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "queue_pending",
				Help:      "Approximate number of sessions waiting in the queue",
			},
		),
		QueueInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "queue_in_flight",
				Help:      "Approximate number of sessions claimed by workers",
			},
		),
	}
}
