// Package metrics provides Prometheus metrics for ingest runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "subreddit_ingest"

// Metrics holds the ingest collectors registered on one registry
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	ItemsTotal      *prometheus.CounterVec
	JSONErrorsTotal *prometheus.CounterVec
	LastSuccess     prometheus.Gauge
}

// New registers the ingest collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// RunsTotal counts runs by outcome.
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of ingest runs",
			},
			[]string{"status"},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of ingest runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		// ItemsTotal counts listing entries by what happened to them.
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Total number of listing entries processed",
			},
			[]string{"outcome"},
		),

		JSONErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "json_errors_total",
				Help:      "Total number of malformed listing bodies",
			},
			[]string{"kind"},
		),

		LastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last run that completed without error",
			},
		),
	}
}

// RunFinished records a run outcome and its duration
func (m *Metrics) RunFinished(status string, duration time.Duration, at time.Time) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())
	if status == "ok" {
		m.LastSuccess.Set(float64(at.Unix()))
	}
}

// Items records n entries with the given outcome
func (m *Metrics) Items(outcome string, n int) {
	if n <= 0 {
		return
	}
	m.ItemsTotal.WithLabelValues(outcome).Add(float64(n))
}

// JSONError records a malformed listing body
func (m *Metrics) JSONError(kind string) {
	m.JSONErrorsTotal.WithLabelValues(kind).Inc()
}
