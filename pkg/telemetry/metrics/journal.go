package metrics

import (
	"time"

	"mercator-hq/pricerelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// JournalMetrics tracks session journal writes and retention.
type JournalMetrics struct {
	writes        *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
	dropped       prometheus.Counter
	pruned        prometheus.Counter
}

// NewJournalMetrics creates and registers the journal metrics.
func NewJournalMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *JournalMetrics {
	m := &JournalMetrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_writes_total",
				Help:      "Session records written by backend and status",
			},
			[]string{"backend", "status"},
		),
		writeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_write_duration_seconds",
				Help:      "Journal write latency in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"backend"},
		),
		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_dropped_total",
				Help:      "Session records dropped because the recorder buffer was full",
			},
		),
		pruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_pruned_total",
				Help:      "Session records removed by retention",
			},
		),
	}

	registry.MustRegister(m.writes, m.writeDuration, m.dropped, m.pruned)

	return m
}

// RecordWrite records one journal write.
func (m *JournalMetrics) RecordWrite(backend, status string, d time.Duration) {
	m.writes.WithLabelValues(backend, status).Inc()
	m.writeDuration.WithLabelValues(backend).Observe(d.Seconds())
}
