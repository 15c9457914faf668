package metrics

import (
	"time"

	"mercator-hq/pricerelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks streams passing through the relay proxy.
type RelayMetrics struct {
	streamsActive   prometheus.Gauge
	streamsTotal    *prometheus.CounterVec
	bytesRelayed    prometheus.Counter
	chunksRelayed   prometheus.Counter
	streamDuration  prometheus.Histogram
	upstreamConnect *prometheus.HistogramVec
	cancellations   *prometheus.CounterVec
}

// NewRelayMetrics creates and registers the relay metrics.
func NewRelayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RelayMetrics {
	m := &RelayMetrics{
		streamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "streams_active",
				Help:      "Number of client streams currently being relayed",
			},
		),
		streamsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "streams_total",
				Help:      "Total number of relay streams by outcome",
			},
			[]string{"outcome"},
		),
		bytesRelayed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "bytes_relayed_total",
				Help:      "Total bytes copied from the upstream to clients",
			},
		),
		chunksRelayed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "chunks_relayed_total",
				Help:      "Total upstream chunks written and flushed to clients",
			},
		),
		streamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_duration_seconds",
				Help:      "Lifetime of relayed streams in seconds",
				Buckets:   cfg.StreamDurationBuckets,
			},
		),
		upstreamConnect: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_connect_seconds",
				Help:      "Time until the upstream returned response headers",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"status"},
		),
		cancellations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_cancellations_total",
				Help:      "Upstream requests cancelled, by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		m.streamsActive,
		m.streamsTotal,
		m.bytesRelayed,
		m.chunksRelayed,
		m.streamDuration,
		m.upstreamConnect,
		m.cancellations,
	)

	return m
}

// RecordClosed records the end of an opened stream.
func (m *RelayMetrics) RecordClosed(outcome string, duration time.Duration, bytes, chunks int64) {
	m.streamsActive.Dec()
	m.streamsTotal.WithLabelValues(outcome).Inc()
	m.streamDuration.Observe(duration.Seconds())
	if bytes > 0 {
		m.bytesRelayed.Add(float64(bytes))
	}
	if chunks > 0 {
		m.chunksRelayed.Add(float64(chunks))
	}
}
