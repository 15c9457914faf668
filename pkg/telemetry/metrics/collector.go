package metrics

import (
	"time"

	"mercator-hq/pricerelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every Prometheus metric exported by the relay, the
// connection manager and the session journal. A nil *Collector, or one built
// from a disabled configuration, records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	relay   *RelayMetrics
	client  *ClientMetrics
	journal *JournalMetrics
}

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.StreamDurationBuckets) == 0 {
		cfg.StreamDurationBuckets = append([]float64(nil), config.DefaultStreamDurationBuckets...)
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		relay:    NewRelayMetrics(cfg, registry),
		client:   NewClientMetrics(cfg, registry),
		journal:  NewJournalMetrics(cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// StreamOpened records a client stream that reached the upstream.
func (c *Collector) StreamOpened() {
	if !c.enabled() {
		return
	}
	c.relay.streamsActive.Inc()
}

// StreamClosed records the end of a relayed stream. outcome is one of
// "completed", "client_disconnected", "upstream_error" or "upstream_unavailable".
func (c *Collector) StreamClosed(outcome string, duration time.Duration, bytes, chunks int64) {
	if !c.enabled() {
		return
	}
	c.relay.RecordClosed(outcome, duration, bytes, chunks)
}

// StreamRejected records a stream that never opened, typically a 502.
func (c *Collector) StreamRejected(outcome string) {
	if !c.enabled() {
		return
	}
	c.relay.streamsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstreamConnect records the time to the upstream response headers.
func (c *Collector) RecordUpstreamConnect(status string, d time.Duration) {
	if !c.enabled() {
		return
	}
	c.relay.upstreamConnect.WithLabelValues(status).Observe(d.Seconds())
}

// RecordCancellation records which side of the relay ended a stream.
func (c *Collector) RecordCancellation(reason string) {
	if !c.enabled() {
		return
	}
	c.relay.cancellations.WithLabelValues(reason).Inc()
}

// RecordStateTransition records a connection manager entering state.
func (c *Collector) RecordStateTransition(state string) {
	if !c.enabled() {
		return
	}
	c.client.transitions.WithLabelValues(state).Inc()
}

// RecordReconnectAttempt records one retry tick of the connection manager.
func (c *Collector) RecordReconnectAttempt() {
	if !c.enabled() {
		return
	}
	c.client.reconnects.Inc()
}

// RecordClientMessage records a received stream message by kind: "price",
// "sentinel" or "malformed".
func (c *Collector) RecordClientMessage(kind string) {
	if !c.enabled() {
		return
	}
	c.client.messages.WithLabelValues(kind).Inc()
}

// SetRetryArmed reports whether the retry ticker is currently armed.
func (c *Collector) SetRetryArmed(armed bool) {
	if !c.enabled() {
		return
	}
	if armed {
		c.client.retryArmed.Set(1)
	} else {
		c.client.retryArmed.Set(0)
	}
}

// RecordJournalWrite records a journal write against backend.
func (c *Collector) RecordJournalWrite(backend, status string, d time.Duration) {
	if !c.enabled() {
		return
	}
	c.journal.RecordWrite(backend, status, d)
}

// RecordJournalDrop records a session record dropped because the recorder
// buffer was full.
func (c *Collector) RecordJournalDrop() {
	if !c.enabled() {
		return
	}
	c.journal.dropped.Inc()
}

// RecordJournalPruned records records removed by the retention job.
func (c *Collector) RecordJournalPruned(n int64) {
	if !c.enabled() {
		return
	}
	c.journal.pruned.Add(float64(n))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
