package metrics

import (
	"mercator-hq/pricerelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics tracks the connection manager.
type ClientMetrics struct {
	transitions *prometheus.CounterVec
	reconnects  prometheus.Counter
	messages    *prometheus.CounterVec
	retryArmed  prometheus.Gauge
}

// NewClientMetrics creates and registers the connection manager metrics.
func NewClientMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ClientMetrics {
	m := &ClientMetrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "client_state_transitions_total",
				Help:      "Connection state transitions by target state",
			},
			[]string{"state"},
		),
		reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "client_reconnect_attempts_total",
				Help:      "Reconnect attempts made by the retry ticker",
			},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "client_messages_total",
				Help:      "Stream messages received by kind",
			},
			[]string{"kind"},
		),
		retryArmed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "client_retry_timer_armed",
				Help:      "1 while the reconnect ticker is armed",
			},
		),
	}

	registry.MustRegister(m.transitions, m.reconnects, m.messages, m.retryArmed)

	return m
}
