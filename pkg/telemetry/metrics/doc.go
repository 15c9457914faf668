// Package metrics exports Prometheus metrics for the price relay.
//
// # Metrics
//
// Relay proxy:
//   - streams_active: gauge of streams currently relayed
//   - streams_total{outcome}: completed, client_disconnected, upstream_error,
//     upstream_unavailable
//   - bytes_relayed_total, chunks_relayed_total
//   - stream_duration_seconds
//   - upstream_connect_seconds{status}
//   - upstream_cancellations_total{reason}
//
// Connection manager:
//   - client_state_transitions_total{state}
//   - client_reconnect_attempts_total
//   - client_messages_total{kind}
//   - client_retry_timer_armed
//
// Session journal:
//   - journal_writes_total{backend,status}
//   - journal_write_duration_seconds{backend}
//   - journal_dropped_total, journal_pruned_total
//
// All names carry the configured namespace and subsystem, which default to
// mercator_pricerelay_.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.StreamOpened()
//	defer collector.StreamClosed("completed", time.Since(start), n, chunks)
//
//	mux.Handle("/metrics", collector.Handler())
//
// Every recording method is a no-op on a nil collector or when metrics are
// disabled, so callers never need to guard them.
package metrics
