// Package telemetry groups the observability packages shared by the relay
// server, the connection manager and the session journal.
//
// # Components
//
//   - logging: slog logger built from telemetry.logging, with request and
//     session IDs attached from the context
//   - metrics: one Prometheus Collector holding the relay, client and
//     journal metric groups; every method is a no-op on a nil Collector
//   - tracing: OpenTelemetry Tracer exporting over OTLP gRPC, with a span
//     per relayed stream and W3C trace context injected upstream
//   - health: liveness, readiness and version endpoints; readiness runs
//     the registered checks concurrently
//
// # Usage
//
//	cfg := config.GetConfig()
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//		return err
//	}
//	slog.SetDefault(logger.Logger)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordReconnectAttempt()
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("upstream", health.UpstreamCheck(cfg.Upstream.BaseURL))
//	health.Mount(mux, cfg.Telemetry.Health, checker, version, commit, buildTime)
//
// # Metric names
//
// Names take the configured namespace and subsystem, "mercator_pricerelay"
// by default:
//
//	streams_active, streams_total{outcome}, bytes_relayed_total,
//	chunks_relayed_total, stream_duration_seconds,
//	upstream_connect_seconds{status}, upstream_cancellations_total{reason}
//	client_state_transitions_total{state}, client_reconnect_attempts_total,
//	client_messages_total{kind}, client_retry_timer_armed
//	journal_writes_total{backend,status}, journal_write_duration_seconds{backend},
//	journal_dropped_total, journal_pruned_total
package telemetry
