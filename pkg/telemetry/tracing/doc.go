// Package tracing sets up OpenTelemetry tracing for the relay.
//
// Spans are exported over OTLP gRPC with a parent-based sampler. The relay
// opens one span per client stream and injects its context into the upstream
// request, so a trace follows a price subscription from the browser through
// the relay to the price service:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
//
//	ctx, span := tracer.Start(r.Context(), "relay.stream",
//		tracing.StreamStartAttributes(requestID, sessionID, upstreamURL))
//	defer span.End()
//	tracing.Inject(ctx, upstreamReq.Header)
package tracing
