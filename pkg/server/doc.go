// Package server runs the relay HTTP server.
//
// It ties the stream handler, health and metrics endpoints and the middleware
// chain together and owns the server lifecycle:
//
//	srv := server.NewServer(cfg,
//		server.WithMetrics(collector),
//		server.WithRecorder(rec),
//		server.WithStorage(store),
//	)
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
//
// # Routes
//
//   - Relay.StreamPath (default /stream): the price stream relay
//   - /health, /ready, /version: probes and build info, when health is enabled
//   - /metrics: Prometheus scrape endpoint, when metrics are enabled
//
// Everything else answers a JSON 404.
//
// # Middleware
//
// Outermost first: recovery, request ID, access logging, trace context
// extraction, CORS. The timeout middleware wraps every route except the
// stream, which stays open until either side leaves.
//
// # Shutdown
//
// Start returns when its context is cancelled or Stop is called. Shutdown
// first ends live streams, since http.Server.Shutdown waits for running
// handlers, then drains the server within Relay.ShutdownTimeout. It is safe to
// call more than once.
package server
