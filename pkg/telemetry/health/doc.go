// Package health provides the relay's liveness, readiness and version
// endpoints.
//
// Liveness answers 200 while the process runs. Readiness runs the registered
// checks concurrently, each under its own timeout; the relay registers an
// upstream TCP check and, when the journal is enabled, a storage ping.
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("upstream", health.UpstreamCheck(cfg.Upstream.BaseURL))
//	checker.RegisterCheck("journal", health.PingCheck(store))
//	health.Mount(mux, cfg.Telemetry.Health, checker, version, commit, buildTime)
package health
