// Package logging builds the process slog logger.
//
// The handler is JSON or text, as configured, and is wrapped so that records
// logged with a context pick up the request ID, relay session ID and active
// trace span:
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
//	slog.SetDefault(logger.Logger)
//
//	ctx = logging.WithRequestID(ctx, "a1b2c3")
//	slog.InfoContext(ctx, "stream opened") // includes request_id
//
// The level lives in a slog.LevelVar; SetLevel changes it without rebuilding
// the logger, which is how configuration reloads apply a new level.
package logging
