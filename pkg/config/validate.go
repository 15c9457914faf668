package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "relay.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRelay(&cfg.Relay)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateClient(&cfg.Client)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateFeed(&cfg.Feed)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateRelay(cfg *RelayConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "relay.listen_address",
			Message: "listen address is required",
		})
	}
	errs = append(errs, validatePath("relay.stream_path", cfg.StreamPath)...)

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "relay.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "relay.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "relay.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "relay.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "relay.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	if cfg.CORS.Enabled && cfg.CORS.AllowCredentials {
		for _, origin := range cfg.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, FieldError{
					Field:   "relay.cors.allowed_origins",
					Message: "wildcard origin cannot be combined with allow_credentials",
				})
				break
			}
		}
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "relay.cors.max_age",
			Message: "max age must be non-negative",
		})
	}

	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	errs = append(errs, validateHTTPURL("upstream.base_url", cfg.BaseURL)...)
	errs = append(errs, validatePath("upstream.stream_path", cfg.StreamPath)...)

	if cfg.ConnectTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.connect_timeout",
			Message: "connect timeout must be positive",
		})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.max_idle_conns",
			Message: "max idle connections must be non-negative",
		})
	}
	if cfg.ReadBufferSize < 512 {
		errs = append(errs, FieldError{
			Field:   "upstream.read_buffer_size",
			Message: "read buffer size must be at least 512 bytes",
		})
	}

	return errs
}

func validateClient(cfg *ClientConfig) []FieldError {
	var errs []FieldError

	errs = append(errs, validateHTTPURL("client.relay_url", cfg.RelayURL)...)

	if cfg.RetryInterval < 10*time.Millisecond {
		errs = append(errs, FieldError{
			Field:   "client.retry_interval",
			Message: "retry interval must be at least 10ms",
		})
	}
	if cfg.FlashDuration <= 0 {
		errs = append(errs, FieldError{
			Field:   "client.flash_duration",
			Message: "flash duration must be positive",
		})
	}
	if cfg.ResumeWindow < 0 {
		errs = append(errs, FieldError{
			Field:   "client.resume_window",
			Message: "resume window must be non-negative",
		})
	}
	if cfg.MaxFrameBytes < 1024 {
		errs = append(errs, FieldError{
			Field:   "client.max_frame_bytes",
			Message: "max frame bytes must be at least 1024",
		})
	}

	return errs
}

func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.path",
				Message: "SQLite path is required when backend is 'sqlite'",
			})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{
				Field:   "journal.postgres.dsn",
				Message: "PostgreSQL DSN is required when backend is 'postgres'",
			})
		}
		if cfg.Postgres.MaxConns < cfg.Postgres.MinConns {
			errs = append(errs, FieldError{
				Field:   "journal.postgres.max_conns",
				Message: "max conns must be greater than or equal to min conns",
			})
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "journal.redis.addr",
				Message: "Redis address is required when backend is 'redis'",
			})
		}
		if cfg.Redis.Stream == "" {
			errs = append(errs, FieldError{
				Field:   "journal.redis.stream",
				Message: "Redis stream key is required when backend is 'redis'",
			})
		}
		if cfg.Redis.MaxLen < 0 {
			errs = append(errs, FieldError{
				Field:   "journal.redis.max_len",
				Message: "max length must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "journal.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite', 'postgres', 'redis', or 'memory'", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer < 1 {
		errs = append(errs, FieldError{
			Field:   "journal.recorder.async_buffer",
			Message: "async buffer must be at least 1",
		})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.retention.days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.retention.max_records",
			Message: "max records must be non-negative",
		})
	}
	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "journal.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateFeed(cfg *FeedConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "feed.listen_address",
			Message: "listen address is required",
		})
	}
	errs = append(errs, validatePath("feed.path", cfg.Path)...)

	if strings.TrimSpace(cfg.Symbol) == "" {
		errs = append(errs, FieldError{
			Field:   "feed.symbol",
			Message: "symbol is required",
		})
	}
	if p, err := decimal.NewFromString(cfg.StartPrice); err != nil || !p.IsPositive() {
		errs = append(errs, FieldError{
			Field:   "feed.start_price",
			Message: fmt.Sprintf("start price %q must be a positive decimal", cfg.StartPrice),
		})
	}
	if v, err := decimal.NewFromString(cfg.Volatility); err != nil || v.IsNegative() || v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, FieldError{
			Field:   "feed.volatility",
			Message: fmt.Sprintf("volatility %q must be a decimal in [0, 1)", cfg.Volatility),
		})
	}
	if cfg.TickInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "feed.tick_interval",
			Message: "tick interval must be positive",
		})
	}
	if cfg.PingInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "feed.ping_interval",
			Message: "ping interval must be positive",
		})
	}
	if cfg.BufferTTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "feed.buffer_ttl",
			Message: "buffer TTL must be positive",
		})
	}
	if cfg.BufferSize < 1 {
		errs = append(errs, FieldError{
			Field:   "feed.buffer_size",
			Message: "buffer size must be at least 1",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		errs = append(errs, validatePath("telemetry.metrics.path", cfg.Metrics.Path)...)
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.Enabled {
		errs = append(errs, validatePath("telemetry.health.liveness_path", cfg.Health.LivenessPath)...)
		errs = append(errs, validatePath("telemetry.health.readiness_path", cfg.Health.ReadinessPath)...)
		errs = append(errs, validatePath("telemetry.health.version_path", cfg.Health.VersionPath)...)

		if cfg.Health.CheckTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must be positive",
			})
		}
		if cfg.Health.CheckTimeout > 60*time.Second {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout exceeds reasonable limit (60s)",
			})
		}
	}

	return errs
}

func validatePath(field, path string) []FieldError {
	if path == "" {
		return []FieldError{{Field: field, Message: "path is required"}}
	}
	if path[0] != '/' {
		return []FieldError{{Field: field, Message: "path must start with /"}}
	}
	return nil
}

func validateHTTPURL(field, raw string) []FieldError {
	if raw == "" {
		return []FieldError{{Field: field, Message: "URL is required"}}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return []FieldError{{Field: field, Message: fmt.Sprintf("invalid URL: %v", err)}}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []FieldError{{Field: field, Message: fmt.Sprintf("URL scheme %q must be http or https", u.Scheme)}}
	}
	if u.Host == "" {
		return []FieldError{{Field: field, Message: "URL host is required"}}
	}
	return nil
}
