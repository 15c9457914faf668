package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "default config is valid",
			mutate: func(*Config) {},
		},
		{
			name:      "empty listen address",
			mutate:    func(c *Config) { c.Relay.ListenAddress = "" },
			wantField: "relay.listen_address",
		},
		{
			name:      "stream path without slash",
			mutate:    func(c *Config) { c.Relay.StreamPath = "stream" },
			wantField: "relay.stream_path",
		},
		{
			name: "wildcard origin with credentials",
			mutate: func(c *Config) {
				c.Relay.CORS.AllowCredentials = true
			},
			wantField: "relay.cors.allowed_origins",
		},
		{
			name:      "upstream url without scheme",
			mutate:    func(c *Config) { c.Upstream.BaseURL = "localhost:17020" },
			wantField: "upstream.base_url",
		},
		{
			name:      "tiny read buffer",
			mutate:    func(c *Config) { c.Upstream.ReadBufferSize = 16 },
			wantField: "upstream.read_buffer_size",
		},
		{
			name:      "retry interval too small",
			mutate:    func(c *Config) { c.Client.RetryInterval = time.Millisecond },
			wantField: "client.retry_interval",
		},
		{
			name:      "negative resume window",
			mutate:    func(c *Config) { c.Client.ResumeWindow = -time.Second },
			wantField: "client.resume_window",
		},
		{
			name:      "unknown journal backend",
			mutate:    func(c *Config) { c.Journal.Backend = "s3" },
			wantField: "journal.backend",
		},
		{
			name:      "unknown sqlite driver",
			mutate:    func(c *Config) { c.Journal.SQLite.Driver = "duckdb" },
			wantField: "journal.sqlite.driver",
		},
		{
			name:      "postgres without dsn",
			mutate:    func(c *Config) { c.Journal.Backend = "postgres" },
			wantField: "journal.postgres.dsn",
		},
		{
			name:      "bad prune schedule",
			mutate:    func(c *Config) { c.Journal.Retention.PruneSchedule = "every day" },
			wantField: "journal.retention.prune_schedule",
		},
		{
			name: "disabled journal skips backend checks",
			mutate: func(c *Config) {
				c.Journal.Enabled = false
				c.Journal.Backend = "s3"
			},
		},
		{
			name:      "non numeric start price",
			mutate:    func(c *Config) { c.Feed.StartPrice = "lots" },
			wantField: "feed.start_price",
		},
		{
			name:      "volatility of one",
			mutate:    func(c *Config) { c.Feed.Volatility = "1" },
			wantField: "feed.volatility",
		},
		{
			name:      "bad logging format",
			mutate:    func(c *Config) { c.Telemetry.Logging.Format = "xml" },
			wantField: "telemetry.logging.format",
		},
		{
			name: "tracing without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
			},
			wantField: "telemetry.tracing.endpoint",
		},
		{
			name:      "health check timeout too long",
			mutate:    func(c *Config) { c.Telemetry.Health.CheckTimeout = 2 * time.Minute },
			wantField: "telemetry.health.check_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid config, got: %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("unexpected single error message: %q", got)
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}}
	got := multi.Error()
	if !strings.HasPrefix(got, "configuration validation failed with 2 errors:") {
		t.Errorf("unexpected multi error message: %q", got)
	}
	if !strings.Contains(got, "  - b: worse") {
		t.Errorf("expected each field listed, got %q", got)
	}
}
