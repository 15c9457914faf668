package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(*testing.T, *Config)
	}{
		{
			name:  "empty config gets all defaults",
			input: Config{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Relay.ListenAddress != DefaultListenAddress {
					t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Relay.ListenAddress)
				}
				if cfg.Relay.StreamPath != DefaultStreamPath {
					t.Errorf("expected stream path %q, got %q", DefaultStreamPath, cfg.Relay.StreamPath)
				}
				if cfg.Upstream.BaseURL != DefaultUpstreamBaseURL {
					t.Errorf("expected base url %q, got %q", DefaultUpstreamBaseURL, cfg.Upstream.BaseURL)
				}
				if cfg.Client.RetryInterval != 2*time.Second {
					t.Errorf("expected retry interval 2s, got %v", cfg.Client.RetryInterval)
				}
				if cfg.Client.FlashDuration != 600*time.Millisecond {
					t.Errorf("expected flash duration 600ms, got %v", cfg.Client.FlashDuration)
				}
				if cfg.Client.ResumeWindow != 0 {
					t.Errorf("expected resume disabled, got %v", cfg.Client.ResumeWindow)
				}
				if cfg.Journal.Backend != DefaultJournalBackend {
					t.Errorf("expected journal backend %q, got %q", DefaultJournalBackend, cfg.Journal.Backend)
				}
				if cfg.Feed.PingInterval != 2*time.Second {
					t.Errorf("expected ping interval 2s, got %v", cfg.Feed.PingInterval)
				}
				if len(cfg.Relay.CORS.AllowedOrigins) != 1 || cfg.Relay.CORS.AllowedOrigins[0] != "*" {
					t.Errorf("expected wildcard origin, got %v", cfg.Relay.CORS.AllowedOrigins)
				}
				if len(cfg.Telemetry.Metrics.StreamDurationBuckets) != len(DefaultStreamDurationBuckets) {
					t.Errorf("expected default buckets, got %v", cfg.Telemetry.Metrics.StreamDurationBuckets)
				}
			},
		},
		{
			name: "explicit values are preserved",
			input: Config{
				Relay:  RelayConfig{ListenAddress: "0.0.0.0:1234", StreamPath: "/s"},
				Client: ClientConfig{RetryInterval: 5 * time.Second},
				Feed:   FeedConfig{Symbol: "ETH-USD"},
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Relay.ListenAddress != "0.0.0.0:1234" {
					t.Errorf("expected listen address preserved, got %q", cfg.Relay.ListenAddress)
				}
				if cfg.Relay.StreamPath != "/s" {
					t.Errorf("expected stream path preserved, got %q", cfg.Relay.StreamPath)
				}
				if cfg.Client.RetryInterval != 5*time.Second {
					t.Errorf("expected retry interval preserved, got %v", cfg.Client.RetryInterval)
				}
				if cfg.Feed.Symbol != "ETH-USD" {
					t.Errorf("expected symbol preserved, got %q", cfg.Feed.Symbol)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			ApplyDefaults(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Default()
	before := *cfg
	ApplyDefaults(cfg)

	if cfg.Relay.ListenAddress != before.Relay.ListenAddress {
		t.Error("expected relay listen address unchanged")
	}
	if cfg.Upstream != before.Upstream {
		t.Error("expected upstream section unchanged")
	}
	if cfg.Client != before.Client {
		t.Error("expected client section unchanged")
	}
	if cfg.Feed != before.Feed {
		t.Error("expected feed section unchanged")
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("expected default config to validate, got: %v", err)
	}
}

func TestDefault_BoolDefaults(t *testing.T) {
	cfg := Default()
	if !cfg.Journal.Enabled || !cfg.Journal.SQLite.WALMode {
		t.Error("expected journal and WAL enabled")
	}
	if !cfg.Telemetry.Health.Enabled {
		t.Error("expected health enabled")
	}
	if cfg.Telemetry.Tracing.Enabled {
		t.Error("expected tracing disabled")
	}
}
