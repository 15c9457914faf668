package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricerelay.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	configPath := writeConfig(t, `
relay:
  listen_address: "0.0.0.0:9090"
  stream_path: "/api/price"
  read_timeout: "60s"

upstream:
  base_url: "http://feed.internal:17020/v1"

client:
  retry_interval: "500ms"
  resume_window: "1m"

journal:
  backend: "memory"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Relay.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.Relay.ListenAddress)
	}
	if cfg.Relay.StreamPath != "/api/price" {
		t.Errorf("expected stream path %q, got %q", "/api/price", cfg.Relay.StreamPath)
	}
	if cfg.Relay.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout %v, got %v", 60*time.Second, cfg.Relay.ReadTimeout)
	}
	if cfg.Upstream.BaseURL != "http://feed.internal:17020/v1" {
		t.Errorf("expected base url, got %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.StreamPath != DefaultUpstreamStreamPath {
		t.Errorf("expected default upstream path, got %q", cfg.Upstream.StreamPath)
	}
	if cfg.Client.RetryInterval != 500*time.Millisecond {
		t.Errorf("expected retry interval 500ms, got %v", cfg.Client.RetryInterval)
	}
	if cfg.Client.ResumeWindow != time.Minute {
		t.Errorf("expected resume window 1m, got %v", cfg.Client.ResumeWindow)
	}
	if cfg.Client.FlashDuration != DefaultClientFlashDuration {
		t.Errorf("expected default flash duration, got %v", cfg.Client.FlashDuration)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfig_BoolDefaultsSurviveOmission(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "relay:\n  listen_address: \"127.0.0.1:8081\"\n"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !cfg.Journal.Enabled {
		t.Error("expected journal enabled by default")
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
	if !cfg.Relay.CORS.Enabled {
		t.Error("expected CORS enabled by default")
	}
}

func TestLoadConfig_ExplicitFalseKept(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
journal:
  enabled: false
telemetry:
  metrics:
    enabled: false
`))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Journal.Enabled {
		t.Error("expected journal disabled")
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics disabled")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read configuration file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "relay: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse configuration file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
client:
  relay_url: "ftp://example.com/stream"
telemetry:
  logging:
    level: "verbose"
`))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(verr.Errors), verr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	configPath := writeConfig(t, "relay:\n  listen_address: \"127.0.0.1:8080\"\n")

	t.Setenv("PRICERELAY_RELAY_LISTEN_ADDRESS", "0.0.0.0:7070")
	t.Setenv("PRICERELAY_UPSTREAM_BASE_URL", "https://prices.example.com/v1")
	t.Setenv("PRICERELAY_CLIENT_RETRY_INTERVAL", "3s")
	t.Setenv("PRICERELAY_JOURNAL_ENABLED", "false")
	t.Setenv("PRICERELAY_TELEMETRY_TRACING_SAMPLE_RATIO", "0.25")

	cfg, err := LoadConfigWithEnvOverrides(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Relay.ListenAddress != "0.0.0.0:7070" {
		t.Errorf("expected env listen address, got %q", cfg.Relay.ListenAddress)
	}
	if cfg.Upstream.BaseURL != "https://prices.example.com/v1" {
		t.Errorf("expected env base url, got %q", cfg.Upstream.BaseURL)
	}
	if cfg.Client.RetryInterval != 3*time.Second {
		t.Errorf("expected retry interval 3s, got %v", cfg.Client.RetryInterval)
	}
	if cfg.Journal.Enabled {
		t.Error("expected journal disabled by env")
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.25 {
		t.Errorf("expected sample ratio 0.25, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("PRICERELAY_CLIENT_RETRY_INTERVAL", "soon")
	t.Setenv("PRICERELAY_RELAY_MAX_HEADER_BYTES", "lots")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Client.RetryInterval != DefaultClientRetryInterval {
		t.Errorf("expected default retry interval, got %v", cfg.Client.RetryInterval)
	}
	if cfg.Relay.MaxHeaderBytes != DefaultMaxHeaderBytes {
		t.Errorf("expected default max header bytes, got %d", cfg.Relay.MaxHeaderBytes)
	}
}

func TestLoadConfigWithEnvOverrides_OverrideFailsValidation(t *testing.T) {
	t.Setenv("PRICERELAY_JOURNAL_BACKEND", "cassandra")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("unexpected error: %v", err)
	}
}
