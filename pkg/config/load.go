package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by all environment variable overrides.
const EnvPrefix = "PRICERELAY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration bytes and applies defaults. It does not
// validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	seedBoolDefaults(&cfg)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention PRICERELAY_SECTION_FIELD (e.g., PRICERELAY_RELAY_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from Default().
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Relay overrides
	envString("RELAY_LISTEN_ADDRESS", &cfg.Relay.ListenAddress)
	envString("RELAY_STREAM_PATH", &cfg.Relay.StreamPath)
	envDuration("RELAY_READ_TIMEOUT", &cfg.Relay.ReadTimeout)
	envDuration("RELAY_WRITE_TIMEOUT", &cfg.Relay.WriteTimeout)
	envDuration("RELAY_IDLE_TIMEOUT", &cfg.Relay.IdleTimeout)
	envDuration("RELAY_SHUTDOWN_TIMEOUT", &cfg.Relay.ShutdownTimeout)
	envInt("RELAY_MAX_HEADER_BYTES", &cfg.Relay.MaxHeaderBytes)
	envBool("RELAY_CORS_ENABLED", &cfg.Relay.CORS.Enabled)

	// Upstream overrides
	envString("UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	envString("UPSTREAM_STREAM_PATH", &cfg.Upstream.StreamPath)
	envDuration("UPSTREAM_CONNECT_TIMEOUT", &cfg.Upstream.ConnectTimeout)

	// Client overrides
	envString("CLIENT_RELAY_URL", &cfg.Client.RelayURL)
	envDuration("CLIENT_RETRY_INTERVAL", &cfg.Client.RetryInterval)
	envDuration("CLIENT_FLASH_DURATION", &cfg.Client.FlashDuration)
	envDuration("CLIENT_RESUME_WINDOW", &cfg.Client.ResumeWindow)

	// Journal overrides
	envBool("JOURNAL_ENABLED", &cfg.Journal.Enabled)
	envString("JOURNAL_BACKEND", &cfg.Journal.Backend)
	envString("JOURNAL_SQLITE_DRIVER", &cfg.Journal.SQLite.Driver)
	envString("JOURNAL_SQLITE_PATH", &cfg.Journal.SQLite.Path)
	envString("JOURNAL_POSTGRES_DSN", &cfg.Journal.Postgres.DSN)
	envString("JOURNAL_REDIS_ADDR", &cfg.Journal.Redis.Addr)
	envString("JOURNAL_REDIS_PASSWORD", &cfg.Journal.Redis.Password)
	envInt("JOURNAL_REDIS_DB", &cfg.Journal.Redis.DB)
	envInt("JOURNAL_RETENTION_DAYS", &cfg.Journal.Retention.Days)
	envString("JOURNAL_RETENTION_PRUNE_SCHEDULE", &cfg.Journal.Retention.PruneSchedule)

	// Feed overrides
	envString("FEED_LISTEN_ADDRESS", &cfg.Feed.ListenAddress)
	envString("FEED_SYMBOL", &cfg.Feed.Symbol)
	envString("FEED_START_PRICE", &cfg.Feed.StartPrice)
	envDuration("FEED_TICK_INTERVAL", &cfg.Feed.TickInterval)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
