package config

import "time"

// Default values for configuration fields.
const (
	// Relay defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultStreamPath      = "/stream"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Upstream defaults
	DefaultUpstreamBaseURL         = "http://localhost:17020/v1"
	DefaultUpstreamStreamPath      = "/price-stream"
	DefaultUpstreamConnectTimeout  = 10 * time.Second
	DefaultUpstreamMaxIdleConns    = 100
	DefaultUpstreamIdleConnTimeout = 90 * time.Second
	DefaultUpstreamReadBufferSize  = 4096

	// Client defaults
	DefaultClientRelayURL      = "http://127.0.0.1:8080/stream"
	DefaultClientRetryInterval = 2 * time.Second
	DefaultClientFlashDuration = 600 * time.Millisecond
	DefaultClientMaxFrameBytes = 64 * 1024

	// Journal defaults
	DefaultJournalEnabled              = true
	DefaultJournalBackend              = "sqlite"
	DefaultJournalSQLiteDriver         = "sqlite"
	DefaultJournalSQLitePath           = "data/sessions.db"
	DefaultJournalSQLiteMaxOpenConns   = 10
	DefaultJournalSQLiteMaxIdleConns   = 5
	DefaultJournalSQLiteWALMode        = true
	DefaultJournalSQLiteBusyTimeout    = 5 * time.Second
	DefaultJournalPostgresMinConns     = 1
	DefaultJournalPostgresMaxConns     = 10
	DefaultJournalRedisAddr            = "127.0.0.1:6379"
	DefaultJournalRedisStream          = "pricerelay:sessions"
	DefaultJournalRecorderAsyncBuffer  = 1000
	DefaultJournalRecorderWriteTimeout = 5 * time.Second
	DefaultJournalRetentionDays        = 30
	DefaultJournalRetentionSchedule    = "0 3 * * *"

	// Feed simulator defaults
	DefaultFeedListenAddress = "127.0.0.1:17020"
	DefaultFeedPath          = "/v1/price-stream"
	DefaultFeedSymbol        = "BTC-USD"
	DefaultFeedStartPrice    = "50000"
	DefaultFeedVolatility    = "0.002"
	DefaultFeedTickInterval  = time.Second
	DefaultFeedPingInterval  = 2 * time.Second
	DefaultFeedBufferTTL     = 5 * time.Minute
	DefaultFeedBufferSize    = 1000

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "mercator"
	DefaultMetricsSubsystem    = "pricerelay"
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingServiceName  = "pricerelay"
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultHealthEnabled       = true
	DefaultLivenessPath        = "/health"
	DefaultReadinessPath       = "/ready"
	DefaultVersionPath         = "/version"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// DefaultStreamDurationBuckets are the histogram buckets, in seconds, used for
// relay session durations.
var DefaultStreamDurationBuckets = []float64{1, 5, 30, 60, 300, 900, 3600}

// Default returns a fully defaulted configuration. It is used when no
// configuration file is given and as the base that YAML is decoded onto.
func Default() *Config {
	cfg := &Config{}
	seedBoolDefaults(cfg)
	ApplyDefaults(cfg)
	return cfg
}

// seedBoolDefaults sets the boolean fields whose default is true. A zero-valued
// bool cannot be told apart from an explicit false after decoding, so these are
// set before the YAML is applied on top.
func seedBoolDefaults(cfg *Config) {
	cfg.Relay.CORS.Enabled = DefaultCORSEnabled
	cfg.Journal.Enabled = DefaultJournalEnabled
	cfg.Journal.SQLite.WALMode = DefaultJournalSQLiteWALMode
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Relay defaults
	if cfg.Relay.ListenAddress == "" {
		cfg.Relay.ListenAddress = DefaultListenAddress
	}
	if cfg.Relay.StreamPath == "" {
		cfg.Relay.StreamPath = DefaultStreamPath
	}
	if cfg.Relay.ReadTimeout == 0 {
		cfg.Relay.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Relay.WriteTimeout == 0 {
		cfg.Relay.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Relay.IdleTimeout == 0 {
		cfg.Relay.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Relay.ShutdownTimeout == 0 {
		cfg.Relay.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Relay.MaxHeaderBytes == 0 {
		cfg.Relay.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	applyCORSDefaults(&cfg.Relay.CORS)

	// Upstream defaults
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if cfg.Upstream.StreamPath == "" {
		cfg.Upstream.StreamPath = DefaultUpstreamStreamPath
	}
	if cfg.Upstream.ConnectTimeout == 0 {
		cfg.Upstream.ConnectTimeout = DefaultUpstreamConnectTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultUpstreamMaxIdleConns
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultUpstreamIdleConnTimeout
	}
	if cfg.Upstream.ReadBufferSize == 0 {
		cfg.Upstream.ReadBufferSize = DefaultUpstreamReadBufferSize
	}

	// Client defaults
	if cfg.Client.RelayURL == "" {
		cfg.Client.RelayURL = DefaultClientRelayURL
	}
	if cfg.Client.RetryInterval == 0 {
		cfg.Client.RetryInterval = DefaultClientRetryInterval
	}
	if cfg.Client.FlashDuration == 0 {
		cfg.Client.FlashDuration = DefaultClientFlashDuration
	}
	if cfg.Client.MaxFrameBytes == 0 {
		cfg.Client.MaxFrameBytes = DefaultClientMaxFrameBytes
	}

	applyJournalDefaults(&cfg.Journal)
	applyFeedDefaults(&cfg.Feed)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// applyCORSDefaults fills in the CORS lists.
func applyCORSDefaults(cfg *CORSConfig) {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = []string{"GET", "HEAD", "OPTIONS"}
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = []string{"Cache-Control", "Last-Event-ID", "X-Request-ID"}
	}
	if len(cfg.ExposedHeaders) == 0 {
		cfg.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = DefaultCORSMaxAge
	}
}

func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultJournalBackend
	}

	// SQLite defaults
	if cfg.SQLite.Driver == "" {
		cfg.SQLite.Driver = DefaultJournalSQLiteDriver
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultJournalSQLitePath
	}
	if cfg.SQLite.MaxOpenConns == 0 {
		cfg.SQLite.MaxOpenConns = DefaultJournalSQLiteMaxOpenConns
	}
	if cfg.SQLite.MaxIdleConns == 0 {
		cfg.SQLite.MaxIdleConns = DefaultJournalSQLiteMaxIdleConns
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultJournalSQLiteBusyTimeout
	}

	// Postgres defaults
	if cfg.Postgres.MinConns == 0 {
		cfg.Postgres.MinConns = DefaultJournalPostgresMinConns
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = DefaultJournalPostgresMaxConns
	}

	// Redis defaults
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultJournalRedisAddr
	}
	if cfg.Redis.Stream == "" {
		cfg.Redis.Stream = DefaultJournalRedisStream
	}

	// Recorder defaults
	if cfg.Recorder.AsyncBuffer == 0 {
		cfg.Recorder.AsyncBuffer = DefaultJournalRecorderAsyncBuffer
	}
	if cfg.Recorder.WriteTimeout == 0 {
		cfg.Recorder.WriteTimeout = DefaultJournalRecorderWriteTimeout
	}

	// Retention defaults
	if cfg.Retention.Days == 0 {
		cfg.Retention.Days = DefaultJournalRetentionDays
	}
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultJournalRetentionSchedule
	}
}

func applyFeedDefaults(cfg *FeedConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultFeedListenAddress
	}
	if cfg.Path == "" {
		cfg.Path = DefaultFeedPath
	}
	if cfg.Symbol == "" {
		cfg.Symbol = DefaultFeedSymbol
	}
	if cfg.StartPrice == "" {
		cfg.StartPrice = DefaultFeedStartPrice
	}
	if cfg.Volatility == "" {
		cfg.Volatility = DefaultFeedVolatility
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultFeedTickInterval
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = DefaultFeedPingInterval
	}
	if cfg.BufferTTL == 0 {
		cfg.BufferTTL = DefaultFeedBufferTTL
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultFeedBufferSize
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Metrics.StreamDurationBuckets) == 0 {
		cfg.Metrics.StreamDurationBuckets = append([]float64(nil), DefaultStreamDurationBuckets...)
	}

	// Tracing defaults
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	// Health defaults
	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Health.VersionPath == "" {
		cfg.Health.VersionPath = DefaultVersionPath
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
