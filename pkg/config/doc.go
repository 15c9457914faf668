// Package config provides configuration management for the price relay.
//
// Configuration is read from a YAML file, completed with defaults, overlaid
// with environment variables and validated as a whole.
//
// # Loading
//
//	cfg, err := config.LoadConfig("pricerelay.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("pricerelay.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PRICERELAY_SECTION_FIELD:
//
//   - PRICERELAY_RELAY_LISTEN_ADDRESS overrides relay.listen_address
//   - PRICERELAY_UPSTREAM_BASE_URL overrides upstream.base_url
//   - PRICERELAY_CLIENT_RETRY_INTERVAL overrides client.retry_interval
//   - PRICERELAY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton and Reload
//
// Commands call Initialize once at startup and read the result with
// GetConfig. A Watcher reloads the file on change and hands the new value to
// a callback; a configuration that fails validation is never installed.
package config
