// Package config provides configuration loading for promptpack.
//
// Configuration is assembled from defaults, an optional YAML file and
// PROMPTPACK_* environment variables (see LoadWithFile).
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete promptpack configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
	Secrets   SecretsConfig   `koanf:"secrets"`
	Prompt    PromptConfig    `koanf:"prompt"`
	Watch     WatchConfig     `koanf:"watch"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	// RateLimit is the allowed requests per second per client, 0 disables.
	RateLimit float64 `koanf:"rate_limit"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is one of memory, file, sqlite, postgres.
	Driver string `koanf:"driver"`

	// Path is the data directory (file) or database file (sqlite).
	Path string `koanf:"path"`

	// DSN is the PostgreSQL connection string.
	DSN Secret `koanf:"dsn"`

	// CacheSize enables an LRU read cache of that many entries.
	CacheSize int `koanf:"cache_size"`
}

// LoggingConfig holds the user-facing logging knobs.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SecretsConfig controls secret scrubbing of generated prompts.
type SecretsConfig struct {
	// Engine is regex (built-in rules), gitleaks or none.
	Engine string `koanf:"engine"`

	// AllowlistPath points at a TOML allowlist for the gitleaks engine.
	AllowlistPath string `koanf:"allowlist_path"`
}

// PromptConfig controls prompt rendering.
type PromptConfig struct {
	// HeaderPaths renders file section headers as full paths.
	HeaderPaths bool `koanf:"header_paths"`

	// ScrubSecrets redacts detected secrets from file contents.
	ScrubSecrets bool `koanf:"scrub_secrets"`
}

// WatchConfig configures the import inbox.
type WatchConfig struct {
	Dir string `koanf:"dir"`
}

// TelemetryConfig controls OpenTelemetry export. Disabled by default.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP collector address (host:port).
	Endpoint string `koanf:"endpoint"`

	// Protocol is grpc or http/protobuf.
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS; only allowed for local endpoints.
	Insecure bool `koanf:"insecure"`

	// TLSSkipVerify keeps TLS but accepts any certificate, for collectors
	// behind an internal CA.
	TLSSkipVerify bool `koanf:"tls_skip_verify"`

	ServiceName string `koanf:"service_name"`

	// SampleRate is the trace sampling ratio between 0 and 1.
	SampleRate float64 `koanf:"sample_rate"`

	// MetricsInterval is the metric export period.
	MetricsInterval Duration `koanf:"metrics_interval"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Storage: StorageConfig{
			Driver:    "file",
			CacheSize: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Secrets: SecretsConfig{
			Engine: "regex",
		},
		Prompt: PromptConfig{
			ScrubSecrets: false,
		},
		Telemetry: TelemetryConfig{
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			ServiceName:     "promptpack",
			SampleRate:      1.0,
			MetricsInterval: Duration(15 * time.Second),
		},
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Storage driver is unknown, or postgres has no DSN
//   - Logging format or secrets engine is unknown
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative: %v", c.Server.RateLimit)
	}

	switch c.Storage.Driver {
	case "memory", "file", "sqlite":
	case "postgres":
		if !c.Storage.DSN.IsSet() {
			return errors.New("storage dsn required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative: %d", c.Storage.CacheSize)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	switch c.Secrets.Engine {
	case "regex", "gitleaks", "none":
	default:
		return fmt.Errorf("secrets engine must be 'regex', 'gitleaks' or 'none', got %q", c.Secrets.Engine)
	}

	switch c.Telemetry.Protocol {
	case "", "grpc", "http/protobuf":
	default:
		return fmt.Errorf("telemetry protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
	}

	return nil
}
