// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendGCS      = "gcs"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Render   RenderConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on. PORT is honoured for container platforms.
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds a single request, including rendering (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"2m"`
}

// UploadConfig limits what a generation request may send.
type UploadConfig struct {
	// MaxFileSize is the per-file limit in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the number of generations admitted at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a generation slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// RenderConfig tunes document rendering.
type RenderConfig struct {
	// Workers is the number of rows rendered in parallel per request (default: 4)
	Workers int `env:"RENDER_WORKERS" default:"4"`

	// PresetsFile is an optional YAML file replacing the built-in delimiter presets
	PresetsFile string `env:"RENDER_PRESETS_FILE"`

	// UnwrapSingle returns a bare document for one-row sources by default
	UnwrapSingle bool `env:"RENDER_UNWRAP_SINGLE" default:"false"`
}

// StorageConfig selects the blob store used by /api/files.
type StorageConfig struct {
	// Backend is memory, postgres or gcs (default: memory)
	Backend string `env:"STORAGE_BACKEND" default:"memory"`

	// MaxBlobSize is the largest file the store accepts (default: 50MB)
	MaxBlobSize int64 `env:"STORAGE_MAX_BLOB_SIZE" default:"52428800"`

	// Bucket and Prefix locate objects for the gcs backend
	Bucket string `env:"STORAGE_BUCKET" envAlt:"GCS_BUCKET"`
	Prefix string `env:"STORAGE_PREFIX" default:"uploads/"`

	// Retention is how long stored files are kept; 0 keeps them forever (default: 24h)
	Retention time.Duration `env:"STORAGE_RETENTION" default:"24h"`

	// SweepInterval is how often expired files are removed (default: 15m)
	SweepInterval time.Duration `env:"STORAGE_SWEEP_INTERVAL" default:"15m"`
}

// DatabaseConfig holds database connection settings for the postgres backend.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required when STORAGE_BACKEND=postgres.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// GenerateLimit is requests per minute per IP for /api/generate (default: 20)
	GenerateLimit int `env:"RATE_LIMIT_GENERATE" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
