// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Sheets   SheetsConfig
	Import   ImportConfig
	Output   OutputConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// SheetsConfig holds settings for fetching published spreadsheet pages.
type SheetsConfig struct {
	// BaseURL is prefixed to "<document-id>/export?format=csv&sheet=<page>"
	BaseURL string `env:"SHEETS_BASE_URL" default:"https://docs.google.com/spreadsheets/d"`

	// FetchTimeout bounds a single page download (default: 60s)
	FetchTimeout time.Duration `env:"SHEETS_FETCH_TIMEOUT" default:"60s"`

	// MaxPageSize is the largest accepted page body in bytes (default: 50MB)
	MaxPageSize int64 `env:"SHEETS_MAX_PAGE_SIZE" default:"52428800"`

	// RequestsPerSecond paces requests to the export host (default: 2)
	RequestsPerSecond float64 `env:"SHEETS_REQUESTS_PER_SECOND" default:"2"`

	// Burst is the number of requests allowed without waiting (default: 4)
	Burst int `env:"SHEETS_BURST" default:"4"`

	// UserAgent is sent with every page request
	UserAgent string `env:"SHEETS_USER_AGENT" default:"sheetimport/1.0"`
}

// ImportConfig holds import run settings.
type ImportConfig struct {
	// MaxConcurrent is the maximum number of parallel runs across containers (default: 2)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a whole run, all pages included (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// ResultTTL is how long a finished run stays queryable (default: 5m)
	ResultTTL time.Duration `env:"IMPORT_RESULT_TTL" default:"5m"`
}

// OutputConfig holds serialization defaults.
type OutputConfig struct {
	// BaseDir anchors output paths that start with ".." (default: working directory)
	BaseDir string `env:"OUTPUT_BASE_DIR" default:"."`

	// Path is the output directory (default: ../../Configs)
	Path string `env:"OUTPUT_PATH" default:"../../Configs"`

	// FileName is the output file name without extension (default: Configs.v0.1)
	FileName string `env:"OUTPUT_FILE_NAME" default:"Configs.v0.1"`

	// Format is json or binary (default: json)
	Format string `env:"OUTPUT_FORMAT" default:"json"`
}

// HistoryConfig holds run history storage settings.
type HistoryConfig struct {
	// Driver selects the store: memory, postgres or sqlite (default: memory)
	Driver string `env:"HISTORY_DRIVER" default:"memory"`

	// DatabaseURL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver
	SQLitePath string `env:"HISTORY_SQLITE_PATH" default:"sheetimport.db"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// RetentionDays is how long run records are kept (default: 30)
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"30"`

	// PruneInterval is how often expired records are removed (default: 24h)
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" default:"24h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for import endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api routes with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
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
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
