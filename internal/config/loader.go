package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads the configuration from the environment, fills defaults and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := fill(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// fill walks a struct, descending into nested section structs, and sets
// every field tagged with env.
func fill(v reflect.Value) error {
	t := v.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err := fill(fv); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, err := lookup(sf.Tag)
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}
		if err := assign(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// lookup resolves a field's raw value: env, then envAlt, then default.
func lookup(tag reflect.StructTag) (string, error) {
	name := tag.Get("env")
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	if alt := tag.Get("envAlt"); alt != "" {
		if v := os.Getenv(alt); v != "" {
			return v, nil
		}
	}
	if tag.Get("required") == "true" {
		return "", fmt.Errorf("required environment variable %s is not set", name)
	}
	return tag.Get("default"), nil
}

func assign(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		fv.SetBool(b)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", fv.Type())
		}
		fv.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type: %s", fv.Kind())
	}
	return nil
}

// splitList parses a comma-separated list, dropping blank entries.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// problems collects validation failures so they are reported together.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) positive(name string, ok bool) {
	if !ok {
		p.addf("%s must be positive", name)
	}
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks the whole configuration and reports every problem found.
func (c *Config) Validate() error {
	var p problems

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		p.addf("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		p.addf("SERVER_READ_TIMEOUT must be non-negative")
	}
	p.positive("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout > 0)

	if u, err := url.Parse(c.Sheets.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		p.addf("SHEETS_BASE_URL (%q) must be an absolute URL", c.Sheets.BaseURL)
	}
	p.positive("SHEETS_FETCH_TIMEOUT", c.Sheets.FetchTimeout > 0)
	p.positive("SHEETS_MAX_PAGE_SIZE", c.Sheets.MaxPageSize > 0)
	p.positive("SHEETS_REQUESTS_PER_SECOND", c.Sheets.RequestsPerSecond > 0)
	p.positive("SHEETS_BURST", c.Sheets.Burst > 0)

	p.positive("IMPORT_MAX_CONCURRENT", c.Import.MaxConcurrent > 0)
	p.positive("IMPORT_MAX_WAIT_TIME", c.Import.MaxWaitTime > 0)
	p.positive("IMPORT_TIMEOUT", c.Import.Timeout > 0)
	p.positive("IMPORT_RESULT_TTL", c.Import.ResultTTL > 0)

	if strings.TrimSpace(c.Output.Path) == "" {
		p.addf("OUTPUT_PATH must not be empty")
	}
	if strings.TrimSpace(c.Output.FileName) == "" {
		p.addf("OUTPUT_FILE_NAME must not be empty")
	}
	if !oneOf(c.Output.Format, "json", "binary") {
		p.addf("OUTPUT_FORMAT (%q) must be one of: json, binary", c.Output.Format)
	}

	c.History.validate(&p)

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		p.addf("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		p.addf("REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if !oneOf(c.Logging.Format, "text", "json") {
		p.addf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

func (h HistoryConfig) validate(p *problems) {
	switch strings.ToLower(h.Driver) {
	case "memory":
	case "sqlite":
		if h.SQLitePath == "" {
			p.addf("HISTORY_SQLITE_PATH is required when HISTORY_DRIVER=sqlite")
		}
	case "postgres":
		if h.DatabaseURL == "" {
			p.addf("DATABASE_URL is required when HISTORY_DRIVER=postgres")
		}
		p.positive("DB_MAX_CONNS", h.MaxConns > 0)
		if h.MinConns < 0 {
			p.addf("DB_MIN_CONNS must be non-negative")
		}
		if h.MaxConns < h.MinConns {
			p.addf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", h.MaxConns, h.MinConns)
		}
	default:
		p.addf("HISTORY_DRIVER (%q) must be one of: memory, postgres, sqlite", h.Driver)
	}
	p.positive("HISTORY_RETENTION_DAYS", h.RetentionDays > 0)
	p.positive("HISTORY_PRUNE_INTERVAL", h.PruneInterval > 0)
}

// String renders the configuration for logs with secrets masked.
func (c *Config) String() string {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "[MASKED]"
	}

	sections := []string{
		fmt.Sprintf("Server: {Host: %q, Port: %d}", c.Server.Host, c.Server.Port),
		fmt.Sprintf("Sheets: {BaseURL: %q, FetchTimeout: %s, RequestsPerSecond: %g}",
			c.Sheets.BaseURL, c.Sheets.FetchTimeout, c.Sheets.RequestsPerSecond),
		fmt.Sprintf("Import: {MaxConcurrent: %d, Timeout: %s}", c.Import.MaxConcurrent, c.Import.Timeout),
		fmt.Sprintf("Output: {Path: %q, FileName: %q, Format: %q}", c.Output.Path, c.Output.FileName, c.Output.Format),
		fmt.Sprintf("History: {Driver: %q, DatabaseURL: %q, RetentionDays: %d}",
			c.History.Driver, mask(c.History.DatabaseURL), c.History.RetentionDays),
		fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}", c.Rate.Enabled, c.Rate.RequestsPerMinute),
		fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d configured}", c.Security.RequireAPIKey, len(c.Security.APIKeys)),
		fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format),
	}
	return "Config{" + strings.Join(sections, ", ") + "}"
}
