// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds the configuration for the sync engine, the HTTP API, and the
// directory watcher.
type Config struct {
	CredentialsFile string // Google service account JSON key file
	SpreadsheetID   string // target spreadsheet for all pipelines

	DBPath     string // path to the SQLite run-history file
	ListenAddr string // HTTP listen address (default ":8080")
	JWTSecret  string // HS256 shared secret for API auth (empty disables auth)
	LogLevel   string // log level: debug, info, warn, error (default "info")
	LogFormat  string // log format: "text" (default) or "json"
	Env        string // environment: "development" (default) or "production"

	// Sync tuning
	ChunkSize       int // rows per remote write call (default 500)
	WritesPerMinute int // write-call budget for chunked uploads (default 60)
	Workers         int // concurrent file preparations per batch (default 4)

	// Pipeline catalogue
	SpecsDir      string // optional directory of YAML pipeline specs
	DefaultMarket string // market used when a run does not name one (default "US")

	// Directory watcher. An empty WatchDir disables the watcher.
	WatchDir      string
	WatchSchedule string // cron expression for scan ticks (default "*/5 * * * *")

	// Rate limiting for the HTTP API
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the root logger for the configured level and format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AuthEnabled reports whether API requests must carry a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// LoadFromEnv loads configuration from SHEETSYNC_* environment variables.
// Google credentials are optional so that local dry runs and exports can
// work without a service account.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		CredentialsFile: os.Getenv("SHEETSYNC_CREDENTIALS_FILE"),
		SpreadsheetID:   os.Getenv("SHEETSYNC_SPREADSHEET_ID"),
		DBPath:          os.Getenv("SHEETSYNC_DB_PATH"),
		ListenAddr:      os.Getenv("SHEETSYNC_LISTEN_ADDR"),
		JWTSecret:       os.Getenv("SHEETSYNC_JWT_SECRET"),
		LogLevel:        os.Getenv("SHEETSYNC_LOG_LEVEL"),
		LogFormat:       os.Getenv("SHEETSYNC_LOG_FORMAT"),
		Env:             os.Getenv("SHEETSYNC_ENV"),
		ChunkSize:       parseIntEnvDefault("SHEETSYNC_CHUNK_SIZE", 500),
		WritesPerMinute: parseIntEnvDefault("SHEETSYNC_WRITES_PER_MIN", 60),
		Workers:         parseIntEnvDefault("SHEETSYNC_WORKERS", 4),
		SpecsDir:        os.Getenv("SHEETSYNC_SPECS_DIR"),
		DefaultMarket:   os.Getenv("SHEETSYNC_DEFAULT_MARKET"),
		WatchDir:        os.Getenv("SHEETSYNC_WATCH_DIR"),
		WatchSchedule:   os.Getenv("SHEETSYNC_WATCH_SCHEDULE"),
		RateLimitRPS:    parseFloatEnvDefault("SHEETSYNC_RATE_LIMIT_RPS", 100),
		RateLimitBurst:  parseIntEnvDefault("SHEETSYNC_RATE_LIMIT_BURST", 200),
	}

	if v := os.Getenv("SHEETSYNC_CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "sheetsync_runs.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.DefaultMarket == "" {
		cfg.DefaultMarket = "US"
	}
	if cfg.WatchSchedule == "" {
		cfg.WatchSchedule = "*/5 * * * *"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.CredentialsFile == "" {
		cfg.Warnings = append(cfg.Warnings,
			"SHEETSYNC_CREDENTIALS_FILE not set — remote sync is unavailable, only dry runs and exports will work")
	}
	if cfg.JWTSecret == "" {
		cfg.Warnings = append(cfg.Warnings,
			"SHEETSYNC_JWT_SECRET not set — API authentication is disabled. Set SHEETSYNC_JWT_SECRET in production!")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("SHEETSYNC_JWT_SECRET must be set in production (SHEETSYNC_ENV=production)")
		}
		if cfg.CredentialsFile == "" {
			return nil, fmt.Errorf("SHEETSYNC_CREDENTIALS_FILE must be set in production (SHEETSYNC_ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (SHEETSYNC_ENV=production)")
		}
	}

	return cfg, nil
}

func parseIntEnvDefault(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseFloatEnvDefault(key string, defaultVal float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
