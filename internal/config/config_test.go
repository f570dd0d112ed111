package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	t.Setenv("SHEETSYNC_CREDENTIALS_FILE", "/etc/sheetsync/sa.json")
	t.Setenv("SHEETSYNC_SPREADSHEET_ID", "1AbCdEfGh")
	t.Setenv("SHEETSYNC_DB_PATH", "/tmp/runs.sqlite")
	t.Setenv("SHEETSYNC_LISTEN_ADDR", ":9090")
	t.Setenv("SHEETSYNC_JWT_SECRET", "s3cret")
	t.Setenv("SHEETSYNC_CHUNK_SIZE", "250")
	t.Setenv("SHEETSYNC_WRITES_PER_MIN", "30")
	t.Setenv("SHEETSYNC_WORKERS", "8")
	t.Setenv("SHEETSYNC_DEFAULT_MARKET", "DE")
	t.Setenv("SHEETSYNC_WATCH_DIR", "/srv/dropbox")
	t.Setenv("SHEETSYNC_WATCH_SCHEDULE", "*/10 * * * *")
	t.Setenv("SHEETSYNC_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/etc/sheetsync/sa.json", cfg.CredentialsFile)
	assert.Equal(t, "1AbCdEfGh", cfg.SpreadsheetID)
	assert.Equal(t, "/tmp/runs.sqlite", cfg.DBPath)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 250, cfg.ChunkSize)
	assert.Equal(t, 30, cfg.WritesPerMinute)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "DE", cfg.DefaultMarket)
	assert.Equal(t, "/srv/dropbox", cfg.WatchDir)
	assert.Equal(t, "*/10 * * * *", cfg.WatchSchedule)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.AuthEnabled())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("SHEETSYNC_CREDENTIALS_FILE", "")
	t.Setenv("SHEETSYNC_JWT_SECRET", "")
	t.Setenv("SHEETSYNC_DB_PATH", "")
	t.Setenv("SHEETSYNC_LISTEN_ADDR", "")
	t.Setenv("SHEETSYNC_CHUNK_SIZE", "")
	t.Setenv("SHEETSYNC_ENV", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sheetsync_runs.sqlite", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 60, cfg.WritesPerMinute)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "US", cfg.DefaultMarket)
	assert.Equal(t, "*/5 * * * *", cfg.WatchSchedule)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.AuthEnabled())

	// Missing credentials and JWT secret are downgraded to warnings outside
	// production so that dry runs and exports still work.
	assert.Len(t, cfg.Warnings, 2)
}

func TestLoadFromEnv_BadNumbersFallBack(t *testing.T) {
	t.Setenv("SHEETSYNC_CHUNK_SIZE", "lots")
	t.Setenv("SHEETSYNC_WORKERS", "-3")
	t.Setenv("SHEETSYNC_RATE_LIMIT_RPS", "fast")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, float64(100), cfg.RateLimitRPS)
}

func TestLoadFromEnv_ProductionChecks(t *testing.T) {
	t.Setenv("SHEETSYNC_ENV", "production")
	t.Setenv("SHEETSYNC_JWT_SECRET", "")
	t.Setenv("SHEETSYNC_CREDENTIALS_FILE", "")
	t.Setenv("SHEETSYNC_CORS_ORIGINS", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHEETSYNC_JWT_SECRET")

	t.Setenv("SHEETSYNC_JWT_SECRET", "s3cret")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHEETSYNC_CREDENTIALS_FILE")

	t.Setenv("SHEETSYNC_CREDENTIALS_FILE", "/etc/sheetsync/sa.json")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS")

	t.Setenv("SHEETSYNC_CORS_ORIGINS", "https://ops.example")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Empty(t, cfg.Warnings)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.level)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogFormat: "json"}
	cfg.NewLogger(&buf).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg = &Config{}
	cfg.NewLogger(&buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_KEY=test_value\n# comment\nTEST_QUOTED='hello'\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_KEY"); val != "test_value" {
		t.Errorf("TEST_KEY = %q, want %q", val, "test_value")
	}
	if val := os.Getenv("TEST_QUOTED"); val != "hello" {
		t.Errorf("TEST_QUOTED = %q, want %q", val, "hello")
	}
	_ = os.Unsetenv("TEST_KEY")
	_ = os.Unsetenv("TEST_QUOTED")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}
