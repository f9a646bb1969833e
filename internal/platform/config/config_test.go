package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TICKET_CONFIG", "HTTP_ADDR", "STORE_DRIVER", "DB_HOST", "DB_PORT", "DB_USER",
		"DB_PASSWORD", "DB_NAME", "SQLITE_PATH", "REDIS_HOST", "REDIS_PORT",
		"REDIS_ENABLED", "KAFKA_BROKERS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 5*time.Second, cfg.Purchase.StoreTimeout)
	assert.Equal(t, 3, cfg.Purchase.MaxAttempts)
	assert.Equal(t, 5, cfg.Ledger.MaxAttempts)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "engine.yaml", `
server:
  addr: ":9090"
  allowed_origins: ["https://tickets.example"]
store:
  driver: sqlite
sqlite:
  path: /var/lib/tickets.db
purchase:
  store_timeout: 2s
  max_attempts: 4
  base_backoff: 10ms
  max_backoff: 100ms
sweep:
  interval: 30s
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://tickets.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/tickets.db", cfg.SQLite.Path)
	assert.Equal(t, 2*time.Second, cfg.Purchase.StoreTimeout)
	assert.Equal(t, 4, cfg.Purchase.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Purchase.BaseBackoff)
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval)
	assert.Equal(t, "text", cfg.Log.Format)

	// untouched sections keep their defaults
	assert.Equal(t, 10000, cfg.Gateway.MaxConnections)
}

func TestLoad_ConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "engine.yaml", "server:\n  addr: \":7070\"\n")
	t.Setenv("TICKET_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "engine.yaml", "postgres:\n  host: db.internal\n  dbname: tickets\n")
	t.Setenv("DB_HOST", "db.override")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.override", cfg.Postgres.Host)
	assert.Equal(t, "tickets", cfg.Postgres.DBName)
	assert.Equal(t, "secret", cfg.Postgres.Password)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "k1:9092,k2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "server: [not, a, map]"))
	assert.Error(t, err)

	t.Setenv("REDIS_ENABLED", "maybe")
	_, err = Load("")
	assert.ErrorContains(t, err, "REDIS_ENABLED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"sqlite without path", func(c *Config) { c.Store.Driver = DriverSQLite; c.SQLite.Path = "" }, "sqlite.path"},
		{"no connections", func(c *Config) { c.Gateway.MaxConnections = 0 }, "gateway.max_connections"},
		{"ping after pong wait", func(c *Config) { c.Gateway.PingInterval = c.Gateway.PongWait }, "gateway.ping_interval"},
		{"no store timeout", func(c *Config) { c.Purchase.StoreTimeout = 0 }, "purchase.store_timeout"},
		{"no attempts", func(c *Config) { c.Purchase.MaxAttempts = 0 }, "purchase.max_attempts"},
		{"inverted backoff", func(c *Config) { c.Purchase.MaxBackoff = time.Millisecond }, "backoff"},
		{"no ledger attempts", func(c *Config) { c.Ledger.MaxAttempts = -1 }, "ledger.max_attempts"},
		{"negative sweep", func(c *Config) { c.Sweep.Interval = -time.Second }, "sweep.interval"},
		{"kafka without buffer", func(c *Config) { c.Kafka.Brokers = "k:9092"; c.Kafka.Buffer = 0 }, "kafka.buffer"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("TICKET_DOTENV_KEEP", "from-os")
	t.Setenv("TICKET_DOTENV_NEW", "")
	os.Unsetenv("TICKET_DOTENV_NEW")
	t.Setenv("TICKET_DOTENV_QUOTED", "")
	os.Unsetenv("TICKET_DOTENV_QUOTED")

	path := writeFile(t, ".env", `
# comment
TICKET_DOTENV_NEW=hello
export TICKET_DOTENV_QUOTED="with spaces"
TICKET_DOTENV_KEEP=from-file
not a pair
`)

	loaded, err := LoadDotEnv(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "hello", os.Getenv("TICKET_DOTENV_NEW"))
	assert.Equal(t, "with spaces", os.Getenv("TICKET_DOTENV_QUOTED"))
	assert.Equal(t, "from-os", os.Getenv("TICKET_DOTENV_KEEP"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.False(t, loaded)
}
