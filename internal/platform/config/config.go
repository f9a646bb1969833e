// Package config loads the engine configuration.
//
// Values come from, in increasing priority: built-in defaults, a YAML file
// named by the --config flag or TICKET_CONFIG, and environment variables.
// An optional .env file is read into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Purchase PurchaseConfig `yaml:"purchase"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type GatewayConfig struct {
	MaxConnections  int           `yaml:"max_connections"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongWait        time.Duration `yaml:"pong_wait"`
	WriteWait       time.Duration `yaml:"write_wait"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
}

type StoreConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `yaml:"driver"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff"`
	// Migrate applies the embedded schema at startup.
	Migrate bool `yaml:"migrate"`
}

type SQLiteConfig struct {
	Path     string `yaml:"path"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	// Enabled turns the event read cache on.
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	EventTTL time.Duration `yaml:"event_ttl"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type KafkaConfig struct {
	// Brokers is a comma separated list. Empty disables outcome publishing.
	Brokers string `yaml:"brokers"`
	// Topic defaults to the purchase outcome topic when empty.
	Topic  string `yaml:"topic"`
	Buffer int    `yaml:"buffer"`
}

type PurchaseConfig struct {
	StoreTimeout time.Duration `yaml:"store_timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseBackoff  time.Duration `yaml:"base_backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
}

type LedgerConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type SweepConfig struct {
	// Interval between completion sweeps. Zero disables the sweep.
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Gateway: GatewayConfig{
			MaxConnections:  10000,
			PingInterval:    54 * time.Second,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
			MaxMessageBytes: 4096,
		},
		Store: StoreConfig{Driver: DriverPostgres},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			DBName:          "ticket_engine",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectAttempts: 10,
			ConnectBackoff:  2 * time.Second,
			Migrate:         true,
		},
		SQLite: SQLiteConfig{
			Path: "ticket_engine.db",
		},
		Redis: RedisConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     "6379",
			EventTTL: 30 * time.Second,
		},
		Kafka: KafkaConfig{
			Buffer: 1024,
		},
		Purchase: PurchaseConfig{
			StoreTimeout: 5 * time.Second,
			MaxAttempts:  3,
			BaseBackoff:  25 * time.Millisecond,
			MaxBackoff:   250 * time.Millisecond,
		},
		Ledger: LedgerConfig{MaxAttempts: 5},
		Sweep:  SweepConfig{Interval: time.Minute},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. path may be empty, in which case
// TICKET_CONFIG is consulted and, failing that, only defaults and the
// environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TICKET_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("HTTP_ADDR", &c.Server.Addr)
	str("STORE_DRIVER", &c.Store.Driver)
	str("DB_HOST", &c.Postgres.Host)
	str("DB_PORT", &c.Postgres.Port)
	str("DB_USER", &c.Postgres.User)
	str("DB_PASSWORD", &c.Postgres.Password)
	str("DB_NAME", &c.Postgres.DBName)
	str("SQLITE_PATH", &c.SQLite.Path)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PORT", &c.Redis.Port)
	str("KAFKA_BROKERS", &c.Kafka.Brokers)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("REDIS_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REDIS_ENABLED: %w", err)
		}
		c.Redis.Enabled = enabled
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.Host == "" || c.Postgres.DBName == "" {
			errs = append(errs, errors.New("postgres.host and postgres.dbname are required"))
		}
	case DriverSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Store.Driver))
	}
	if c.Gateway.MaxConnections <= 0 {
		errs = append(errs, errors.New("gateway.max_connections must be positive"))
	}
	if c.Gateway.PongWait <= 0 || c.Gateway.PingInterval <= 0 || c.Gateway.PingInterval >= c.Gateway.PongWait {
		errs = append(errs, errors.New("gateway.ping_interval must be positive and shorter than gateway.pong_wait"))
	}
	if c.Purchase.StoreTimeout <= 0 {
		errs = append(errs, errors.New("purchase.store_timeout must be positive"))
	}
	if c.Purchase.MaxAttempts <= 0 {
		errs = append(errs, errors.New("purchase.max_attempts must be positive"))
	}
	if c.Purchase.BaseBackoff < 0 || c.Purchase.MaxBackoff < c.Purchase.BaseBackoff {
		errs = append(errs, errors.New("purchase backoff must satisfy 0 <= base_backoff <= max_backoff"))
	}
	if c.Ledger.MaxAttempts <= 0 {
		errs = append(errs, errors.New("ledger.max_attempts must be positive"))
	}
	if c.Sweep.Interval < 0 {
		errs = append(errs, errors.New("sweep.interval must not be negative"))
	}
	if c.Redis.Enabled && c.Redis.EventTTL <= 0 {
		errs = append(errs, errors.New("redis.event_ttl must be positive"))
	}
	if c.Kafka.Brokers != "" && c.Kafka.Buffer <= 0 {
		errs = append(errs, errors.New("kafka.buffer must be positive when brokers are set"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "auto":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json, text or auto, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
