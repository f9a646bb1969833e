package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "github.com/lib/pq"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectAttempts and ConnectBackoff control how long startup waits for
	// the database to come up.
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// DSN renders cfg as a postgres:// URL with credentials escaped.
func (cfg Config) DSN() string {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// NewPostgresDB opens the pool and pings it until it answers, the attempts
// run out or ctx ends.
func NewPostgresDB(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	attempts := max(cfg.ConnectAttempts, 1)
	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	for i := 1; i <= attempts; i++ {
		logger.Info("connecting to database", "host", cfg.Host, "attempt", i, "max_attempts", attempts)

		pingCtx, cancel := context.WithTimeout(ctx, backoff)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			logger.Info("database connected", "host", cfg.Host, "dbname", cfg.DBName)
			return db, nil
		}
		if i == attempts {
			break
		}

		logger.Warn("database not ready yet", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	db.Close()
	return nil, fmt.Errorf("connect database after %d attempts: %w", attempts, err)
}
