package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/srgjo27/ticket_engine/internal/adapter/repository/postgres"
	"github.com/srgjo27/ticket_engine/internal/adapter/repository/postgres/migrations"
	"github.com/srgjo27/ticket_engine/internal/adapter/repository/sqlite"
	"github.com/srgjo27/ticket_engine/internal/core/ports"
	"github.com/srgjo27/ticket_engine/internal/platform/config"
	"github.com/srgjo27/ticket_engine/internal/platform/database"
)

// store bundles the repositories of the configured driver.
type store struct {
	tx      ports.Transactor
	events  ports.EventRepository
	tickets ports.TicketRepository
	ping    func(ctx context.Context) error
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	case config.DriverSQLite:
		return openSQLite(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store, error) {
	pg := cfg.Postgres
	db, err := database.NewPostgresDB(ctx, database.Config{
		Host:            pg.Host,
		Port:            pg.Port,
		User:            pg.User,
		Password:        pg.Password,
		DBName:          pg.DBName,
		SSLMode:         pg.SSLMode,
		MaxOpenConns:    pg.MaxOpenConns,
		MaxIdleConns:    pg.MaxIdleConns,
		ConnMaxLifetime: pg.ConnMaxLifetime,
		ConnectAttempts: pg.ConnectAttempts,
		ConnectBackoff:  pg.ConnectBackoff,
	}, logger)
	if err != nil {
		return nil, err
	}

	if pg.Migrate {
		if err := migrations.Apply(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("migrations applied", "files", migrations.Names())
	}

	return &store{
		tx:      postgres.NewTransactor(db),
		events:  postgres.NewEventRepository(db),
		tickets: postgres.NewTicketRepository(db),
		ping:    db.PingContext,
		close:   func() { closeDB(db, logger) },
	}, nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}

func openSQLite(cfg *config.Config, logger *slog.Logger) (*store, error) {
	pool, err := database.NewSQLitePool(database.SQLiteConfig{
		Path:      cfg.SQLite.Path,
		PoolSize:  cfg.SQLite.PoolSize,
		OnConnect: sqlite.PrepareConn,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &store{
		tx:      sqlite.NewTransactor(pool),
		events:  sqlite.NewEventRepository(pool),
		tickets: sqlite.NewTicketRepository(pool),
		ping:    func(ctx context.Context) error { return pingPool(ctx, pool) },
		close: func() {
			if err := pool.Close(); err != nil {
				logger.Warn("failed to close sqlite pool", "error", err)
			}
		},
	}, nil
}

func pingPool(ctx context.Context, pool *sqlitex.Pool) error {
	conn, err := pool.Take(ctx)
	if err != nil {
		return err
	}
	defer pool.Put(conn)
	return sqlitex.ExecuteTransient(conn, "SELECT 1", nil)
}
