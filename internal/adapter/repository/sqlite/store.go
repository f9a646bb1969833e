// Package sqlite is an embedded implementation of the repository ports on
// top of zombiezen.com/go/sqlite.
//
// Transactions start with BEGIN IMMEDIATE, so a transaction holds the
// database write lock from its first statement. That makes GetForUpdate
// a plain read inside a transaction: no other writer can interleave until
// commit. The price is that writers are serialized across the whole
// database, not per event.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	capacity    INTEGER NOT NULL CHECK (capacity >= 0),
	available   INTEGER NOT NULL,
	status      TEXT NOT NULL DEFAULT 'DRAFT',
	price_cents INTEGER NOT NULL DEFAULT 0,
	currency    TEXT NOT NULL DEFAULT '',
	starts_at   INTEGER,
	ends_at     INTEGER,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	CHECK (available >= 0 AND available <= capacity)
);

CREATE INDEX IF NOT EXISTS events_status_ends_at_idx ON events (status, ends_at);

CREATE TABLE IF NOT EXISTS tickets (
	id          TEXT PRIMARY KEY,
	event_id    INTEGER NOT NULL REFERENCES events (id),
	user_id     TEXT,
	status      TEXT NOT NULL,
	price_cents INTEGER NOT NULL DEFAULT 0,
	currency    TEXT NOT NULL DEFAULT '',
	seat        TEXT,
	tier        TEXT,
	issued_at   INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS tickets_event_id_idx ON tickets (event_id);
CREATE INDEX IF NOT EXISTS tickets_user_id_idx ON tickets (user_id);
`

// PrepareConn creates the schema. Pass it as the pool's OnConnect hook.
func PrepareConn(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite store: creating schema: %w", err)
	}
	return nil
}

type connKey struct{}

func connFromContext(ctx context.Context) *sqlite.Conn {
	conn, _ := ctx.Value(connKey{}).(*sqlite.Conn)
	return conn
}

// Transactor runs units of work in one IMMEDIATE transaction. The
// connection travels in the context and nested calls join it.
type Transactor struct {
	pool *sqlitex.Pool
}

func NewTransactor(pool *sqlitex.Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if connFromContext(ctx) != nil {
		return fn(ctx)
	}

	conn, err := t.pool.Take(ctx)
	if err != nil {
		return classify(fmt.Errorf("take connection: %w", err))
	}
	defer t.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}

	err = fn(context.WithValue(ctx, connKey{}, conn))
	endTransaction(&err)
	return classify(err)
}

// withConn runs fn on the transaction's connection, or on a pooled one
// when ctx carries no transaction.
func withConn(ctx context.Context, pool *sqlitex.Pool, fn func(conn *sqlite.Conn) error) error {
	if conn := connFromContext(ctx); conn != nil {
		return fn(conn)
	}

	conn, err := pool.Take(ctx)
	if err != nil {
		return classify(fmt.Errorf("take connection: %w", err))
	}
	defer pool.Put(conn)
	return fn(conn)
}

// classify marks lock contention and interrupted statements with
// ErrStoreUnavailable.
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}

	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked, sqlite.ResultInterrupt:
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
