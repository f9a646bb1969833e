package sqlite

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

const eventColumns = `id, title, description, location, capacity, available, status, price_cents, currency, starts_at, ends_at, created_at, updated_at`

type EventRepository struct {
	pool *sqlitex.Pool
}

func NewEventRepository(pool *sqlitex.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) GetByID(ctx context.Context, eventID int64) (*domain.Event, error) {
	var event *domain.Event
	err := withConn(ctx, r.pool, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+eventColumns+` FROM events WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{eventID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				event = readEvent(stmt)
				return nil
			},
		})
	})
	if err != nil {
		return nil, classify(fmt.Errorf("get event %d: %w", eventID, err))
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	return event, nil
}

// GetForUpdate is GetByID: inside a transaction the write lock is already
// held.
func (r *EventRepository) GetForUpdate(ctx context.Context, eventID int64) (*domain.Event, error) {
	return r.GetByID(ctx, eventID)
}

func (r *EventRepository) List(ctx context.Context) ([]domain.Event, error) {
	events := []domain.Event{}
	err := withConn(ctx, r.pool, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+eventColumns+` FROM events ORDER BY id`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				events = append(events, *readEvent(stmt))
				return nil
			},
		})
	})
	if err != nil {
		return nil, classify(fmt.Errorf("list events: %w", err))
	}
	return events, nil
}

func (r *EventRepository) Create(ctx context.Context, event *domain.Event) error {
	query := `
	INSERT INTO events (title, description, location, capacity, available, status, price_cents, currency, starts_at, ends_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return withConn(ctx, r.pool, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{
				event.Title,
				event.Description,
				event.Location,
				event.Capacity,
				event.Available,
				string(event.Status),
				event.PriceCents,
				event.Currency,
				optionalNanos(event.StartsAt),
				optionalNanos(event.EndsAt),
				event.CreatedAt.UnixNano(),
				event.UpdatedAt.UnixNano(),
			},
		})
		if err != nil {
			return classify(fmt.Errorf("insert event: %w", err))
		}
		event.ID = conn.LastInsertRowID()
		return nil
	})
}

func (r *EventRepository) UpdateAvailable(ctx context.Context, eventID int64, expected, next int) error {
	query := `UPDATE events SET available = ?, updated_at = ? WHERE id = ? AND available = ?`
	return r.compareAndSet(ctx, query, next, time.Now().UnixNano(), eventID, expected)
}

func (r *EventRepository) UpdateStatus(ctx context.Context, eventID int64, from, to domain.EventStatus) error {
	query := `UPDATE events SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	return r.compareAndSet(ctx, query, string(to), time.Now().UnixNano(), eventID, string(from))
}

func (r *EventRepository) compareAndSet(ctx context.Context, query string, args ...any) error {
	return withConn(ctx, r.pool, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
			return classify(fmt.Errorf("update event: %w", err))
		}
		if conn.Changes() == 0 {
			return domain.ErrConcurrentUpdate
		}
		return nil
	})
}

func (r *EventRepository) ListEndedPublished(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	query := `
	SELECT id FROM events
	WHERE status = 'PUBLISHED' AND ends_at IS NOT NULL AND ends_at < ?
	ORDER BY ends_at
	LIMIT ?
	`

	var ids []int64
	err := withConn(ctx, r.pool, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{now.UnixNano(), limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnInt64(0))
				return nil
			},
		})
	})
	if err != nil {
		return nil, classify(fmt.Errorf("list ended events: %w", err))
	}
	return ids, nil
}

func readEvent(stmt *sqlite.Stmt) *domain.Event {
	return &domain.Event{
		ID:          stmt.ColumnInt64(0),
		Title:       stmt.ColumnText(1),
		Description: stmt.ColumnText(2),
		Location:    stmt.ColumnText(3),
		Capacity:    stmt.ColumnInt(4),
		Available:   stmt.ColumnInt(5),
		Status:      domain.EventStatus(stmt.ColumnText(6)),
		PriceCents:  stmt.ColumnInt64(7),
		Currency:    stmt.ColumnText(8),
		StartsAt:    readOptionalTime(stmt, 9),
		EndsAt:      readOptionalTime(stmt, 10),
		CreatedAt:   fromNanos(stmt.ColumnInt64(11)),
		UpdatedAt:   fromNanos(stmt.ColumnInt64(12)),
	}
}

func optionalNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func readOptionalTime(stmt *sqlite.Stmt, col int) *time.Time {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	t := fromNanos(stmt.ColumnInt64(col))
	return &t
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
