package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

const eventColumns = `id, title, description, location, capacity, available, status, price_cents, currency, starts_at, ends_at, created_at, updated_at`

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByID(ctx context.Context, eventID int64) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return r.getOne(ctx, query, eventID)
}

// GetForUpdate locks the event row until the surrounding transaction ends.
func (r *EventRepository) GetForUpdate(ctx context.Context, eventID int64) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, eventID)
}

func (r *EventRepository) getOne(ctx context.Context, query string, eventID int64) (*domain.Event, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, query, eventID)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, classify(fmt.Errorf("get event %d: %w", eventID, err))
	}
	return event, nil
}

func (r *EventRepository) List(ctx context.Context) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, classify(fmt.Errorf("list events: %w", err))
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, classify(fmt.Errorf("scan event: %w", err))
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return events, nil
}

func (r *EventRepository) Create(ctx context.Context, event *domain.Event) error {
	query := `
	INSERT INTO events (title, description, location, capacity, available, status, price_cents, currency, starts_at, ends_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		event.Title,
		event.Description,
		event.Location,
		event.Capacity,
		event.Available,
		event.Status,
		event.PriceCents,
		event.Currency,
		event.StartsAt,
		event.EndsAt,
		event.CreatedAt,
		event.UpdatedAt,
	).Scan(&event.ID)
	if err != nil {
		return classify(fmt.Errorf("insert event: %w", err))
	}
	return nil
}

// UpdateAvailable writes next only if the counter still equals expected.
func (r *EventRepository) UpdateAvailable(ctx context.Context, eventID int64, expected, next int) error {
	query := `
	UPDATE events
	SET available = $1, updated_at = NOW()
	WHERE id = $2 AND available = $3
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, next, eventID, expected)
	if err != nil {
		if isCode(err, "23514") {
			return fmt.Errorf("availability %d rejected for event %d: %w", next, eventID, err)
		}
		return classify(fmt.Errorf("update availability: %w", err))
	}
	return expectOneRow(result, domain.ErrConcurrentUpdate)
}

func (r *EventRepository) UpdateStatus(ctx context.Context, eventID int64, from, to domain.EventStatus) error {
	query := `
	UPDATE events
	SET status = $1, updated_at = NOW()
	WHERE id = $2 AND status = $3
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, to, eventID, from)
	if err != nil {
		return classify(fmt.Errorf("update event status: %w", err))
	}
	return expectOneRow(result, domain.ErrConcurrentUpdate)
}

func (r *EventRepository) ListEndedPublished(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	query := `
	SELECT id FROM events
	WHERE status = 'PUBLISHED' AND ends_at IS NOT NULL AND ends_at < $1
	ORDER BY ends_at
	LIMIT $2
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("list ended events: %w", err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	var startsAt, endsAt sql.NullTime

	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.Capacity,
		&event.Available,
		&event.Status,
		&event.PriceCents,
		&event.Currency,
		&startsAt,
		&endsAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startsAt.Valid {
		t := startsAt.Time.UTC()
		event.StartsAt = &t
	}
	if endsAt.Valid {
		t := endsAt.Time.UTC()
		event.EndsAt = &t
	}
	event.CreatedAt = event.CreatedAt.UTC()
	event.UpdatedAt = event.UpdatedAt.UTC()
	return &event, nil
}

func expectOneRow(result sql.Result, stale error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return stale
	}
	return nil
}
