package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

const ticketColumns = `id, event_id, user_id, status, price_cents, currency, seat, tier, issued_at, updated_at`

type TicketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// CreateBatch inserts all tickets or none of them.
func (r *TicketRepository) CreateBatch(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	if txFromContext(ctx) == nil {
		return NewTransactor(r.db).WithTx(ctx, func(txCtx context.Context) error {
			return r.CreateBatch(txCtx, tickets)
		})
	}
	tx := txFromContext(ctx)

	query := `
	INSERT INTO tickets (` + ticketColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return classify(fmt.Errorf("failed to prepare ticket statement: %w", err))
	}
	defer stmt.Close()

	for _, t := range tickets {
		_, err := stmt.ExecContext(ctx, t.ID, t.EventID, t.UserID, t.Status, t.PriceCents, t.Currency, t.Seat, t.Tier, t.IssuedAt, t.UpdatedAt)
		if err != nil {
			return classify(fmt.Errorf("failed to insert ticket %s: %w", t.ID, err))
		}
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return r.getOne(ctx, query, ticketID)
}

func (r *TicketRepository) GetForUpdate(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, ticketID)
}

func (r *TicketRepository) getOne(ctx context.Context, query string, ticketID uuid.UUID) (*domain.Ticket, error) {
	ticket, err := scanTicket(conn(ctx, r.db).QueryRowContext(ctx, query, ticketID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, classify(fmt.Errorf("get ticket %s: %w", ticketID, err))
	}
	return ticket, nil
}

func (r *TicketRepository) ListByEvent(ctx context.Context, eventID int64) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE event_id = $1 ORDER BY issued_at, id`
	return r.list(ctx, query, eventID)
}

func (r *TicketRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = $1 ORDER BY issued_at, id`
	return r.list(ctx, query, userID)
}

func (r *TicketRepository) list(ctx context.Context, query string, arg any) ([]domain.Ticket, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, classify(fmt.Errorf("list tickets: %w", err))
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

// Update persists status, owner, placement and timestamp if the stored
// status still equals previous.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket, previous domain.TicketStatus) error {
	query := `
	UPDATE tickets
	SET status = $1, user_id = $2, seat = $3, tier = $4, updated_at = $5
	WHERE id = $6 AND status = $7
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		ticket.Status, ticket.UserID, ticket.Seat, ticket.Tier, ticket.UpdatedAt, ticket.ID, previous)
	if err != nil {
		return classify(fmt.Errorf("update ticket: %w", err))
	}
	return expectOneRow(result, domain.ErrConcurrentUpdate)
}

// CountAllocated counts tickets that consumed capacity.
func (r *TicketRepository) CountAllocated(ctx context.Context, eventID int64) (int, error) {
	query := `
	SELECT COUNT(*) FROM tickets
	WHERE event_id = $1 AND status <> 'AVAILABLE'
	`

	var n int
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, eventID).Scan(&n); err != nil {
		return 0, classify(fmt.Errorf("count tickets: %w", err))
	}
	return n, nil
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var t domain.Ticket
	var userID uuid.NullUUID
	var seat, tier sql.NullString

	err := row.Scan(
		&t.ID,
		&t.EventID,
		&userID,
		&t.Status,
		&t.PriceCents,
		&t.Currency,
		&seat,
		&tier,
		&t.IssuedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		t.UserID = &userID.UUID
	}
	if seat.Valid {
		t.Seat = &seat.String
	}
	if tier.Valid {
		t.Tier = &tier.String
	}
	t.IssuedAt = t.IssuedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}
