package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

const ticketColumns = `id, event_id, user_id, status, price_cents, currency, seat, tier, issued_at, updated_at`

type TicketRepository struct {
	pool *sqlitex.Pool
}

func NewTicketRepository(pool *sqlitex.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

// CreateBatch inserts all tickets or none of them.
func (r *TicketRepository) CreateBatch(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if connFromContext(ctx) == nil {
		return NewTransactor(r.pool).WithTx(ctx, func(txCtx context.Context) error {
			return r.CreateBatch(txCtx, tickets)
		})
	}

	query := `INSERT INTO tickets (` + ticketColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	conn := connFromContext(ctx)
	for _, t := range tickets {
		err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{
				t.ID.String(),
				t.EventID,
				optionalUUID(t.UserID),
				string(t.Status),
				t.PriceCents,
				t.Currency,
				optionalString(t.Seat),
				optionalString(t.Tier),
				t.IssuedAt.UnixNano(),
				t.UpdatedAt.UnixNano(),
			},
		})
		if err != nil {
			return classify(fmt.Errorf("failed to insert ticket %s: %w", t.ID, err))
		}
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := withConn(ctx, r.pool, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{ticketID.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t, err := readTicket(stmt)
				ticket = t
				return err
			},
		})
	})
	if err != nil {
		return nil, classify(fmt.Errorf("get ticket %s: %w", ticketID, err))
	}
	if ticket == nil {
		return nil, domain.ErrTicketNotFound
	}
	return ticket, nil
}

func (r *TicketRepository) GetForUpdate(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	return r.GetByID(ctx, ticketID)
}

func (r *TicketRepository) ListByEvent(ctx context.Context, eventID int64) ([]domain.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE event_id = ? ORDER BY issued_at, id`, eventID)
}

func (r *TicketRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE user_id = ? ORDER BY issued_at, id`, userID.String())
}

func (r *TicketRepository) list(ctx context.Context, query string, arg any) ([]domain.Ticket, error) {
	tickets := []domain.Ticket{}
	err := withConn(ctx, r.pool, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t, err := readTicket(stmt)
				if err != nil {
					return err
				}
				tickets = append(tickets, *t)
				return nil
			},
		})
	})
	if err != nil {
		return nil, classify(fmt.Errorf("list tickets: %w", err))
	}
	return tickets, nil
}

func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket, previous domain.TicketStatus) error {
	query := `UPDATE tickets SET status = ?, user_id = ?, seat = ?, tier = ?, updated_at = ? WHERE id = ? AND status = ?`

	return withConn(ctx, r.pool, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{
				string(ticket.Status),
				optionalUUID(ticket.UserID),
				optionalString(ticket.Seat),
				optionalString(ticket.Tier),
				ticket.UpdatedAt.UnixNano(),
				ticket.ID.String(),
				string(previous),
			},
		})
		if err != nil {
			return classify(fmt.Errorf("update ticket: %w", err))
		}
		if conn.Changes() == 0 {
			return domain.ErrConcurrentUpdate
		}
		return nil
	})
}

func (r *TicketRepository) CountAllocated(ctx context.Context, eventID int64) (int, error) {
	var n int
	err := withConn(ctx, r.pool, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT COUNT(*) FROM tickets WHERE event_id = ? AND status <> 'AVAILABLE'`, &sqlitex.ExecOptions{
			Args: []any{eventID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	if err != nil {
		return 0, classify(fmt.Errorf("count tickets: %w", err))
	}
	return n, nil
}

func readTicket(stmt *sqlite.Stmt) (*domain.Ticket, error) {
	id, err := uuid.Parse(stmt.ColumnText(0))
	if err != nil {
		return nil, fmt.Errorf("ticket id: %w", err)
	}

	t := &domain.Ticket{
		ID:         id,
		EventID:    stmt.ColumnInt64(1),
		Status:     domain.TicketStatus(stmt.ColumnText(3)),
		PriceCents: stmt.ColumnInt64(4),
		Currency:   stmt.ColumnText(5),
		IssuedAt:   fromNanos(stmt.ColumnInt64(8)),
		UpdatedAt:  fromNanos(stmt.ColumnInt64(9)),
	}
	if !stmt.ColumnIsNull(2) {
		userID, err := uuid.Parse(stmt.ColumnText(2))
		if err != nil {
			return nil, fmt.Errorf("ticket user id: %w", err)
		}
		t.UserID = &userID
	}
	if !stmt.ColumnIsNull(6) {
		seat := stmt.ColumnText(6)
		t.Seat = &seat
	}
	if !stmt.ColumnIsNull(7) {
		tier := stmt.ColumnText(7)
		t.Tier = &tier
	}
	return t, nil
}

func optionalUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
