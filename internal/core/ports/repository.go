package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

// Transactor runs fn inside a single store transaction carried by the
// context passed to fn. Repositories called with that context join the
// transaction; a nested WithTx joins the outer one.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventRepository interface {
	GetByID(ctx context.Context, eventID int64) (*domain.Event, error)
	List(ctx context.Context) ([]domain.Event, error)
	Create(ctx context.Context, event *domain.Event) error

	// GetForUpdate reads the event and, where the store supports it, holds a
	// row lock until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, eventID int64) (*domain.Event, error)

	// UpdateAvailable writes next only if the stored availability still
	// equals expected; otherwise it returns domain.ErrConcurrentUpdate.
	UpdateAvailable(ctx context.Context, eventID int64, expected, next int) error

	// UpdateStatus is a compare-and-set on the event status.
	UpdateStatus(ctx context.Context, eventID int64, from, to domain.EventStatus) error

	ListEndedPublished(ctx context.Context, now time.Time, limit int) ([]int64, error)
}

type TicketRepository interface {
	CreateBatch(ctx context.Context, tickets []domain.Ticket) error
	GetByID(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error)
	GetForUpdate(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error)
	ListByEvent(ctx context.Context, eventID int64) ([]domain.Ticket, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error)

	// Update persists the status, owner and placement of ticket if its
	// stored status is still previous.
	Update(ctx context.Context, ticket *domain.Ticket, previous domain.TicketStatus) error

	// CountAllocated counts the tickets of an event whose status is Allocated.
	CountAllocated(ctx context.Context, eventID int64) (int, error)
}
