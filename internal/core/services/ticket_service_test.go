package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/ports/mocks"
	"github.com/srgjo27/ticket_engine/internal/core/services"
	"github.com/srgjo27/ticket_engine/internal/platform/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ticketFixture struct {
	tx      *mocks.Transactor
	events  *mocks.EventRepository
	tickets *mocks.TicketRepository
	service *services.TicketService
}

func newTicketFixture(t *testing.T) *ticketFixture {
	f := &ticketFixture{
		tx:      mocks.NewTransactor(t),
		events:  mocks.NewEventRepository(t),
		tickets: mocks.NewTicketRepository(t),
	}
	f.service = services.NewTicketService(f.tx, f.events, f.tickets, clock.NewManual(fixedNow), nil)
	return f
}

func (f *ticketFixture) runTransactions() {
	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	})
}

func ticketIn(status domain.TicketStatus, owner *uuid.UUID) *domain.Ticket {
	t := domain.NewTicket(1, 5000, "EUR", fixedNow)
	t.Status = status
	t.UserID = owner
	return t
}

func TestTicketService_ReserveAvailableTicket(t *testing.T) {
	f := newTicketFixture(t)
	f.runTransactions()
	userID := uuid.New()
	ticket := ticketIn(domain.TicketAvailable, nil)

	f.tickets.On("GetForUpdate", mock.Anything, ticket.ID).Return(ticket, nil).Once()
	f.tickets.On("Update", mock.Anything, mock.MatchedBy(func(t *domain.Ticket) bool {
		return t.Status == domain.TicketReserved && *t.UserID == userID
	}), domain.TicketAvailable).Return(nil).Once()

	updated, err := f.service.Reserve(context.Background(), ticket.ID, userID)

	require.NoError(t, err)
	assert.Equal(t, domain.TicketReserved, updated.Status)
}

func TestTicketService_SellReservedTicketToOwner(t *testing.T) {
	f := newTicketFixture(t)
	f.runTransactions()
	owner := uuid.New()
	ticket := ticketIn(domain.TicketReserved, &owner)

	f.tickets.On("GetForUpdate", mock.Anything, ticket.ID).Return(ticket, nil).Once()
	f.tickets.On("Update", mock.Anything, ticket, domain.TicketReserved).Return(nil).Once()

	updated, err := f.service.Sell(context.Background(), ticket.ID, owner)

	require.NoError(t, err)
	assert.Equal(t, domain.TicketSold, updated.Status)
}

func TestTicketService_SellReservedTicketToStrangerFails(t *testing.T) {
	f := newTicketFixture(t)
	f.runTransactions()
	owner := uuid.New()
	ticket := ticketIn(domain.TicketReserved, &owner)

	f.tickets.On("GetForUpdate", mock.Anything, ticket.ID).Return(ticket, nil).Once()

	_, err := f.service.Sell(context.Background(), ticket.ID, uuid.New())

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.TicketReserved, invalid.From)
	assert.Equal(t, domain.ActionSell, invalid.Attempted)
	f.tickets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestTicketService_CheckInSoldTicket(t *testing.T) {
	f := newTicketFixture(t)
	f.runTransactions()
	owner := uuid.New()
	ticket := ticketIn(domain.TicketSold, &owner)

	f.tickets.On("GetForUpdate", mock.Anything, ticket.ID).Return(ticket, nil).Once()
	f.tickets.On("Update", mock.Anything, ticket, domain.TicketSold).Return(nil).Once()

	updated, err := f.service.CheckIn(context.Background(), ticket.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.TicketCheckedIn, updated.Status)
	assert.Equal(t, fixedNow, updated.UpdatedAt)
}

func TestTicketService_CheckedInTicketCannotBeCancelled(t *testing.T) {
	f := newTicketFixture(t)
	f.runTransactions()
	owner := uuid.New()
	ticket := ticketIn(domain.TicketCheckedIn, &owner)

	f.tickets.On("GetForUpdate", mock.Anything, ticket.ID).Return(ticket, nil).Once()

	_, err := f.service.Cancel(context.Background(), ticket.ID)

	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
}

func TestTicketService_CancelDoesNotRestoreCapacity(t *testing.T) {
	f := newTicketFixture(t)
	f.runTransactions()
	owner := uuid.New()
	ticket := ticketIn(domain.TicketSold, &owner)

	f.tickets.On("GetForUpdate", mock.Anything, ticket.ID).Return(ticket, nil).Once()
	f.tickets.On("Update", mock.Anything, ticket, domain.TicketSold).Return(nil).Once()

	updated, err := f.service.Cancel(context.Background(), ticket.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.TicketCancelled, updated.Status)
	f.events.AssertNotCalled(t, "UpdateAvailable", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTicketService_TransitionUnknownTicket(t *testing.T) {
	f := newTicketFixture(t)
	f.runTransactions()
	id := uuid.New()

	f.tickets.On("GetForUpdate", mock.Anything, id).Return(nil, domain.ErrTicketNotFound).Once()

	_, err := f.service.CheckIn(context.Background(), id)

	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestTicketService_ListTicketsRequiresEvent(t *testing.T) {
	f := newTicketFixture(t)
	f.events.On("GetByID", mock.Anything, int64(3)).Return(nil, domain.ErrEventNotFound).Once()

	_, err := f.service.ListTickets(context.Background(), 3)

	assert.ErrorIs(t, err, domain.ErrEventNotFound)
	f.tickets.AssertNotCalled(t, "ListByEvent", mock.Anything, mock.Anything)
}

func TestTicketService_ListTickets(t *testing.T) {
	f := newTicketFixture(t)
	owner := uuid.New()
	f.events.On("GetByID", mock.Anything, int64(1)).Return(eventWith(domain.EventPublished, 10, 8), nil).Once()
	f.tickets.On("ListByEvent", mock.Anything, int64(1)).Return([]domain.Ticket{
		*ticketIn(domain.TicketSold, &owner),
		*ticketIn(domain.TicketSold, &owner),
	}, nil).Once()

	tickets, err := f.service.ListTickets(context.Background(), 1)

	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestTicketService_AssignPlacement(t *testing.T) {
	f := newTicketFixture(t)
	f.runTransactions()
	owner := uuid.New()
	ticket := ticketIn(domain.TicketSold, &owner)
	seat, tier := "C-3", "Floor"

	f.tickets.On("GetForUpdate", mock.Anything, ticket.ID).Return(ticket, nil).Once()
	f.tickets.On("Update", mock.Anything, mock.MatchedBy(func(t *domain.Ticket) bool {
		return t.Seat != nil && *t.Seat == "C-3" && t.Tier != nil && *t.Tier == "Floor"
	}), domain.TicketSold).Return(nil).Once()

	updated, err := f.service.Assign(context.Background(), ticket.ID, domain.Placement{Seat: &seat, Tier: &tier})

	require.NoError(t, err)
	assert.Equal(t, domain.TicketSold, updated.Status)
	assert.Equal(t, fixedNow, updated.UpdatedAt)
}

func TestTicketService_AssignRefusedForCancelledTicket(t *testing.T) {
	f := newTicketFixture(t)
	f.runTransactions()
	ticket := ticketIn(domain.TicketCancelled, nil)
	seat := "C-3"

	f.tickets.On("GetForUpdate", mock.Anything, ticket.ID).Return(ticket, nil).Once()

	_, err := f.service.Assign(context.Background(), ticket.ID, domain.Placement{Seat: &seat})

	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
	f.tickets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestTicketService_ListUserTickets(t *testing.T) {
	f := newTicketFixture(t)
	owner := uuid.New()
	owned := []domain.Ticket{*ticketIn(domain.TicketSold, &owner), *ticketIn(domain.TicketCancelled, &owner)}

	f.tickets.On("ListByUser", mock.Anything, owner).Return(owned, nil).Once()

	tickets, err := f.service.ListUserTickets(context.Background(), owner)

	require.NoError(t, err)
	assert.Len(t, tickets, 2)

	_, err = f.service.ListUserTickets(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
