package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/ports"
	"github.com/srgjo27/ticket_engine/internal/platform/clock"
)

// TicketService drives individual tickets through the state machine.
// Cancelling a ticket does not give capacity back to its event.
type TicketService struct {
	tx      ports.Transactor
	events  ports.EventRepository
	tickets ports.TicketRepository
	clock   clock.Clock
	logger  *slog.Logger
}

func NewTicketService(tx ports.Transactor, events ports.EventRepository, tickets ports.TicketRepository, clk clock.Clock, logger *slog.Logger) *TicketService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TicketService{
		tx:      tx,
		events:  events,
		tickets: tickets,
		clock:   clk,
		logger:  logger,
	}
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

// ListTickets fails with ErrEventNotFound for unknown events instead of
// returning an empty list.
func (s *TicketService) ListTickets(ctx context.Context, eventID int64) ([]domain.Ticket, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.tickets.ListByEvent(ctx, eventID)
}

// ListUserTickets returns every ticket owned by userID, oldest first.
func (s *TicketService) ListUserTickets(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}
	return s.tickets.ListByUser(ctx, userID)
}

func (s *TicketService) Reserve(ctx context.Context, ticketID, userID uuid.UUID) (*domain.Ticket, error) {
	return s.Transition(ctx, ticketID, domain.ActionReserve, &userID)
}

func (s *TicketService) Sell(ctx context.Context, ticketID, userID uuid.UUID) (*domain.Ticket, error) {
	return s.Transition(ctx, ticketID, domain.ActionSell, &userID)
}

func (s *TicketService) CheckIn(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	return s.Transition(ctx, ticketID, domain.ActionCheckIn, nil)
}

func (s *TicketService) Cancel(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	return s.Transition(ctx, ticketID, domain.ActionCancel, nil)
}

// Transition applies action to the ticket under a row lock.
func (s *TicketService) Transition(ctx context.Context, ticketID uuid.UUID, action domain.TicketAction, user *uuid.UUID) (*domain.Ticket, error) {
	var updated *domain.Ticket

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		ticket, err := s.tickets.GetForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		previous := ticket.Status
		if err := ticket.Apply(action, user, s.clock.Now()); err != nil {
			return err
		}
		if err := s.tickets.Update(txCtx, ticket, previous); err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket transitioned",
		"ticket_id", ticketID,
		"action", action,
		"status", updated.Status,
	)
	return updated, nil
}

// Assign sets the seat and tier of a Reserved or Sold ticket. The status is
// unchanged, so the write is a compare-and-set on the current status.
func (s *TicketService) Assign(ctx context.Context, ticketID uuid.UUID, p domain.Placement) (*domain.Ticket, error) {
	var updated *domain.Ticket

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		ticket, err := s.tickets.GetForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		if err := ticket.Assign(p, s.clock.Now()); err != nil {
			return err
		}
		if err := s.tickets.Update(txCtx, ticket, ticket.Status); err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket placed", "ticket_id", ticketID, "ticket", updated.Summary())
	return updated, nil
}
