package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/ports"
	"github.com/srgjo27/ticket_engine/internal/platform/clock"
)

const sweepBatchSize = 100

// Inventory is a point-in-time view of an event's capacity accounting.
type Inventory struct {
	EventID   int64
	Capacity  int
	Available int
	Allocated int
}

type EventService struct {
	tx      ports.Transactor
	events  ports.EventRepository
	tickets ports.TicketRepository
	cache   ports.EventCache
	clock   clock.Clock
	logger  *slog.Logger
}

func NewEventService(tx ports.Transactor, events ports.EventRepository, tickets ports.TicketRepository, cache ports.EventCache, clk clock.Clock, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EventService{
		tx:      tx,
		events:  events,
		tickets: tickets,
		cache:   cache,
		clock:   clk,
		logger:  logger,
	}
}

func (s *EventService) CreateEvent(ctx context.Context, params domain.NewEventParams) (*domain.Event, error) {
	event, err := domain.NewEvent(params, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}

	s.logger.Info("event created", "event_id", event.ID, "event", event.Summary())
	return event, nil
}

// GetEvent serves from the read cache when possible. A fill carries the
// generation seen before the store read, so it cannot outlive an
// invalidation that happened in between.
func (s *EventService) GetEvent(ctx context.Context, eventID int64) (*domain.Event, error) {
	var generation uint64
	if s.cache != nil {
		cached, gen, err := s.cache.Get(ctx, eventID)
		if err != nil {
			s.logger.Warn("event cache read failed", "event_id", eventID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
		generation = gen
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, event, generation); err != nil {
			s.logger.Warn("event cache write failed", "event_id", eventID, "error", err)
		}
	}
	return event, nil
}

// ListEvents returns the events that match filter.
func (s *EventService) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	events, err := s.events.List(ctx)
	if err != nil {
		return nil, err
	}
	if filter == (domain.EventFilter{}) {
		return events, nil
	}

	now := s.clock.Now()
	matched := []domain.Event{}
	for i := range events {
		if filter.Matches(&events[i], now) {
			matched = append(matched, events[i])
		}
	}
	return matched, nil
}

// GetInventory reads the event and its allocated ticket count in one
// transaction.
func (s *EventService) GetInventory(ctx context.Context, eventID int64) (Inventory, error) {
	var inv Inventory
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetByID(txCtx, eventID)
		if err != nil {
			return err
		}
		allocated, err := s.tickets.CountAllocated(txCtx, eventID)
		if err != nil {
			return err
		}
		inv = Inventory{
			EventID:   event.ID,
			Capacity:  event.Capacity,
			Available: event.Available,
			Allocated: allocated,
		}
		return nil
	})
	return inv, err
}

func (s *EventService) Publish(ctx context.Context, eventID int64) (*domain.Event, error) {
	return s.transition(ctx, eventID, domain.EventPublished)
}

// Cancel stops future purchases. Tickets already sold are not touched.
func (s *EventService) Cancel(ctx context.Context, eventID int64) (*domain.Event, error) {
	return s.transition(ctx, eventID, domain.EventCancelled)
}

func (s *EventService) Complete(ctx context.Context, eventID int64) (*domain.Event, error) {
	return s.transition(ctx, eventID, domain.EventCompleted)
}

func (s *EventService) transition(ctx context.Context, eventID int64, to domain.EventStatus) (*domain.Event, error) {
	var updated *domain.Event

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.events.GetForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}
		from := event.Status
		if err := event.TransitionTo(to, s.clock.Now()); err != nil {
			return err
		}
		if err := s.events.UpdateStatus(txCtx, eventID, from, to); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, eventID); err != nil {
			s.logger.Warn("failed to invalidate event cache", "event_id", eventID, "error", err)
		}
	}
	s.logger.Info("event status changed", "event_id", eventID, "status", to)
	return updated, nil
}

// RunCompletionSweep periodically completes published events whose end
// time has passed. It returns when ctx is done.
func (s *EventService) RunCompletionSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("completion sweep started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("completion sweep stopped")
			return
		case <-ticker.C:
			s.CompleteEndedEvents(ctx)
		}
	}
}

// CompleteEndedEvents runs one sweep pass and returns how many events were
// completed.
func (s *EventService) CompleteEndedEvents(ctx context.Context) int {
	ids, err := s.events.ListEndedPublished(ctx, s.clock.Now(), sweepBatchSize)
	if err != nil {
		s.logger.Error("failed to list ended events", "error", err)
		return 0
	}

	completed := 0
	for _, id := range ids {
		if _, err := s.Complete(ctx, id); err != nil {
			s.logger.Warn("failed to complete event", "event_id", id, "error", err)
			continue
		}
		completed++
	}
	if completed > 0 {
		s.logger.Info("ended events completed", "count", completed)
	}
	return completed
}
