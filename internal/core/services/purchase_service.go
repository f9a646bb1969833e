package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/ports"
	"github.com/srgjo27/ticket_engine/internal/platform/clock"
)

const defaultStoreTimeout = 5 * time.Second

// PurchaseService coordinates a single purchase: validate, gate on the
// event status, reserve capacity through the Ledger and materialize Sold
// tickets in the same transaction. It keeps no per-request state and is
// safe for concurrent use.
type PurchaseService struct {
	tx       ports.Transactor
	events   ports.EventRepository
	tickets  ports.TicketRepository
	ledger   *Ledger
	cache    ports.EventCache
	observer ports.OutcomeObserver
	clock    clock.Clock
	logger   *slog.Logger

	retry        RetryPolicy
	storeTimeout time.Duration
}

type PurchaseOption func(*PurchaseService)

func WithEventCache(cache ports.EventCache) PurchaseOption {
	return func(s *PurchaseService) {
		s.cache = cache
	}
}

func WithObserver(observer ports.OutcomeObserver) PurchaseOption {
	return func(s *PurchaseService) {
		s.observer = observer
	}
}

func WithRetryPolicy(p RetryPolicy) PurchaseOption {
	return func(s *PurchaseService) {
		s.retry = p.normalized()
	}
}

// WithStoreTimeout bounds the whole store interaction of one purchase,
// retries included.
func WithStoreTimeout(d time.Duration) PurchaseOption {
	return func(s *PurchaseService) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func WithPurchaseLogger(logger *slog.Logger) PurchaseOption {
	return func(s *PurchaseService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewPurchaseService(
	tx ports.Transactor,
	events ports.EventRepository,
	tickets ports.TicketRepository,
	ledger *Ledger,
	clk clock.Clock,
	opts ...PurchaseOption,
) *PurchaseService {
	s := &PurchaseService{
		tx:           tx,
		events:       events,
		tickets:      tickets,
		ledger:       ledger,
		clock:        clk,
		logger:       slog.New(slog.DiscardHandler),
		retry:        DefaultRetryPolicy(),
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Purchase runs one all-or-nothing purchase. The store work is detached
// from ctx cancellation so a caller that goes away mid-request still gets a
// clean commit or rollback; it is bounded by the store timeout instead.
func (s *PurchaseService) Purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	started := time.Now()

	result, attempts, err := s.purchase(ctx, req)

	outcome := domain.NewPurchaseOutcome(req, result, err)
	outcome.Attempts = attempts
	outcome.Duration = time.Since(started)
	outcome.At = s.clock.Now()
	if s.observer != nil {
		s.observer.ObservePurchase(context.WithoutCancel(ctx), outcome)
	}

	return result, err
}

func (s *PurchaseService) purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, int, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	event, err := s.events.GetByID(storeCtx, req.EventID)
	if err != nil {
		return nil, 0, storeError(storeCtx, err)
	}
	if err := event.CheckPurchasable(); err != nil {
		return nil, 0, err
	}

	var result *domain.PurchaseResult
	attempts := 0
	for {
		attempts++
		result, err = s.commit(storeCtx, req)
		if err == nil || !domain.Retryable(err) || attempts >= s.retry.MaxAttempts {
			break
		}

		delay := s.retry.Backoff(attempts)
		s.logger.Warn("purchase hit transient store failure, retrying",
			"event_id", req.EventID,
			"attempt", attempts,
			"backoff", delay,
			"error", err,
		)
		if serr := sleepContext(storeCtx, delay); serr != nil {
			err = serr
			break
		}
	}
	if err != nil {
		return nil, attempts, storeError(storeCtx, err)
	}

	s.invalidate(storeCtx, req.EventID)
	return result, attempts, nil
}

// commit runs the critical section: reserve capacity, then create tickets.
// Either both are durable or neither is.
func (s *PurchaseService) commit(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	var result *domain.PurchaseResult

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		grant, err := s.ledger.ReserveCapacity(txCtx, req.EventID, req.Quantity)
		if err != nil {
			return err
		}

		tickets := domain.NewSoldTickets(grant, req.UserID, s.clock.Now())
		if err := s.tickets.CreateBatch(txCtx, tickets); err != nil {
			return fmt.Errorf("create tickets: %w", err)
		}

		ids := make([]uuid.UUID, len(tickets))
		for i := range tickets {
			ids[i] = tickets[i].ID
		}
		result = &domain.PurchaseResult{
			EventID:   req.EventID,
			UserID:    req.UserID,
			TicketIDs: ids,
			Remaining: grant.Remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PurchaseService) invalidate(ctx context.Context, eventID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		s.logger.Warn("failed to invalidate event cache", "event_id", eventID, "error", err)
	}
}
