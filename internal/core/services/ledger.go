package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/ports"
)

const defaultLedgerAttempts = 5

// Ledger is the only writer of an event's availability counter.
//
// ReserveCapacity reads the event through GetForUpdate and writes the new
// counter with a compare-and-set. Stores that lock the row make the CAS
// always succeed; stores that don't fall back to a bounded retry loop with
// randomized backoff, after which the call fails with ErrStoreUnavailable.
type Ledger struct {
	events      ports.EventRepository
	maxAttempts int
	logger      *slog.Logger
}

type LedgerOption func(*Ledger)

func WithLedgerAttempts(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLedger(events ports.EventRepository, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		events:      events,
		maxAttempts: defaultLedgerAttempts,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ReserveCapacity atomically checks and decrements the availability of
// eventID by quantity. Call it inside Transactor.WithTx when the grant must
// commit together with other writes.
func (l *Ledger) ReserveCapacity(ctx context.Context, eventID int64, quantity int) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidRequest)
	}

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		event, err := l.events.GetForUpdate(ctx, eventID)
		if err != nil {
			return domain.Reservation{}, err
		}
		if err := event.CheckInvariant(); err != nil {
			l.logger.Error("stored availability out of bounds", "event_id", eventID, "error", err)
			return domain.Reservation{}, err
		}

		grant, err := event.Reserve(quantity)
		if err != nil {
			return domain.Reservation{}, err
		}

		err = l.events.UpdateAvailable(ctx, eventID, grant.Previous, grant.Remaining)
		if err == nil {
			return grant, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return domain.Reservation{}, err
		}

		l.logger.Debug("availability changed concurrently, retrying",
			"event_id", eventID,
			"attempt", attempt,
		)
		if attempt < l.maxAttempts {
			if err := sleepContext(ctx, time.Millisecond+rand.N(9*time.Millisecond)); err != nil {
				return domain.Reservation{}, err
			}
		}
	}

	return domain.Reservation{}, fmt.Errorf("%w: availability of event %d kept changing after %d attempts",
		domain.ErrStoreUnavailable, eventID, l.maxAttempts)
}
