package ports

import (
	"context"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

// EventCache holds read-model snapshots of events. It is never consulted
// for purchase decisions.
//
// Every Invalidate advances the event's generation. Get returns the current
// generation even on a miss, and Set tags the snapshot with the generation
// the caller read before loading the event. A snapshot tagged with an older
// generation is reported as a miss.
type EventCache interface {
	Get(ctx context.Context, eventID int64) (*domain.Event, uint64, error)
	Set(ctx context.Context, event *domain.Event, generation uint64) error
	Invalidate(ctx context.Context, eventID int64) error
}

// OutcomeObserver is notified once per finished purchase attempt.
type OutcomeObserver interface {
	ObservePurchase(ctx context.Context, outcome domain.PurchaseOutcome)
}
