package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PurchaseRequest lives for one coordination call only.
type PurchaseRequest struct {
	UserID   uuid.UUID
	EventID  int64
	Quantity int
}

func (r PurchaseRequest) Validate() error {
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	if r.EventID <= 0 {
		return fmt.Errorf("%w: event id must be positive", ErrInvalidRequest)
	}
	if r.UserID == uuid.Nil {
		return fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}
	return nil
}

// Reservation is the capacity grant produced by a successful decrement.
type Reservation struct {
	EventID    int64
	Quantity   int
	Previous   int
	Remaining  int
	PriceCents int64
	Currency   string
}

type PurchaseResult struct {
	EventID   int64
	UserID    uuid.UUID
	TicketIDs []uuid.UUID
	Remaining int
}

func (r *PurchaseResult) Message() string {
	return fmt.Sprintf("Successfully purchased %d ticket(s) for event %d", len(r.TicketIDs), r.EventID)
}

// PurchaseOutcome describes one finished purchase attempt, successful or not.
type PurchaseOutcome struct {
	Request   PurchaseRequest
	TicketIDs []uuid.UUID
	Remaining int
	Kind      FailureKind
	Reason    string
	Attempts  int
	Duration  time.Duration
	At        time.Time
}

func (o PurchaseOutcome) Succeeded() bool {
	return o.Kind == ""
}

// NewPurchaseOutcome folds a coordinator result or error into an outcome.
func NewPurchaseOutcome(req PurchaseRequest, result *PurchaseResult, err error) PurchaseOutcome {
	out := PurchaseOutcome{Request: req}
	if err != nil {
		out.Kind = KindOf(err)
		out.Reason = err.Error()
		return out
	}
	if result != nil {
		out.TicketIDs = result.TicketIDs
		out.Remaining = result.Remaining
		out.Reason = result.Message()
	}
	return out
}
