package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCancelled EventStatus = "CANCELLED"
	EventCompleted EventStatus = "COMPLETED"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventCancelled, EventCompleted:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s EventStatus) Terminal() bool {
	return s == EventCancelled || s == EventCompleted
}

// MaxCapacity matches the INTEGER capacity column.
const MaxCapacity = math.MaxInt32

// eventTransitions lists every allowed lifecycle move.
var eventTransitions = map[EventStatus][]EventStatus{
	EventDraft:     {EventPublished, EventCancelled},
	EventPublished: {EventCancelled, EventCompleted},
}

type Event struct {
	ID          int64
	Title       string
	Description string
	Location    string
	Capacity    int
	Available   int
	Status      EventStatus
	PriceCents  int64
	Currency    string
	StartsAt    *time.Time
	EndsAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type NewEventParams struct {
	Title       string
	Description string
	Location    string
	Capacity    int
	PriceCents  int64
	Currency    string
	StartsAt    *time.Time
	EndsAt      *time.Time
}

// NewEvent builds a Draft event with its full capacity available.
func NewEvent(p NewEventParams, now time.Time) (*Event, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("%w: event title cannot be empty", ErrInvalidRequest)
	}
	if p.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", ErrInvalidRequest)
	}
	if p.Capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity must not exceed %d", ErrInvalidRequest, MaxCapacity)
	}
	if p.PriceCents < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidRequest)
	}
	if p.PriceCents > 0 && strings.TrimSpace(p.Currency) == "" {
		return nil, fmt.Errorf("%w: currency is required for priced events", ErrInvalidRequest)
	}
	if p.StartsAt != nil && p.EndsAt != nil && !p.StartsAt.Before(*p.EndsAt) {
		return nil, fmt.Errorf("%w: start time must be before end time", ErrInvalidRequest)
	}

	return &Event{
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Location:    p.Location,
		Capacity:    p.Capacity,
		Available:   p.Capacity,
		Status:      EventDraft,
		PriceCents:  p.PriceCents,
		Currency:    strings.ToUpper(strings.TrimSpace(p.Currency)),
		StartsAt:    p.StartsAt,
		EndsAt:      p.EndsAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (e *Event) IsPurchasable() bool {
	return e.Status == EventPublished
}

// CheckPurchasable gates purchases on the Published status.
func (e *Event) CheckPurchasable() error {
	if !e.IsPurchasable() {
		return &EventNotActiveError{Status: e.Status}
	}
	return nil
}

// Reserve computes the capacity grant for quantity units without mutating e.
// The caller persists Reservation.Remaining as the new availability.
func (e *Event) Reserve(quantity int) (Reservation, error) {
	if quantity <= 0 {
		return Reservation{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	if err := e.CheckPurchasable(); err != nil {
		return Reservation{}, err
	}
	if e.Available < quantity {
		return Reservation{}, &InsufficientSupplyError{Available: e.Available, Requested: quantity}
	}

	return Reservation{
		EventID:    e.ID,
		Quantity:   quantity,
		Previous:   e.Available,
		Remaining:  e.Available - quantity,
		PriceCents: e.PriceCents,
		Currency:   e.Currency,
	}, nil
}

func (e *Event) CanTransitionTo(next EventStatus) bool {
	for _, s := range eventTransitions[e.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the event through its lifecycle.
func (e *Event) TransitionTo(next EventStatus, now time.Time) error {
	if !e.CanTransitionTo(next) {
		return &InvalidEventTransitionError{From: e.Status, To: next}
	}
	e.Status = next
	e.UpdatedAt = now
	return nil
}

// IsUpcoming reports whether the event has a start time after now.
func (e *Event) IsUpcoming(now time.Time) bool {
	return e.StartsAt != nil && e.StartsAt.After(now)
}

// CheckInvariant verifies 0 <= available <= capacity.
func (e *Event) CheckInvariant() error {
	if e.Available < 0 || e.Available > e.Capacity {
		return fmt.Errorf("event %d availability %d outside [0, %d]", e.ID, e.Available, e.Capacity)
	}
	return nil
}

func (e *Event) Summary() string {
	return fmt.Sprintf("%s (%d/%d available, status: %s)", e.Title, e.Available, e.Capacity, e.Status)
}

// EventFilter narrows an event listing. The zero value matches every event.
type EventFilter struct {
	Query    string
	Status   EventStatus
	Upcoming bool
}

func (f EventFilter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("%w: unknown event status %q", ErrInvalidRequest, f.Status)
	}
	return nil
}

// Matches applies every set criterion. Query is a case-insensitive
// substring match against the event's text fields.
func (f EventFilter) Matches(e *Event, now time.Time) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Upcoming && !e.IsUpcoming(now) {
		return false
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	for _, field := range []string{e.Title, e.Description, e.Location} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
