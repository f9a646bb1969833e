package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrEventNotFound    = errors.New("event not found")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrProtocol         = errors.New("invalid message format")

	// ErrCommitUnknown means the store lost contact during COMMIT, so the
	// transaction may or may not have been applied. It is never retried.
	ErrCommitUnknown = errors.New("store unavailable: commit outcome unknown")

	// ErrConcurrentUpdate is returned by compare-and-set writes whose expected
	// value no longer matches the stored row.
	ErrConcurrentUpdate = errors.New("concurrent update")
)

type EventNotActiveError struct {
	Status EventStatus
}

func (e *EventNotActiveError) Error() string {
	return fmt.Sprintf("Event is not open for sale (status: %s)", e.Status)
}

type InsufficientSupplyError struct {
	Available int
	Requested int
}

func (e *InsufficientSupplyError) Error() string {
	return fmt.Sprintf("Insufficient tickets supply. Available: %d, Requested: %d", e.Available, e.Requested)
}

type InvalidTransitionError struct {
	From      TicketStatus
	Attempted TicketAction
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s ticket in status %s", e.Attempted, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

type InvalidEventTransitionError struct {
	From EventStatus
	To   EventStatus
}

func (e *InvalidEventTransitionError) Error() string {
	return fmt.Sprintf("cannot move event from %s to %s", e.From, e.To)
}

// FailureKind is the wire-level classification of an error.
type FailureKind string

const (
	KindInvalidRequest    FailureKind = "invalid_request"
	KindEventNotFound     FailureKind = "event_not_found"
	KindEventNotActive    FailureKind = "event_not_active"
	KindInsufficientStock FailureKind = "insufficient_supply"
	KindInvalidTransition FailureKind = "invalid_transition"
	KindTicketNotFound    FailureKind = "ticket_not_found"
	KindStoreUnavailable  FailureKind = "store_unavailable"
	KindProtocol          FailureKind = "protocol_error"
	KindInternal          FailureKind = "internal"
)

// KindOf classifies err. A nil error has no kind.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}

	var notActive *EventNotActiveError
	var supply *InsufficientSupplyError
	var transition *InvalidTransitionError
	var eventTransition *InvalidEventTransitionError

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrEventNotFound):
		return KindEventNotFound
	case errors.Is(err, ErrTicketNotFound):
		return KindTicketNotFound
	case errors.As(err, &notActive):
		return KindEventNotActive
	case errors.As(err, &supply):
		return KindInsufficientStock
	case errors.As(err, &transition), errors.As(err, &eventTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrCommitUnknown), errors.Is(err, ErrConcurrentUpdate):
		return KindStoreUnavailable
	case errors.Is(err, ErrProtocol):
		return KindProtocol
	default:
		return KindInternal
	}
}

// Retryable reports whether err is a transient store failure that left
// nothing behind.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) && !errors.Is(err, ErrCommitUnknown)
}
