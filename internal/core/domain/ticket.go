package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketAvailable TicketStatus = "AVAILABLE"
	TicketReserved  TicketStatus = "RESERVED"
	TicketSold      TicketStatus = "SOLD"
	TicketCancelled TicketStatus = "CANCELLED"
	TicketCheckedIn TicketStatus = "CHECKED_IN"
)

var TicketStatuses = []TicketStatus{TicketAvailable, TicketReserved, TicketSold, TicketCancelled, TicketCheckedIn}

// Allocated statuses count against event capacity. Cancelled tickets keep
// their unit because cancellation never returns capacity.
func (s TicketStatus) Allocated() bool {
	return s != TicketAvailable
}

func (s TicketStatus) Terminal() bool {
	return s == TicketCancelled || s == TicketCheckedIn
}

type TicketAction string

const (
	ActionReserve TicketAction = "reserve"
	ActionSell    TicketAction = "sell"
	ActionCheckIn TicketAction = "check_in"
	ActionCancel  TicketAction = "cancel"

	// ActionAssign changes seat or tier and never the status.
	ActionAssign TicketAction = "assign"
)

var TicketActions = []TicketAction{ActionReserve, ActionSell, ActionCheckIn, ActionCancel}

// ticketGuard returns a non-empty reason when the transition must be refused.
type ticketGuard func(t *Ticket, user *uuid.UUID) string

type ticketRule struct {
	to    TicketStatus
	guard ticketGuard
}

// ticketTransitions is the complete transition table. Pairs that are not
// listed are invalid.
var ticketTransitions = map[TicketStatus]map[TicketAction]ticketRule{
	TicketAvailable: {
		ActionReserve: {to: TicketReserved, guard: unassigned},
		ActionSell:    {to: TicketSold, guard: unassignedOrOwnedBy},
		ActionCancel:  {to: TicketCancelled},
	},
	TicketReserved: {
		ActionSell:   {to: TicketSold, guard: ownedBy},
		ActionCancel: {to: TicketCancelled},
	},
	TicketSold: {
		ActionCheckIn: {to: TicketCheckedIn},
		ActionCancel:  {to: TicketCancelled},
	},
}

func unassigned(t *Ticket, _ *uuid.UUID) string {
	if t.UserID != nil {
		return "ticket already assigned"
	}
	return ""
}

func ownedBy(t *Ticket, user *uuid.UUID) string {
	if t.UserID == nil || *t.UserID != *user {
		return "ticket reserved by another user"
	}
	return ""
}

func unassignedOrOwnedBy(t *Ticket, user *uuid.UUID) string {
	if t.UserID == nil {
		return ""
	}
	return ownedBy(t, user)
}


func actionNeedsUser(action TicketAction) bool {
	return action == ActionReserve || action == ActionSell
}

type Ticket struct {
	ID         uuid.UUID
	EventID    int64
	UserID     *uuid.UUID
	Status     TicketStatus
	PriceCents int64
	Currency   string
	Seat       *string
	Tier       *string
	IssuedAt   time.Time
	UpdatedAt  time.Time
}

// NewTicket returns an unassigned placeholder ticket.
func NewTicket(eventID int64, priceCents int64, currency string, now time.Time) *Ticket {
	return &Ticket{
		ID:         uuid.New(),
		EventID:    eventID,
		Status:     TicketAvailable,
		PriceCents: priceCents,
		Currency:   currency,
		IssuedAt:   now,
		UpdatedAt:  now,
	}
}

// NewSoldTickets materializes one Sold ticket per unit of the grant.
func NewSoldTickets(grant Reservation, userID uuid.UUID, now time.Time) []Ticket {
	tickets := make([]Ticket, 0, grant.Quantity)
	for i := 0; i < grant.Quantity; i++ {
		t := NewTicket(grant.EventID, grant.PriceCents, grant.Currency, now)
		owner := userID
		t.UserID = &owner
		t.Status = TicketSold
		tickets = append(tickets, *t)
	}
	return tickets
}

// AllowedActions lists the state machine actions the ticket accepts in its
// current status, in TicketActions order.
func (t *Ticket) AllowedActions() []TicketAction {
	actions := []TicketAction{}
	for _, action := range TicketActions {
		if _, ok := ticketTransitions[t.Status][action]; ok {
			actions = append(actions, action)
		}
	}
	return actions
}

// Apply runs action through the transition table. On error the ticket is
// left unchanged.
func (t *Ticket) Apply(action TicketAction, user *uuid.UUID, now time.Time) error {
	rule, ok := ticketTransitions[t.Status][action]
	if !ok {
		return &InvalidTransitionError{From: t.Status, Attempted: action}
	}
	if actionNeedsUser(action) && (user == nil || *user == uuid.Nil) {
		return fmt.Errorf("%w: %s requires a user", ErrInvalidRequest, action)
	}
	if rule.guard != nil {
		if reason := rule.guard(t, user); reason != "" {
			return &InvalidTransitionError{From: t.Status, Attempted: action, Reason: reason}
		}
	}

	if actionNeedsUser(action) {
		owner := *user
		t.UserID = &owner
	}
	t.Status = rule.to
	t.UpdatedAt = now
	return nil
}

func (t *Ticket) Reserve(user uuid.UUID, now time.Time) error {
	return t.Apply(ActionReserve, &user, now)
}

func (t *Ticket) Sell(user uuid.UUID, now time.Time) error {
	return t.Apply(ActionSell, &user, now)
}

func (t *Ticket) CheckIn(now time.Time) error {
	return t.Apply(ActionCheckIn, nil, now)
}

func (t *Ticket) Cancel(now time.Time) error {
	return t.Apply(ActionCancel, nil, now)
}

// Placement changes a ticket's seat and tier. A nil field is left as is and
// a blank one clears the stored value.
type Placement struct {
	Seat *string
	Tier *string
}

var placeableStatuses = []TicketStatus{TicketReserved, TicketSold}

// Assign applies p to a Reserved or Sold ticket. On error the ticket is left
// unchanged.
func (t *Ticket) Assign(p Placement, now time.Time) error {
	if p.Seat == nil && p.Tier == nil {
		return fmt.Errorf("%w: seat or tier is required", ErrInvalidRequest)
	}
	if !slices.Contains(placeableStatuses, t.Status) {
		return &InvalidTransitionError{From: t.Status, Attempted: ActionAssign, Reason: "only reserved or sold tickets can be placed"}
	}

	if p.Seat != nil {
		t.Seat = label(*p.Seat)
	}
	if p.Tier != nil {
		t.Tier = label(*p.Tier)
	}
	t.UpdatedAt = now
	return nil
}

func label(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (t *Ticket) Summary() string {
	return fmt.Sprintf("Ticket ID: %s, Event: %d, Status: %s, Price: %d %s", t.ID, t.EventID, t.Status, t.PriceCents, t.Currency)
}
