package domain_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ticketNow = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func newTicketIn(status domain.TicketStatus, owner *uuid.UUID) domain.Ticket {
	t := domain.NewTicket(7, 2500, "EUR", ticketNow.Add(-time.Hour))
	t.Status = status
	t.UserID = owner
	return *t
}

func TestTicketTransitions_AllowedTable(t *testing.T) {
	user := uuid.New()

	cases := []struct {
		from   domain.TicketStatus
		action domain.TicketAction
		owner  *uuid.UUID
		to     domain.TicketStatus
	}{
		{domain.TicketAvailable, domain.ActionReserve, nil, domain.TicketReserved},
		{domain.TicketAvailable, domain.ActionSell, nil, domain.TicketSold},
		{domain.TicketAvailable, domain.ActionCancel, nil, domain.TicketCancelled},
		{domain.TicketReserved, domain.ActionSell, &user, domain.TicketSold},
		{domain.TicketReserved, domain.ActionCancel, &user, domain.TicketCancelled},
		{domain.TicketSold, domain.ActionCheckIn, &user, domain.TicketCheckedIn},
		{domain.TicketSold, domain.ActionCancel, &user, domain.TicketCancelled},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.action), func(t *testing.T) {
			ticket := newTicketIn(tc.from, tc.owner)

			err := ticket.Apply(tc.action, &user, ticketNow)

			require.NoError(t, err)
			assert.Equal(t, tc.to, ticket.Status)
			assert.Equal(t, ticketNow, ticket.UpdatedAt)
		})
	}
}

func TestTicketTransitions_EveryOtherPairIsInvalid(t *testing.T) {
	user := uuid.New()

	for _, from := range domain.TicketStatuses {
		allowed := newTicketIn(from, &user)
		for _, action := range domain.TicketActions {
			if slices.Contains(allowed.AllowedActions(), action) {
				continue
			}

			t.Run(string(from)+"/"+string(action), func(t *testing.T) {
				ticket := newTicketIn(from, &user)
				before := ticket

				err := ticket.Apply(action, &user, ticketNow)

				var invalid *domain.InvalidTransitionError
				require.True(t, errors.As(err, &invalid), "expected InvalidTransitionError, got %v", err)
				assert.Equal(t, from, invalid.From)
				assert.Equal(t, action, invalid.Attempted)
				assert.Equal(t, before, ticket, "ticket must be left unchanged")
				assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
			})
		}
	}
}

func TestTicketTransitions_Guards(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	t.Run("reserve binds the user", func(t *testing.T) {
		ticket := newTicketIn(domain.TicketAvailable, nil)

		require.NoError(t, ticket.Reserve(alice, ticketNow))
		require.NotNil(t, ticket.UserID)
		assert.Equal(t, alice, *ticket.UserID)
	})

	t.Run("reserve refuses assigned placeholder", func(t *testing.T) {
		ticket := newTicketIn(domain.TicketAvailable, &bob)

		err := ticket.Reserve(alice, ticketNow)

		var invalid *domain.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, domain.TicketAvailable, ticket.Status)
		assert.Equal(t, bob, *ticket.UserID)
	})

	t.Run("sell of reservation requires same user", func(t *testing.T) {
		ticket := newTicketIn(domain.TicketReserved, &alice)

		err := ticket.Sell(bob, ticketNow)

		var invalid *domain.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, invalid.Error(), "another user")
		assert.Equal(t, domain.TicketReserved, ticket.Status)
		assert.Equal(t, alice, *ticket.UserID)
	})

	t.Run("sell without user is invalid request", func(t *testing.T) {
		ticket := newTicketIn(domain.TicketAvailable, nil)

		err := ticket.Apply(domain.ActionSell, nil, ticketNow)

		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		assert.Equal(t, domain.TicketAvailable, ticket.Status)
	})

	t.Run("checked in tickets cannot be cancelled", func(t *testing.T) {
		ticket := newTicketIn(domain.TicketSold, &alice)
		require.NoError(t, ticket.CheckIn(ticketNow))

		err := ticket.Cancel(ticketNow)

		assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
		assert.Equal(t, domain.TicketCheckedIn, ticket.Status)
	})
}

func TestNewSoldTickets(t *testing.T) {
	user := uuid.New()
	grant := domain.Reservation{EventID: 3, Quantity: 4, Previous: 10, Remaining: 6, PriceCents: 1500, Currency: "USD"}

	tickets := domain.NewSoldTickets(grant, user, ticketNow)

	require.Len(t, tickets, 4)
	seen := map[uuid.UUID]bool{}
	for _, ticket := range tickets {
		assert.Equal(t, domain.TicketSold, ticket.Status)
		assert.Equal(t, int64(3), ticket.EventID)
		assert.Equal(t, user, *ticket.UserID)
		assert.Equal(t, int64(1500), ticket.PriceCents)
		assert.False(t, seen[ticket.ID], "duplicate ticket id")
		seen[ticket.ID] = true
	}
}

func TestTicketAllowedActions(t *testing.T) {
	cases := map[domain.TicketStatus][]domain.TicketAction{
		domain.TicketAvailable: {domain.ActionReserve, domain.ActionSell, domain.ActionCancel},
		domain.TicketReserved:  {domain.ActionSell, domain.ActionCancel},
		domain.TicketSold:      {domain.ActionCheckIn, domain.ActionCancel},
		domain.TicketCancelled: {},
		domain.TicketCheckedIn: {},
	}
	for status, want := range cases {
		ticket := newTicketIn(status, nil)
		assert.Equal(t, want, ticket.AllowedActions(), string(status))
	}
}

func TestTicketAssign(t *testing.T) {
	owner := uuid.New()
	seat := " A-12 "
	tier := "VIP"
	blank := ""

	t.Run("sold ticket takes seat and tier", func(t *testing.T) {
		ticket := newTicketIn(domain.TicketSold, &owner)

		require.NoError(t, ticket.Assign(domain.Placement{Seat: &seat, Tier: &tier}, ticketNow))

		require.NotNil(t, ticket.Seat)
		assert.Equal(t, "A-12", *ticket.Seat)
		require.NotNil(t, ticket.Tier)
		assert.Equal(t, "VIP", *ticket.Tier)
		assert.Equal(t, ticketNow, ticket.UpdatedAt)
		assert.Equal(t, domain.TicketSold, ticket.Status)
	})

	t.Run("nil field is kept and blank field clears", func(t *testing.T) {
		ticket := newTicketIn(domain.TicketReserved, &owner)
		require.NoError(t, ticket.Assign(domain.Placement{Seat: &seat, Tier: &tier}, ticketNow))

		require.NoError(t, ticket.Assign(domain.Placement{Seat: &blank}, ticketNow))

		assert.Nil(t, ticket.Seat)
		require.NotNil(t, ticket.Tier)
		assert.Equal(t, "VIP", *ticket.Tier)
	})

	t.Run("empty placement is invalid request", func(t *testing.T) {
		ticket := newTicketIn(domain.TicketSold, &owner)

		err := ticket.Assign(domain.Placement{}, ticketNow)

		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	for _, status := range []domain.TicketStatus{domain.TicketAvailable, domain.TicketCancelled, domain.TicketCheckedIn} {
		t.Run("refused in "+string(status), func(t *testing.T) {
			ticket := newTicketIn(status, &owner)
			before := ticket

			err := ticket.Assign(domain.Placement{Seat: &seat}, ticketNow)

			var invalid *domain.InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, domain.ActionAssign, invalid.Attempted)
			assert.Equal(t, before, ticket)
		})
	}
}
