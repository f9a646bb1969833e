package domain_test

import (
	"testing"
	"time"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishedEvent(capacity, available int) *domain.Event {
	return &domain.Event{
		ID:         1,
		Title:      "Club night",
		Capacity:   capacity,
		Available:  available,
		Status:     domain.EventPublished,
		PriceCents: 2000,
		Currency:   "EUR",
	}
}

func TestNewEvent(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)
	end := start.Add(4 * time.Hour)

	t.Run("starts as draft with full availability", func(t *testing.T) {
		ev, err := domain.NewEvent(domain.NewEventParams{
			Title:      "  Festival ",
			Capacity:   120,
			PriceCents: 4500,
			Currency:   "eur",
			StartsAt:   &start,
			EndsAt:     &end,
		}, now)

		require.NoError(t, err)
		assert.Equal(t, "Festival", ev.Title)
		assert.Equal(t, domain.EventDraft, ev.Status)
		assert.Equal(t, 120, ev.Available)
		assert.Equal(t, "EUR", ev.Currency)
		assert.False(t, ev.IsPurchasable())
	})

	invalid := []struct {
		name   string
		params domain.NewEventParams
	}{
		{"empty title", domain.NewEventParams{Title: " ", Capacity: 1}},
		{"negative capacity", domain.NewEventParams{Title: "x", Capacity: -1}},
		{"capacity above column range", domain.NewEventParams{Title: "x", Capacity: domain.MaxCapacity + 1}},
		{"negative price", domain.NewEventParams{Title: "x", PriceCents: -5}},
		{"missing currency", domain.NewEventParams{Title: "x", PriceCents: 100}},
		{"end before start", domain.NewEventParams{Title: "x", StartsAt: &end, EndsAt: &start}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.NewEvent(tc.params, now)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	t.Run("largest capacity is accepted", func(t *testing.T) {
		ev, err := domain.NewEvent(domain.NewEventParams{Title: "Stadium", Capacity: domain.MaxCapacity}, now)

		require.NoError(t, err)
		assert.Equal(t, domain.MaxCapacity, ev.Available)
	})
}

func TestEventReserve(t *testing.T) {
	t.Run("grants and computes remaining", func(t *testing.T) {
		ev := publishedEvent(10, 10)

		grant, err := ev.Reserve(6)

		require.NoError(t, err)
		assert.Equal(t, 6, grant.Quantity)
		assert.Equal(t, 10, grant.Previous)
		assert.Equal(t, 4, grant.Remaining)
		assert.Equal(t, 10, ev.Available, "Reserve must not mutate the event")
	})

	t.Run("insufficient supply carries counts", func(t *testing.T) {
		ev := publishedEvent(10, 4)

		_, err := ev.Reserve(6)

		var supply *domain.InsufficientSupplyError
		require.ErrorAs(t, err, &supply)
		assert.Equal(t, 4, supply.Available)
		assert.Equal(t, 6, supply.Requested)
		assert.Equal(t, "Insufficient tickets supply. Available: 4, Requested: 6", err.Error())
	})

	t.Run("draft is not active regardless of availability", func(t *testing.T) {
		ev := publishedEvent(10, 10)
		ev.Status = domain.EventDraft

		_, err := ev.Reserve(1)

		var notActive *domain.EventNotActiveError
		require.ErrorAs(t, err, &notActive)
		assert.Equal(t, domain.EventDraft, notActive.Status)
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := publishedEvent(10, 10).Reserve(0)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestEventLifecycle(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	allowed := map[domain.EventStatus][]domain.EventStatus{
		domain.EventDraft:     {domain.EventPublished, domain.EventCancelled},
		domain.EventPublished: {domain.EventCancelled, domain.EventCompleted},
	}
	all := []domain.EventStatus{domain.EventDraft, domain.EventPublished, domain.EventCancelled, domain.EventCompleted}

	for _, from := range all {
		for _, to := range all {
			ev := &domain.Event{Status: from}
			err := ev.TransitionTo(to, now)

			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}

			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, ev.Status)
				continue
			}
			var invalid *domain.InvalidEventTransitionError
			assert.ErrorAs(t, err, &invalid, "%s -> %s", from, to)
			assert.Equal(t, from, ev.Status)
		}
	}

	assert.True(t, domain.EventCancelled.Terminal())
	assert.True(t, domain.EventCompleted.Terminal())
	assert.False(t, domain.EventPublished.Terminal())
}

func TestEventInvariantAndSchedule(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	ev := publishedEvent(5, 5)
	assert.NoError(t, ev.CheckInvariant())
	assert.False(t, ev.IsUpcoming(now), "no start time")

	ev.StartsAt = &past
	assert.False(t, ev.IsUpcoming(now))

	ev.StartsAt = &future
	assert.True(t, ev.IsUpcoming(now))

	ev.Available = 6
	assert.Error(t, ev.CheckInvariant())
	ev.Available = -1
	assert.Error(t, ev.CheckInvariant())
}

func TestEventFilter(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	later := now.Add(48 * time.Hour)

	ev := publishedEvent(10, 10)
	ev.Title = "Summer Jazz Night"
	ev.Description = "Open air"
	ev.Location = "Lisbon Riverside"
	ev.StartsAt = &later

	cases := []struct {
		name   string
		filter domain.EventFilter
		want   bool
	}{
		{"zero value", domain.EventFilter{}, true},
		{"title case-insensitive", domain.EventFilter{Query: "jazz"}, true},
		{"location", domain.EventFilter{Query: "LISBON"}, true},
		{"description", domain.EventFilter{Query: " open air "}, true},
		{"no match", domain.EventFilter{Query: "opera"}, false},
		{"status match", domain.EventFilter{Status: domain.EventPublished}, true},
		{"status mismatch", domain.EventFilter{Status: domain.EventDraft}, false},
		{"upcoming", domain.EventFilter{Upcoming: true}, true},
		{"all criteria", domain.EventFilter{Query: "night", Status: domain.EventPublished, Upcoming: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(ev, now))
		})
	}

	assert.False(t, domain.EventFilter{Upcoming: true}.Matches(ev, later.Add(time.Minute)))

	assert.NoError(t, domain.EventFilter{Status: domain.EventCompleted}.Validate())
	assert.ErrorIs(t, domain.EventFilter{Status: "SOLD_OUT"}.Validate(), domain.ErrInvalidRequest)
}
