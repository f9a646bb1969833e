package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/ports/mocks"
	"github.com/srgjo27/ticket_engine/internal/core/services"
	"github.com/srgjo27/ticket_engine/internal/platform/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type eventFixture struct {
	tx      *mocks.Transactor
	events  *mocks.EventRepository
	tickets *mocks.TicketRepository
	cache   *mocks.EventCache
	clock   *clock.Manual
	service *services.EventService
}

func newEventFixture(t *testing.T) *eventFixture {
	f := &eventFixture{
		tx:      mocks.NewTransactor(t),
		events:  mocks.NewEventRepository(t),
		tickets: mocks.NewTicketRepository(t),
		cache:   mocks.NewEventCache(t),
		clock:   clock.NewManual(fixedNow),
	}
	f.service = services.NewEventService(f.tx, f.events, f.tickets, f.cache, f.clock, nil)
	return f
}

func (f *eventFixture) runTransactions() {
	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	})
}

func TestEventService_CreateEvent(t *testing.T) {
	f := newEventFixture(t)

	f.events.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.Event) bool {
		return e.Status == domain.EventDraft && e.Capacity == 50 && e.Available == 50 && e.Currency == "USD"
	})).Return(func(_ context.Context, e *domain.Event) error {
		e.ID = 7
		return nil
	}).Once()

	event, err := f.service.CreateEvent(context.Background(), domain.NewEventParams{
		Title:      "Jazz Night",
		Capacity:   50,
		PriceCents: 2500,
		Currency:   "usd",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), event.ID)
	assert.Equal(t, fixedNow, event.CreatedAt)
}

func TestEventService_CreateEventRejectsInvalidInput(t *testing.T) {
	f := newEventFixture(t)

	_, err := f.service.CreateEvent(context.Background(), domain.NewEventParams{Title: " ", Capacity: 10})

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEventService_GetEventServesCacheHit(t *testing.T) {
	f := newEventFixture(t)
	cached := eventWith(domain.EventPublished, 10, 3)
	f.cache.On("Get", mock.Anything, int64(1)).Return(cached, uint64(2), nil).Once()

	event, err := f.service.GetEvent(context.Background(), 1)

	require.NoError(t, err)
	assert.Same(t, cached, event)
	f.events.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestEventService_GetEventFillsCacheOnMiss(t *testing.T) {
	f := newEventFixture(t)
	stored := eventWith(domain.EventPublished, 10, 3)
	f.cache.On("Get", mock.Anything, int64(1)).Return(nil, uint64(4), nil).Once()
	f.events.On("GetByID", mock.Anything, int64(1)).Return(stored, nil).Once()
	f.cache.On("Set", mock.Anything, stored, uint64(4)).Return(nil).Once()

	event, err := f.service.GetEvent(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 3, event.Available)
}

func TestEventService_GetEventIgnoresCacheErrors(t *testing.T) {
	f := newEventFixture(t)
	stored := eventWith(domain.EventPublished, 10, 3)
	f.cache.On("Get", mock.Anything, int64(1)).Return(nil, uint64(0), errors.New("connection refused")).Once()
	f.events.On("GetByID", mock.Anything, int64(1)).Return(stored, nil).Once()
	f.cache.On("Set", mock.Anything, stored, uint64(0)).Return(errors.New("connection refused")).Once()

	event, err := f.service.GetEvent(context.Background(), 1)

	require.NoError(t, err)
	assert.Same(t, stored, event)
}

func TestEventService_GetEventNotFound(t *testing.T) {
	f := newEventFixture(t)
	f.cache.On("Get", mock.Anything, int64(9)).Return(nil, uint64(0), nil).Once()
	f.events.On("GetByID", mock.Anything, int64(9)).Return(nil, domain.ErrEventNotFound).Once()

	_, err := f.service.GetEvent(context.Background(), 9)

	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestEventService_GetInventory(t *testing.T) {
	f := newEventFixture(t)
	f.runTransactions()
	f.events.On("GetByID", mock.Anything, int64(1)).Return(eventWith(domain.EventPublished, 10, 4), nil).Once()
	f.tickets.On("CountAllocated", mock.Anything, int64(1)).Return(6, nil).Once()

	inv, err := f.service.GetInventory(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, services.Inventory{EventID: 1, Capacity: 10, Available: 4, Allocated: 6}, inv)
	assert.Equal(t, inv.Capacity, inv.Available+inv.Allocated)
}

func TestEventService_Publish(t *testing.T) {
	f := newEventFixture(t)
	f.runTransactions()
	f.events.On("GetForUpdate", mock.Anything, int64(1)).Return(eventWith(domain.EventDraft, 10, 10), nil).Once()
	f.events.On("UpdateStatus", mock.Anything, int64(1), domain.EventDraft, domain.EventPublished).Return(nil).Once()
	f.cache.On("Invalidate", mock.Anything, int64(1)).Return(nil).Once()

	event, err := f.service.Publish(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, domain.EventPublished, event.Status)
	assert.Equal(t, fixedNow, event.UpdatedAt)
}

func TestEventService_CancelPublishedEvent(t *testing.T) {
	f := newEventFixture(t)
	f.runTransactions()
	f.events.On("GetForUpdate", mock.Anything, int64(1)).Return(eventWith(domain.EventPublished, 10, 2), nil).Once()
	f.events.On("UpdateStatus", mock.Anything, int64(1), domain.EventPublished, domain.EventCancelled).Return(nil).Once()
	f.cache.On("Invalidate", mock.Anything, int64(1)).Return(nil).Once()

	event, err := f.service.Cancel(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, domain.EventCancelled, event.Status)
	assert.Equal(t, 2, event.Available)
	f.tickets.AssertNotCalled(t, "ListByEvent", mock.Anything, mock.Anything)
}

func TestEventService_InvalidTransition(t *testing.T) {
	f := newEventFixture(t)
	f.runTransactions()
	f.events.On("GetForUpdate", mock.Anything, int64(1)).Return(eventWith(domain.EventCompleted, 10, 0), nil).Once()

	_, err := f.service.Publish(context.Background(), 1)

	var invalid *domain.InvalidEventTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.EventCompleted, invalid.From)
	f.events.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}

func TestEventService_CompleteEndedEvents(t *testing.T) {
	f := newEventFixture(t)
	f.runTransactions()
	f.events.On("ListEndedPublished", mock.Anything, fixedNow, 100).Return([]int64{1, 2}, nil).Once()

	f.events.On("GetForUpdate", mock.Anything, int64(1)).Return(eventWith(domain.EventPublished, 10, 0), nil).Once()
	f.events.On("UpdateStatus", mock.Anything, int64(1), domain.EventPublished, domain.EventCompleted).Return(nil).Once()
	f.cache.On("Invalidate", mock.Anything, int64(1)).Return(nil).Once()

	raced := eventWith(domain.EventCancelled, 10, 5)
	raced.ID = 2
	f.events.On("GetForUpdate", mock.Anything, int64(2)).Return(raced, nil).Once()

	completed := f.service.CompleteEndedEvents(context.Background())

	assert.Equal(t, 1, completed)
}

func TestEventService_CompleteEndedEventsListFailure(t *testing.T) {
	f := newEventFixture(t)
	f.events.On("ListEndedPublished", mock.Anything, fixedNow, 100).Return(nil, domain.ErrStoreUnavailable).Once()

	assert.Zero(t, f.service.CompleteEndedEvents(context.Background()))
}

func TestEventService_RunCompletionSweepStopsWithContext(t *testing.T) {
	f := newEventFixture(t)
	f.events.On("ListEndedPublished", mock.Anything, mock.Anything, 100).Return([]int64{}, nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.service.RunCompletionSweep(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop after cancellation")
	}
}

func TestEventService_ListEventsFiltersByQueryAndSchedule(t *testing.T) {
	f := newEventFixture(t)
	tomorrow := fixedNow.Add(24 * time.Hour)
	yesterday := fixedNow.Add(-24 * time.Hour)

	jazz := *eventWith(domain.EventPublished, 10, 10)
	jazz.ID, jazz.Title, jazz.StartsAt = 1, "Jazz Night", &tomorrow
	rock := *eventWith(domain.EventPublished, 10, 10)
	rock.ID, rock.Title, rock.StartsAt = 2, "Rock Night", &yesterday
	draft := *eventWith(domain.EventDraft, 10, 10)
	draft.ID, draft.Title = 3, "Jazz Brunch"

	f.events.On("List", mock.Anything).Return([]domain.Event{jazz, rock, draft}, nil)

	all, err := f.service.ListEvents(context.Background(), domain.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byQuery, err := f.service.ListEvents(context.Background(), domain.EventFilter{Query: "jazz"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, eventIDs(byQuery))

	upcoming, err := f.service.ListEvents(context.Background(), domain.EventFilter{Upcoming: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, eventIDs(upcoming))

	drafts, err := f.service.ListEvents(context.Background(), domain.EventFilter{Status: domain.EventDraft})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, eventIDs(drafts))

	none, err := f.service.ListEvents(context.Background(), domain.EventFilter{Query: "opera"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestEventService_ListEventsRejectsUnknownStatus(t *testing.T) {
	f := newEventFixture(t)

	_, err := f.service.ListEvents(context.Background(), domain.EventFilter{Status: "SOLD_OUT"})

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	f.events.AssertNotCalled(t, "List", mock.Anything)
}

func eventIDs(events []domain.Event) []int64 {
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}
