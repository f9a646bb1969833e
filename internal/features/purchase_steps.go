// Package features binds the Gherkin scenarios under /features to the
// purchase services running on an embedded SQLite store.
package features

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/srgjo27/ticket_engine/internal/adapter/repository/sqlite"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/services"
	"github.com/srgjo27/ticket_engine/internal/platform/clock"
	"github.com/srgjo27/ticket_engine/internal/platform/database"
)

// PurchaseContext holds the state of one scenario.
type PurchaseContext struct {
	dir   string
	pool  *sqlitex.Pool
	clock *clock.Manual

	events    *services.EventService
	purchases *services.PurchaseService
	tickets   *services.TicketService

	eventID   int64
	users     map[string]uuid.UUID
	lastErr   error
	lastBuy   *domain.PurchaseResult
	succeeded int
}

func newPurchaseContext() *PurchaseContext {
	return &PurchaseContext{}
}

func (pc *PurchaseContext) setUp(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
	dir, err := os.MkdirTemp("", "ticket-features-")
	if err != nil {
		return ctx, err
	}
	pool, err := database.NewSQLitePool(database.SQLiteConfig{
		Path:      filepath.Join(dir, "tickets.db"),
		PoolSize:  8,
		OnConnect: sqlite.PrepareConn,
	}, nil)
	if err != nil {
		os.RemoveAll(dir)
		return ctx, err
	}

	tx := sqlite.NewTransactor(pool)
	events := sqlite.NewEventRepository(pool)
	tickets := sqlite.NewTicketRepository(pool)
	clk := clock.NewManual(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

	*pc = PurchaseContext{
		dir:       dir,
		pool:      pool,
		clock:     clk,
		events:    services.NewEventService(tx, events, tickets, nil, clk, nil),
		purchases: services.NewPurchaseService(tx, events, tickets, services.NewLedger(events), clk),
		tickets:   services.NewTicketService(tx, events, tickets, clk, nil),
		users:     map[string]uuid.UUID{},
	}
	return ctx, nil
}

func (pc *PurchaseContext) tearDown(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
	if pc.pool != nil {
		pc.pool.Close()
	}
	if pc.dir != "" {
		os.RemoveAll(pc.dir)
	}
	return ctx, nil
}

func (pc *PurchaseContext) user(name string) uuid.UUID {
	id, ok := pc.users[name]
	if !ok {
		id = uuid.New()
		pc.users[name] = id
	}
	return id
}

func (pc *PurchaseContext) anEventWithCapacity(status string, capacity int) error {
	event, err := pc.events.CreateEvent(context.Background(), domain.NewEventParams{
		Title:      "Scenario Event",
		Capacity:   capacity,
		PriceCents: 1500,
		Currency:   "EUR",
	})
	if err != nil {
		return err
	}
	pc.eventID = event.ID

	if status == "published" {
		return pc.theEventIsPublished()
	}
	return nil
}

func (pc *PurchaseContext) theEventIsPublished() error {
	_, err := pc.events.Publish(context.Background(), pc.eventID)
	return err
}

func (pc *PurchaseContext) theEventIsCancelled() error {
	_, err := pc.events.Cancel(context.Background(), pc.eventID)
	return err
}

func (pc *PurchaseContext) buy(name string, eventID int64, qty int) {
	pc.lastBuy, pc.lastErr = pc.purchases.Purchase(context.Background(), domain.PurchaseRequest{
		UserID:   pc.user(name),
		EventID:  eventID,
		Quantity: qty,
	})
}

func (pc *PurchaseContext) userBuys(name string, qty int) error {
	pc.buy(name, pc.eventID, qty)
	return nil
}

func (pc *PurchaseContext) userBought(name string, qty int) error {
	pc.buy(name, pc.eventID, qty)
	return pc.lastErr
}

func (pc *PurchaseContext) userBuysForUnknownEvent(name string, qty int) error {
	pc.buy(name, pc.eventID+1000, qty)
	return nil
}

func (pc *PurchaseContext) usersBuyConcurrently(users, qty int) error {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pc.purchases.Purchase(context.Background(), domain.PurchaseRequest{
				UserID:   uuid.New(),
				EventID:  pc.eventID,
				Quantity: qty,
			})
			mu.Lock()
			defer mu.Unlock()
			var supply *domain.InsufficientSupplyError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &supply):
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	pc.succeeded = succeeded
	return errors.Join(failures...)
}

func (pc *PurchaseContext) thePurchaseSucceedsWith(count int) error {
	if pc.lastErr != nil {
		return fmt.Errorf("expected success, got %w", pc.lastErr)
	}
	if got := len(pc.lastBuy.TicketIDs); got != count {
		return fmt.Errorf("expected %d tickets, got %d", count, got)
	}
	return nil
}

func (pc *PurchaseContext) thePurchaseFailsWith(kind string) error {
	if pc.lastErr == nil {
		return errors.New("expected the purchase to fail")
	}
	if got := domain.KindOf(pc.lastErr); string(got) != kind {
		return fmt.Errorf("expected failure %q, got %q (%v)", kind, got, pc.lastErr)
	}
	return nil
}

func (pc *PurchaseContext) theFailureMessageIs(msg string) error {
	if pc.lastErr == nil || pc.lastErr.Error() != msg {
		return fmt.Errorf("expected message %q, got %v", msg, pc.lastErr)
	}
	return nil
}

func (pc *PurchaseContext) purchasesSucceed(count int) error {
	if pc.succeeded != count {
		return fmt.Errorf("expected %d successful purchases, got %d", count, pc.succeeded)
	}
	return nil
}

func (pc *PurchaseContext) ticketsRemainAvailable(count int) error {
	inv, err := pc.events.GetInventory(context.Background(), pc.eventID)
	if err != nil {
		return err
	}
	if inv.Available != count {
		return fmt.Errorf("expected %d available, got %d", count, inv.Available)
	}
	if inv.Available+inv.Allocated != inv.Capacity {
		return fmt.Errorf("capacity %d does not match available %d + allocated %d", inv.Capacity, inv.Available, inv.Allocated)
	}
	return nil
}

func (pc *PurchaseContext) ticketsAreAllocated(count int) error {
	inv, err := pc.events.GetInventory(context.Background(), pc.eventID)
	if err != nil {
		return err
	}
	if inv.Allocated != count {
		return fmt.Errorf("expected %d allocated, got %d", count, inv.Allocated)
	}
	return nil
}

func (pc *PurchaseContext) ownedBy(name string) ([]domain.Ticket, error) {
	all, err := pc.tickets.ListTickets(context.Background(), pc.eventID)
	if err != nil {
		return nil, err
	}
	owner := pc.user(name)
	var owned []domain.Ticket
	for _, t := range all {
		if t.UserID != nil && *t.UserID == owner {
			owned = append(owned, t)
		}
	}
	return owned, nil
}

func (pc *PurchaseContext) userOwns(name string, count int) error {
	owned, err := pc.ownedBy(name)
	if err != nil {
		return err
	}
	if len(owned) != count {
		return fmt.Errorf("expected %s to own %d tickets, got %d", name, count, len(owned))
	}
	return nil
}

func (pc *PurchaseContext) userCancelsOneTicket(name string) error {
	owned, err := pc.ownedBy(name)
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		return fmt.Errorf("%s owns no tickets", name)
	}
	_, err = pc.tickets.Cancel(context.Background(), owned[0].ID)
	return err
}

// InitPurchaseSteps registers the purchase step definitions.
func InitPurchaseSteps(ctx *godog.ScenarioContext) {
	pc := newPurchaseContext()

	ctx.Before(pc.setUp)
	ctx.After(pc.tearDown)

	ctx.Step(`^a (published|draft) event with capacity (\d+)$`, pc.anEventWithCapacity)
	ctx.Step(`^the event is published$`, pc.theEventIsPublished)
	ctx.Step(`^the event is cancelled$`, pc.theEventIsCancelled)

	ctx.Step(`^user "([^"]*)" buys (-?\d+) tickets?$`, pc.userBuys)
	ctx.Step(`^user "([^"]*)" bought (\d+) tickets?$`, pc.userBought)
	ctx.Step(`^user "([^"]*)" buys (\d+) tickets? for an unknown event$`, pc.userBuysForUnknownEvent)
	ctx.Step(`^(\d+) users each buy (\d+) tickets? at the same time$`, pc.usersBuyConcurrently)
	ctx.Step(`^user "([^"]*)" cancels one of their tickets$`, pc.userCancelsOneTicket)

	ctx.Step(`^the purchase succeeds with (\d+) tickets?$`, pc.thePurchaseSucceedsWith)
	ctx.Step(`^the purchase fails with "([^"]*)"$`, pc.thePurchaseFailsWith)
	ctx.Step(`^the failure message is "([^"]*)"$`, pc.theFailureMessageIs)
	ctx.Step(`^(\d+) purchases succeed$`, pc.purchasesSucceed)
	ctx.Step(`^(\d+) tickets? remains? available$`, pc.ticketsRemainAvailable)
	ctx.Step(`^(\d+) tickets? (?:is|are) allocated$`, pc.ticketsAreAllocated)
	ctx.Step(`^user "([^"]*)" owns (\d+) tickets?$`, pc.userOwns)
}
