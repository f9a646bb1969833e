package observer

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/platform/kafka"
)

const (
	PurchasesTopic       = "ticket.purchases"
	defaultPublishBuffer = 1024
	publishTimeout       = 5 * time.Second
)

type purchaseMessage struct {
	EventID    int64       `json:"event_id"`
	UserID     uuid.UUID   `json:"user_id"`
	Quantity   int         `json:"quantity"`
	Outcome    string      `json:"outcome"`
	Kind       string      `json:"kind,omitempty"`
	Reason     string      `json:"reason"`
	TicketIDs  []uuid.UUID `json:"ticket_ids,omitempty"`
	Remaining  int         `json:"remaining"`
	Attempts   int         `json:"attempts"`
	DurationMS int64       `json:"duration_ms"`
	At         time.Time   `json:"at"`
}

// Publisher forwards outcomes to Kafka from a background loop. Observing
// never blocks: when the buffer is full, or Run has already stopped, the
// outcome is dropped and logged.
type Publisher struct {
	writer kafka.MessageWriter
	queue  chan domain.PurchaseOutcome
	logger *slog.Logger

	mu      sync.RWMutex
	stopped bool
}

func NewPublisher(writer kafka.MessageWriter, buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = defaultPublishBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		writer: writer,
		queue:  make(chan domain.PurchaseOutcome, buffer),
		logger: logger,
	}
}

func (p *Publisher) ObservePurchase(_ context.Context, o domain.PurchaseOutcome) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.logger.Warn("purchase publisher stopped, dropping outcome",
			"event_id", o.Request.EventID,
			"kind", o.Kind,
		)
		return
	}
	select {
	case p.queue <- o:
	default:
		p.logger.Warn("purchase publish buffer full, dropping outcome",
			"event_id", o.Request.EventID,
			"kind", o.Kind,
		)
	}
}

// Run publishes queued outcomes until ctx is done, then refuses new ones and
// flushes what is already buffered.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("purchase publisher started")
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.stopped = true
			p.mu.Unlock()

			p.drain()
			p.logger.Info("purchase publisher stopped")
			return
		case o := <-p.queue:
			p.publish(ctx, o)
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for {
		select {
		case o := <-p.queue:
			p.publish(ctx, o)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, o domain.PurchaseOutcome) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := purchaseMessage{
		EventID:    o.Request.EventID,
		UserID:     o.Request.UserID,
		Quantity:   o.Request.Quantity,
		Outcome:    outcomeSuccess,
		Kind:       string(o.Kind),
		Reason:     o.Reason,
		TicketIDs:  o.TicketIDs,
		Remaining:  o.Remaining,
		Attempts:   o.Attempts,
		DurationMS: o.Duration.Milliseconds(),
		At:         o.At,
	}
	if !o.Succeeded() {
		msg.Outcome = "failure"
	}

	key := strconv.FormatInt(o.Request.EventID, 10)
	if err := kafka.PublishJSON(ctx, p.writer, key, msg); err != nil {
		p.logger.Error("failed to publish purchase outcome", "event_id", o.Request.EventID, "error", err)
	}
}
