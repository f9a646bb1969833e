package observer

import (
	"context"
	"log/slog"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

// Logger writes one structured line per purchase outcome.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) ObservePurchase(ctx context.Context, o domain.PurchaseOutcome) {
	attrs := []any{
		"event_id", o.Request.EventID,
		"user_id", o.Request.UserID,
		"quantity", o.Request.Quantity,
		"attempts", o.Attempts,
		"duration", o.Duration,
	}

	if o.Succeeded() {
		l.logger.InfoContext(ctx, "purchase completed", append(attrs, "remaining", o.Remaining)...)
		return
	}
	l.logger.WarnContext(ctx, "purchase rejected", append(attrs, "kind", o.Kind, "reason", o.Reason)...)
}
