package observer

import (
	"context"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
	"github.com/srgjo27/ticket_engine/internal/core/ports"
)

// Multi fans an outcome out to every observer in order.
type Multi []ports.OutcomeObserver

func (m Multi) ObservePurchase(ctx context.Context, o domain.PurchaseOutcome) {
	for _, obs := range m {
		obs.ObservePurchase(ctx, o)
	}
}
