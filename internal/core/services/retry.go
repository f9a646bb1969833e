package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

// RetryPolicy bounds how often a purchase is re-attempted after a transient
// store failure. Delays use full jitter: a uniform draw from
// [0, min(MaxBackoff, BaseBackoff*2^(n-1))].
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 25 * time.Millisecond,
		MaxBackoff:  250 * time.Millisecond,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = def.BaseBackoff
	}
	if p.MaxBackoff < p.BaseBackoff {
		p.MaxBackoff = p.BaseBackoff
	}
	return p
}

// Backoff returns the delay before retry number attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return jitter(p.ceiling(attempt))
}

func (p RetryPolicy) ceiling(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	ceiling := p.BaseBackoff
	for i := 1; i < attempt && ceiling < p.MaxBackoff; i++ {
		ceiling *= 2
	}
	if ceiling > p.MaxBackoff {
		ceiling = p.MaxBackoff
	}
	return ceiling
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit + 1)
}

// sleepContext waits for d or until ctx ends. An ended context is reported
// as a store failure because it only fires on the store deadline.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// storeError maps context expiry to ErrStoreUnavailable so the purchase
// fails closed instead of surfacing a bare context error.
func storeError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if domain.Retryable(err) || errors.Is(err, domain.ErrCommitUnknown) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
