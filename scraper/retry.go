package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// retryPolicy retries an operation on transient failure with a fixed
// backoff. The pipeline never advances past a request that has not
// succeeded, so the sleep happens in-line rather than on a timer.
type retryPolicy struct {
	Backoff time.Duration
	// MaxAttempts of zero retries without bound, preserving the original
	// availability-over-liveness tradeoff. A positive cap turns retry
	// exhaustion into an error for the caller.
	MaxAttempts int
}

// do runs fn until it succeeds, fails permanently, or exhausts its attempt
// budget. Context cancellation interrupts the backoff sleep.
func (p retryPolicy) do(ctx context.Context, label string, metrics *Metrics, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", label, ctx.Err())
		}
		if !isTransient(err) {
			return err
		}

		metrics.IncError(errorTypeLabel(err))
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", label, attempt, err)
		}

		metrics.IncRetries()
		slog.Warn("transient failure, backing off",
			slog.String("op", label),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", p.Backoff),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", label, ctx.Err())
		case <-time.After(p.Backoff):
		}
	}
}
