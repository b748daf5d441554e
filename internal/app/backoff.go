package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/bft-labs/powerwatch/internal/ports"
)

// Default backoff configuration values.
const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// backoff implements exponential backoff with jitter.
type backoff struct {
	max     time.Duration
	current time.Duration
}

// newBackoff creates a new backoff with the given initial and max durations.
func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		max:     max,
		current: initial,
	}
}

// Wait sleeps for the current backoff duration and increases it.
// Returns ctx.Err() if the context is cancelled first.
func (b *backoff) Wait(ctx context.Context) error {
	// Add jitter: ±20%
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	sleep := time.Duration(float64(b.current) + jitter)

	t := time.NewTimer(sleep)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	// Increase for next time
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return nil
}

// Retry calls fn until it succeeds, attempts are exhausted or ctx is done,
// sleeping with exponential backoff between attempts. It returns the last
// error from fn.
func Retry(ctx context.Context, logger ports.Logger, op string, attempts int, initial time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	b := newBackoff(initial, DefaultBackoffMax)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Warn(op+" failed",
			ports.Int("attempt", attempt),
			ports.Int("max_attempts", attempts),
			ports.Err(err),
		)
		if attempt == attempts {
			break
		}
		if werr := b.Wait(ctx); werr != nil {
			return fmt.Errorf("%s: %w (last error: %v)", op, werr, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
