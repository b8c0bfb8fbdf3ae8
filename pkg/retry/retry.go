package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

type fn func(ctx context.Context) error
type shouldRetry func(err error, attempt int) bool

// Backoff is a capped exponential backoff with jitter. Limiter, when set, additionally caps the rate of
// attempts regardless of the computed delay.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	// Jitter is the fraction of the delay randomized in both directions, 0..1.
	Jitter  float64
	Limiter *rate.Limiter
}

// Default waits 500ms, 1s, 2s... up to 30s, with at most one attempt per second on average.
func Default() Backoff {
	return Backoff{
		Min:     500 * time.Millisecond,
		Max:     30 * time.Second,
		Factor:  2,
		Jitter:  0.2,
		Limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// Delay returns the pause before the given attempt, attempt 0 being the first retry.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Min <= 0 {
		return 0
	}

	factor := b.Factor
	if factor < 1 {
		factor = 2
	}

	d := float64(b.Min) * math.Pow(factor, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}

	if b.Jitter > 0 {
		j := math.Min(b.Jitter, 1)
		d += d * j * (rand.Float64()*2 - 1) //nolint:gosec
	}

	return time.Duration(d)
}

// Wait blocks for the attempt's delay and the limiter, whichever is longer, or until ctx is done.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WrapWithRetry - wraps the given function, retries it with backoff while it fails and shouldRetry returns true.
// Stops when the context is done.
func WrapWithRetry(f fn, shouldRetry shouldRetry, backoff Backoff) func(context.Context) error {
	return func(ctx context.Context) error {
		attempt := 0

		for {
			err := f(ctx)
			if err == nil {
				return nil
			}

			if ctx.Err() != nil || !shouldRetry(err, attempt) {
				return err
			}

			if werr := backoff.Wait(ctx, attempt); werr != nil {
				return err
			}

			attempt++
		}
	}
}
