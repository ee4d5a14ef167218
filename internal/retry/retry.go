// Package retry provides backoff retry loops for transient failures.
//
// The store uses it to wait for the single-writer lock: contention is retried
// without bound, every other error fails immediately.
//
//	cfg := retry.Config{
//	    InitialBackoff: time.Millisecond,
//	    MaxBackoff:     10 * time.Millisecond,
//	}
//
//	err := retry.Do(ctx, cfg, func() error {
//	    return lock.TryLock()
//	}, func(err error) bool {
//	    return errors.Is(err, store.ErrLocked)
//	})
//
// # Backoff Strategy
//
// The backoff duration follows an exponential pattern: InitialBackoff * 2^(attempt-1),
// capped at MaxBackoff. Optional jitter spreads concurrent waiters apart.
//
// # Context Cancellation
//
// A canceled context ends the loop during a backoff period with the context
// error. This is the only way to leave an unbounded loop other than success or
// a non-retryable error.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config defines the retry behavior.
type Config struct {
	// MaxRetries is the maximum number of attempts.
	// Zero or negative means retry until success, a non-retryable error, or
	// context cancellation.
	MaxRetries int

	// InitialBackoff is the base backoff duration.
	// Each retry multiplies this by 2^(attempt-1). Zero retries immediately.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Zero means no cap.
	MaxBackoff time.Duration

	// Jitter adds randomness to backoff (0.0 to 1.0). With a bounded number
	// of attempts the jitter grows linearly with the attempt number:
	//   jitter_amount = backoff * Jitter * attempt / MaxRetries
	// With unbounded attempts it is a flat backoff * Jitter.
	Jitter float64

	// OnRetry is called before every backoff with the attempt that just
	// failed (starting at 1) and its error. Optional.
	OnRetry func(attempt int, err error)
}

// Unbounded reports whether the config retries without an attempt limit.
func (c Config) Unbounded() bool {
	return c.MaxRetries <= 0
}

// ShouldRetryFunc is a function that determines if an error should trigger a retry.
//
// Return true to retry the operation, or false to fail immediately with the error.
// If this function is nil when passed to Do, all errors will be retried.
type ShouldRetryFunc func(error) bool

// Do executes fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx is canceled.
//
// When a bounded number of attempts is exhausted, Do returns an error wrapping
// the last error from fn. A non-retryable error is returned as is.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; cfg.Unbounded() || attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, lastErr)
			}

			if err := sleep(ctx, calculateBackoff(cfg, attempt)); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// calculateBackoff computes the backoff duration for a given attempt.
//
// For example, with InitialBackoff=100ms, MaxBackoff=1s, Jitter=0.5, MaxRetries=5:
//   - Attempt 1: 100ms base + 10ms jitter = 110ms
//   - Attempt 2: 200ms base + 40ms jitter = 240ms
//   - Attempt 3: 400ms base + 120ms jitter = 520ms
//   - Attempt 4: 800ms base + 320ms jitter = 1.12s
func calculateBackoff(cfg Config, attempt int) time.Duration {
	if cfg.InitialBackoff <= 0 {
		return 0
	}

	backoff := time.Duration(math.MaxInt64)
	multiplier := math.Pow(2, float64(attempt-1))
	if scaled := multiplier * float64(cfg.InitialBackoff); scaled < math.MaxInt64 {
		backoff = time.Duration(scaled)
	}

	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 {
		jitterAmount := float64(backoff) * cfg.Jitter
		if !cfg.Unbounded() {
			jitterAmount = jitterAmount * float64(attempt) / float64(cfg.MaxRetries)
		}
		if jitterAmount < float64(math.MaxInt64-backoff) {
			backoff += time.Duration(jitterAmount)
		}
	}

	return backoff
}
