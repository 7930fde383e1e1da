// Package retry provides a retry policy value object with exponential
// backoff and jitter, applied uniformly at the boundaries where external
// services (persistence, AI provider) are called.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy configures retry behavior. The zero value is not useful; use
// DefaultPolicy or construct explicitly.
type Policy struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // cap on the computed delay
	Multiplier   float64       // backoff multiplier, typically 2.0
	Jitter       bool          // randomize each delay to avoid thundering herd
}

// DefaultPolicy returns sensible defaults for store operations.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NonRetryableError wraps errors that must not be retried.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return fmt.Sprintf("non-retryable: %v", e.Err) }
func (e *NonRetryableError) Unwrap() error { return e.Err }

// NonRetryable marks an error as terminal for Do.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err was marked with NonRetryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Do runs fn until it succeeds, the policy is exhausted, fn returns a
// non-retryable error, or ctx is done. The last error is returned with
// the non-retryable wrapper stripped.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}

	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var nre *NonRetryableError
		if errors.As(lastErr, &nre) {
			return nre.Err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := delay
		if p.Jitter && wait > 0 {
			// Full jitter: anywhere between half and the full delay.
			wait = wait/2 + time.Duration(rand.Int63n(int64(wait/2)+1))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return lastErr
}
