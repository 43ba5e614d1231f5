// Package retry implements the exponential-backoff retry policy shared by
// every external source client: 2^(n-1) seconds between attempts, honoring
// a server-supplied Retry-After when present.
package retry

import (
	"context"
	"errors"
	"time"
)

// Options configures a retry loop.
type Options struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the multiplier for the exponential backoff
	// (attempt n waits BaseDelay * 2^(n-1)).
	BaseDelay time.Duration
	// DefaultRetryAfter is carried for callers but Do does not read it:
	// an After error with a zero delay (a 429 with no usable Retry-After
	// header) waits the computed exponential step, like any Retryable
	// error, whatever this field holds.
	DefaultRetryAfter time.Duration
}

// DefaultOptions returns the spec's baseline policy: 3 attempts, 1s base
// delay (1s, 2s, 4s), DefaultRetryAfter set to 60s (not read by Do).
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		DefaultRetryAfter: 60 * time.Second,
	}
}

// RetryableError wraps an error with an explicit decision about whether
// the attempt loop should try again, and an optional server-requested
// delay override (e.g. from a Retry-After header).
type RetryableError struct {
	Err        error
	Retryable  bool
	RetryAfter time.Duration // zero means "use the computed backoff step"
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Stop wraps err as a non-retryable terminal error.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, Retryable: false}
}

// After wraps err as retryable, honoring an explicit delay (e.g. a
// parsed Retry-After header) for the next attempt.
func After(err error, delay time.Duration) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, Retryable: true, RetryAfter: delay}
}

// Retryable wraps err as retryable using the loop's computed backoff step.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, Retryable: true}
}

// Do runs fn up to opts.MaxAttempts times. fn should return nil on
// success, or an error produced by Stop/After/Retryable to signal whether
// another attempt should be made. A plain (non-wrapped) error is treated
// as non-retryable, matching "only truly unexpected conditions propagate".
//
// Do itself never blocks past ctx's deadline: the inter-attempt sleep is
// interruptible by ctx.Done().
func Do(ctx context.Context, opts Options, fn func(ctx context.Context, attempt int) error) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		var re *RetryableError
		if !errors.As(err, &re) || !re.Retryable {
			return err
		}
		if attempt == opts.MaxAttempts {
			break
		}

		delay := re.RetryAfter
		if delay <= 0 {
			delay = backoffStep(opts.BaseDelay, attempt)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// backoffStep computes 2^(n-1) * base for attempt n (1-indexed).
func backoffStep(base time.Duration, attempt int) time.Duration {
	step := base
	for i := 1; i < attempt; i++ {
		step *= 2
	}
	return step
}
