package store

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks a backend failure that may succeed on another attempt.
type RetryableError struct{ Err error }

// Retryable marks err as retryable. A nil error stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err, or anything it wraps, was marked by [Retryable].
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

type retryPolicy struct {
	attempts int
	delay    time.Duration // doubled after every failed attempt
}

var defaultRetry = retryPolicy{attempts: 3, delay: 200 * time.Millisecond}

// RetryWithBackoff runs fn until it succeeds, returns an error not marked
// retryable, or runs out of attempts. Cancelling ctx aborts the wait
// between attempts.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return defaultRetry.do(ctx, fn)
}

func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	wait := p.delay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !IsRetryable(err) || attempt >= p.attempts {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
}

// retryIfTransient marks network timeouts retryable and passes every other
// error through unchanged.
func retryIfTransient(err error) error {
	if err != nil && transient(err) {
		return Retryable(err)
	}
	return err
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr)
}
