package store

import (
	"context"
	"errors"
	"time"
)

// Retry policy for transient store failures. State-machine violations
// and missing records are permanent and never retried.
const (
	retryAttempts     = 3
	retryInitialDelay = 200 * time.Millisecond
	retryMultiplier   = 2
)

// permanent lists errors that retrying cannot fix.
var permanent = []error{
	ErrNotFound,
	ErrJobExists,
	ErrJobTerminal,
	ErrInvalidTransition,
	ErrProgressRegression,
	ErrNoResult,
}

func isPermanent(err error) bool {
	for _, p := range permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

// WithRetry runs fn up to three times with exponential backoff, stopping
// early on success, a permanent error, or context cancellation.
func WithRetry(ctx context.Context, fn func() error) error {
	delay := retryInitialDelay
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
				delay *= retryMultiplier
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = fn()
		if err == nil || isPermanent(err) {
			return err
		}
	}
	return err
}
