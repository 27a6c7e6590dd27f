package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Busy-retry policy for writes contending on the single connection.
const (
	retryAttempts  = 4
	retryBaseDelay = 10 * time.Millisecond
	retryMaxDelay  = 200 * time.Millisecond
)

// isRetryable reports whether err is a transient SQLite lock error.
// Cancellation and everything else are final.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"database is locked", "database table is locked", "sqlite_busy", "busy"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// backoff returns the exponential delay before retry number attempt,
// capped at retryMaxDelay.
func backoff(attempt int) time.Duration {
	delay := retryBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return delay
}

// withRetry runs fn, retrying transient lock errors with backoff.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); !isRetryable(err) || attempt == retryAttempts-1 {
			return err
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
