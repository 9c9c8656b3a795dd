package engutil

import (
	"context"
	"math/rand/v2"
	"time"
)

// BackoffConfig controls capped exponential backoff with jitter, used to
// retry on BackendUnavailable and on CAS mismatches.
type BackoffConfig struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

// DefaultBackoff returns reasonable defaults for commit-retry loops.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxAttempts: 10,
		Base:        100 * time.Millisecond,
		Max:         5 * time.Second,
	}
}

// Delay returns the backoff duration before the given attempt (0-based),
// with jitter in [0, computed/2] added on top of the exponential base.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	backoff := c.Base * time.Duration(1<<uint(attempt-1))
	if backoff > c.Max {
		backoff = c.Max
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2 + 1))
	return backoff + jitter
}

// Sleep waits out Delay(attempt), honoring ctx cancellation, and reports
// whether the wait completed (false means ctx was done first).
func (c BackoffConfig) Sleep(ctx context.Context, attempt int) bool {
	d := c.Delay(attempt)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
