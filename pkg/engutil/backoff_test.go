package engutil

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDelayCapped(t *testing.T) {
	c := BackoffConfig{MaxAttempts: 5, Base: 10 * time.Millisecond, Max: 50 * time.Millisecond}
	for attempt := 1; attempt < 10; attempt++ {
		d := c.Delay(attempt)
		if d > c.Max+c.Max/2 {
			t.Fatalf("attempt %d: delay %v exceeds cap plus max jitter", attempt, d)
		}
	}
}

func TestBackoffDelayZeroForFirstAttempt(t *testing.T) {
	c := DefaultBackoff()
	if c.Delay(0) != 0 {
		t.Fatal("expected no delay before the first attempt")
	}
}

func TestSleepCancellation(t *testing.T) {
	c := BackoffConfig{MaxAttempts: 3, Base: time.Second, Max: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if c.Sleep(ctx, 2) {
		t.Fatal("expected Sleep to report cancellation")
	}
}
