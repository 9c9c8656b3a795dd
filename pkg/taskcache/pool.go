package taskcache

import (
	"context"

	"golang.org/x/time/rate"
)

// WorkerPool is the bounded-queue executor spec.md §5 describes: request
// threads submit async materialization work and observe a future;
// overflow is rejected with Busy rather than queued unboundedly. Built on
// a rate.Limiter used as a token-bucket admission gate (burst = queue
// depth) rather than a literal channel-backed queue, so "at capacity"
// is a non-blocking check instead of a blocking send.
type WorkerPool struct {
	admission *rate.Limiter
	sem       chan struct{}
}

// NewWorkerPool builds a pool with maxConcurrent in-flight tasks. Burst
// admission beyond maxConcurrent is rejected immediately.
func NewWorkerPool(maxConcurrent int) *WorkerPool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &WorkerPool{
		admission: rate.NewLimiter(rate.Limit(maxConcurrent), maxConcurrent),
		sem:       make(chan struct{}, maxConcurrent),
	}
}

// Submit runs fn in a new goroutine if the pool has capacity, returning
// ErrBusy immediately otherwise. The returned error channel receives fn's
// result exactly once.
func (p *WorkerPool) Submit(ctx context.Context, fn func(ctx context.Context) error) (<-chan error, error) {
	if !p.admission.Allow() {
		return nil, ErrBusy
	}
	select {
	case p.sem <- struct{}{}:
	default:
		return nil, ErrBusy
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-p.sem }()
		done <- fn(ctx)
	}()
	return done, nil
}
