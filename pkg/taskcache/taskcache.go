// Package taskcache implements the async task cache (C7): deduplicated,
// TTL-retained background materialization of derived snapshots, plus a
// bounded worker pool for the catalog layer's parallel metadata work.
// Grounded on the teacher's errgroup-driven parallel I/O
// (pkg/iceberg/parquet.go, pkg/bench/multipart_upload.go) for the worker
// pool shape, extended with golang.org/x/sync/singleflight for the
// single-flight-per-key dedup contract spec.md §4.7 asks for.
package taskcache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/engutil"
)

// TaskState is one async-task entry's lifecycle state.
type TaskState uint8

const (
	Running TaskState = iota + 1
	Success
	Failure
)

// entry is one retained task-cache slot, keyed by taskKey.
type entry struct {
	state     TaskState
	value     any
	err       error
	startedAt time.Time
	lease     string
	expiresAt time.Time
}

// Config tunes retention and retry behavior.
type Config struct {
	// TTL is how long a Success/Failure entry is retained before it is
	// evicted and the next Get recomputes it.
	TTL time.Duration
	// FailureBackoff is how long a Failure entry is retained before a
	// retry is allowed, distinct from (and usually shorter than) TTL.
	FailureBackoff time.Duration
}

// DefaultConfig returns a five-minute success TTL and a ten-second
// failure backoff, generous enough to absorb a burst of identical reads
// without holding a failed computation's error indefinitely.
func DefaultConfig() Config {
	return Config{TTL: 5 * time.Minute, FailureBackoff: 10 * time.Second}
}

// Cache deduplicates concurrent computations of the same taskKey via
// singleflight, retains completed results for a TTL, and persists
// successful values through an injected, best-effort hook. It owns no
// in-process lock beyond the map mutex guarding its own bookkeeping — the
// commit/catalog layers above never hold this lock across a suspension
// point.
type Cache struct {
	cfg   Config
	clock engutil.Clock
	log   engutil.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry

	// persist is a best-effort hook invoked after a successful compute.
	// It runs on its own goroutine, so it never blocks or delays the
	// caller's result; it returns nothing, so any failure is the hook's
	// own to handle. Persistence is advisory (the next process can always
	// recompute from the metadata file).
	persist func(ctx context.Context, taskKey string, value any)
}

// New builds a Cache. persist may be nil (no persistence hook).
func New(cfg Config, clock engutil.Clock, log engutil.Logger, persist func(ctx context.Context, taskKey string, value any)) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = DefaultConfig().FailureBackoff
	}
	if log == nil {
		log = engutil.NopLogger{}
	}
	return &Cache{cfg: cfg, clock: clock, log: log, entries: make(map[string]*entry), persist: persist}
}

// ComputeFn materializes the value for a taskKey on a cache miss.
type ComputeFn func(ctx context.Context) (any, error)

// Get returns the cached value for taskKey, computing it via compute if
// absent, expired, or past a failed attempt's backoff window. Exactly one
// compute runs per taskKey at a time — concurrent callers for the same
// key observe the same singleflight call and therefore identical results,
// satisfying spec.md §8's task-dedup property.
func (c *Cache) Get(ctx context.Context, taskKey string, compute ComputeFn) (any, error) {
	if v, ok := c.freshHit(taskKey); ok {
		return v.value, v.err
	}

	v, err, _ := c.group.Do(taskKey, func() (any, error) {
		// Re-check under the singleflight call: another goroutine may
		// have populated a fresh entry between our freshHit miss and
		// the Do call actually running.
		if v, ok := c.freshHit(taskKey); ok {
			return v.value, v.err
		}

		now := c.now()
		c.mu.Lock()
		c.entries[taskKey] = &entry{state: Running, startedAt: now, lease: uuid.NewString()}
		c.mu.Unlock()

		value, computeErr := compute(ctx)

		c.mu.Lock()
		e := &entry{startedAt: now}
		if computeErr != nil {
			e.state = Failure
			e.err = computeErr
			e.expiresAt = c.now().Add(c.cfg.FailureBackoff)
		} else {
			e.state = Success
			e.value = value
			e.expiresAt = c.now().Add(c.cfg.TTL)
		}
		c.entries[taskKey] = e
		c.mu.Unlock()

		if computeErr == nil && c.persist != nil {
			go c.persist(ctx, taskKey, value)
		}
		return value, computeErr
	})
	return v, err
}

// freshHit returns the cached entry for taskKey if it is still within its
// retention window.
func (c *Cache) freshHit(taskKey string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[taskKey]
	if !ok || e.state == Running {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		return nil, false
	}
	return e, true
}

// Put directly inserts a Success entry for taskKey, used by the catalog
// layer to pre-populate the cache right after a commit so the next reader
// skips recomputation entirely (spec.md §4.6's "store each derived
// snapshot via C7" step).
func (c *Cache) Put(taskKey string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[taskKey] = &entry{state: Success, value: value, startedAt: c.now(), expiresAt: c.now().Add(c.cfg.TTL)}
}

// Invalidate drops any retained entry for taskKey, forcing the next Get
// to recompute.
func (c *Cache) Invalidate(taskKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, taskKey)
}

func (c *Cache) now() time.Time {
	if c.clock == nil {
		return time.Now()
	}
	return c.clock.Now()
}

// ErrBusy is returned by WorkerPool.Submit when the bounded queue is full.
var ErrBusy = engerr.New(engerr.Unavailable, "task cache worker pool is at capacity")
