package groupqueue

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrymomot/engram/pkg/async"
)

// Registry owns one Queue per group key, creating queues lazily on first
// lookup. All lookups for the same key return the same instance for the
// registry's lifetime; queues are only torn down by Shutdown. Construct a
// registry once at startup and inject it into everything that submits work,
// so independent components share the same per-group ordering.
type Registry[T any] struct {
	cfg *config

	mu     sync.RWMutex
	queues map[string]*Queue[T]
	closed bool
}

// NewRegistry creates an empty registry. The options set defaults applied to
// every queue the registry creates.
func NewRegistry[T any](opts ...Option) *Registry[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Registry[T]{
		cfg:    cfg,
		queues: make(map[string]*Queue[T]),
	}
}

// Get returns the queue for the given group, creating it on first use.
// Concurrent calls with the same key all receive the same instance. The
// returned queue is not started; call Start before or after submitting.
func (r *Registry[T]) Get(group string) (*Queue[T], error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrRegistryClosed
	}
	if q, ok := r.queues[group]; ok {
		r.mu.RUnlock()
		return q, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if q, ok := r.queues[group]; ok {
		return q, nil
	}
	q := newQueue[T](group, r.cfg)
	r.queues[group] = q
	return q, nil
}

// Len returns the number of queues the registry currently holds.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}

// Groups returns the group keys of all live queues in sorted order.
func (r *Registry[T]) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	groups := make([]string, 0, len(r.queues))
	for group := range r.queues {
		groups = append(groups, group)
	}
	slices.Sort(groups)
	return groups
}

// Shutdown permanently closes the registry and stops every queue, waiting
// for in-flight tasks bounded by ctx. New submissions are rejected before
// any worker is stopped, so no work slips in during teardown. Queues are
// stopped concurrently; the returned error joins every queue that failed to
// stop in time. Shutdown is idempotent.
func (r *Registry[T]) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	queues := make([]*Queue[T], 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.queues = nil
	r.mu.Unlock()

	for _, q := range queues {
		q.markClosed()
	}

	futures := make([]*async.Future[struct{}], 0, len(queues))
	for _, q := range queues {
		futures = append(futures, async.Async(ctx, q, stopQueue[T]))
	}
	_, err := async.WaitAll(futures...)
	return err
}

func stopQueue[T any](ctx context.Context, q *Queue[T]) (struct{}, error) {
	return struct{}{}, q.Stop(ctx)
}
