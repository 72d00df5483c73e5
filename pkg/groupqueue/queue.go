package groupqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/engram/pkg/async"
)

// Task is a deferred unit of work executed by a group's worker.
//
// A task must capture everything it needs at construction time, including any
// time reference if its semantics are temporal. The context it receives is
// owned by the queue and carries only the optional per-task deadline; it is
// deliberately not derived from the worker's stop signal, so stopping a queue
// never interrupts an in-flight task.
type Task[T any] func(ctx context.Context) (T, error)

// item pairs a task with its optional completion handle.
type item[T any] struct {
	name   string
	task   Task[T]
	future *async.Future[T] // nil for fire-and-forget submissions
}

// Queue executes tasks belonging to a single group strictly one at a time,
// in the exact order they were enqueued. At most one worker goroutine is
// active per queue. Queues are created by a Registry; use Registry.Get.
type Queue[T any] struct {
	group       string
	log         *slog.Logger
	maxDepth    int
	taskTimeout time.Duration

	mu      sync.Mutex
	backlog []item[T]
	wake    chan struct{}
	running bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newQueue[T any](group string, cfg *config) *Queue[T] {
	return &Queue[T]{
		group:       group,
		log:         cfg.logger,
		maxDepth:    cfg.maxDepth,
		taskTimeout: cfg.taskTimeout,
		wake:        make(chan struct{}, 1),
	}
}

// Group returns the group key this queue serializes.
func (q *Queue[T]) Group() string {
	return q.group
}

// Running reports whether a worker is currently draining the backlog.
func (q *Queue[T]) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Depth returns the number of pending items in the backlog. The value is a
// snapshot and may be stale by the time the caller reads it.
func (q *Queue[T]) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Start launches the queue's worker if one is not already running. It is
// idempotent, so callers may invoke it unconditionally before every
// submission without racing each other. A queue closed by a registry
// shutdown stays stopped.
func (q *Queue[T]) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running || q.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.done = make(chan struct{})
	q.running = true
	go q.work(ctx, q.done)

	q.log.Info("group queue worker started", slog.String("group", q.group))
}

// Stop asks the worker to finish and waits for it to acknowledge, bounded by
// ctx. Cancellation is cooperative: the worker observes the request while
// idle or between items, so an in-flight task runs to completion first. The
// backlog is preserved, and Start may be called again afterwards.
func (q *Queue[T]) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	cancel, done := q.cancel, q.done
	q.mu.Unlock()

	cancel()

	select {
	case <-done:
		q.log.Info("group queue worker stopped", slog.String("group", q.group))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue appends a fire-and-forget task to the backlog and returns the
// backlog depth including the new item, computed atomically with the
// insertion. The depth is a hint only: the worker drains the backlog
// concurrently, so it may be stale as soon as it is returned. Enqueue never
// blocks on the worker's progress.
func (q *Queue[T]) Enqueue(name string, task Task[T]) (int, error) {
	return q.push(name, task, nil)
}

// EnqueueWait appends a task and returns a future the worker resolves with
// the task's result or error once it has been executed in turn.
func (q *Queue[T]) EnqueueWait(name string, task Task[T]) (*async.Future[T], error) {
	fut := async.NewFuture[T]()
	if _, err := q.push(name, task, fut); err != nil {
		return nil, err
	}
	return fut, nil
}

func (q *Queue[T]) push(name string, task Task[T], fut *async.Future[T]) (int, error) {
	if task == nil {
		return 0, ErrNilTask
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, ErrQueueClosed
	}
	if q.maxDepth > 0 && len(q.backlog) >= q.maxDepth {
		q.mu.Unlock()
		return 0, ErrBacklogFull
	}
	q.backlog = append(q.backlog, item[T]{name: name, task: task, future: fut})
	depth := len(q.backlog)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return depth, nil
}

// markClosed permanently rejects new submissions. Called by the registry
// during shutdown, before the worker is stopped.
func (q *Queue[T]) markClosed() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// work is the single worker loop. It exits only on a stop request or an
// internal fault; either way the queue is marked not running so a later
// Start can bring up a fresh worker.
func (q *Queue[T]) work(ctx context.Context, done chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("group queue worker crashed",
				slog.String("group", q.group),
				slog.Any("panic", r))
		}
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		close(done)
	}()

	for {
		it, ok := q.next(ctx)
		if !ok {
			return
		}
		q.execute(it)
	}
}

// next blocks until an item is available or a stop is requested. The stop
// signal is checked only here, between items and while idle-waiting, never
// while an item runs.
func (q *Queue[T]) next(ctx context.Context) (item[T], bool) {
	var zero item[T]
	for {
		select {
		case <-ctx.Done():
			return zero, false
		default:
		}

		q.mu.Lock()
		if len(q.backlog) > 0 {
			it := q.backlog[0]
			q.backlog[0] = zero
			q.backlog = q.backlog[1:]
			if len(q.backlog) == 0 {
				q.backlog = nil
			}
			q.mu.Unlock()
			return it, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, false
		case <-q.wake:
		}
	}
}

func (q *Queue[T]) execute(it item[T]) {
	ctx := context.Background()
	if q.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.taskTimeout)
		defer cancel()
	}

	result, err := q.runTask(ctx, it.task)
	if err != nil {
		q.log.Error("task failed",
			slog.String("group", q.group),
			slog.String("task", it.name),
			slog.String("error", err.Error()))
	}
	if it.future != nil {
		it.future.Complete(result, err)
	}
}

// runTask invokes the task, converting a panic into an error so one bad item
// cannot take down the group's worker.
func (q *Queue[T]) runTask(ctx context.Context, task Task[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}
