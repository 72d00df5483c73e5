package async

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Future represents the eventual result of an asynchronous operation.
//
// A Future is a single-assignment slot: it is resolved exactly once via
// Complete, and every reader blocks until that happens. The zero value is not
// usable; create instances with NewFuture or Async.
type Future[T any] struct {
	result T
	err    error
	once   sync.Once
	done   chan struct{}
}

// NewFuture returns an unresolved Future.
//
// Use this form when the producer of the result is not a goroutine spawned
// here but some other component that calls Complete when it is done, such as
// a worker draining a queue.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Complete resolves the future with the given result and error.
//
// Only the first call has any effect; the future is permanently settled
// afterwards and later calls are ignored.
func (f *Future[T]) Complete(result T, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Await blocks until the future is resolved and returns its result and error.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext blocks until the future is resolved or the context is done,
// whichever happens first. On context expiry the context error is returned
// and the future itself stays pending for other readers.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout blocks until the future is resolved or the timeout
// elapses. On timeout it returns ErrTimeout.
func (f *Future[T]) AwaitWithTimeout(timeout time.Duration) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-time.After(timeout):
		var zero T
		return zero, ErrTimeout
	}
}

// IsComplete reports whether the future has been resolved, without blocking.
func (f *Future[T]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Async executes fn in its own goroutine and returns a Future for its result.
//
// If the context is already cancelled the function is not invoked and the
// future resolves with the context error.
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := NewFuture[U]()

	go func() {
		select {
		case <-ctx.Done():
			var zero U
			f.Complete(zero, ctx.Err())
			return
		default:
		}

		result, err := fn(ctx, param)
		f.Complete(result, err)
	}()

	return f
}

// WaitAll blocks until every future is resolved and returns their results in
// order. Errors from individual futures are joined; the combined error is nil
// only when all futures succeeded.
func WaitAll[U any](futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))
	var errs []error

	for i, future := range futures {
		result, err := future.Await()
		results[i] = result
		if err != nil {
			errs = append(errs, err)
		}
	}

	return results, errors.Join(errs...)
}
