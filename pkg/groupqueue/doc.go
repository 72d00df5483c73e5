// Package groupqueue provides per-group serial execution queues with a
// process-wide registry.
//
// Work submitted under the same group key is executed strictly one item at a
// time, in arrival order, by a single background worker owned by that group's
// queue. Work submitted under different group keys proceeds fully in
// parallel. Queues are created lazily on first use and live until the
// registry is shut down.
//
// # Architecture
//
//   - Task       — a deferred unit of work producing a result or an error
//   - Queue      — one group's FIFO backlog plus its single worker goroutine
//   - Registry   — directory mapping group keys to queues, one per key
//   - Future     — completion handle (pkg/async) for wait-for-result callers
//
// Submissions come in two modes. Enqueue is fire-and-forget and returns the
// backlog depth at the moment of insertion, a non-authoritative hint that may
// be stale as soon as it is read. EnqueueWait returns an async.Future that
// the worker resolves with the task's result or error once it has been
// executed.
//
// # Usage
//
//	reg := groupqueue.NewRegistry[string](groupqueue.WithLogger(log))
//
//	q, err := reg.Get("tenant-42")
//	if err != nil {
//	    return err
//	}
//	q.Start() // idempotent, safe before every submission
//
//	fut, err := q.EnqueueWait("import-profile", func(ctx context.Context) (string, error) {
//	    return importProfile(ctx, payload)
//	})
//	if err != nil {
//	    return err
//	}
//	result, err := fut.AwaitContext(ctx)
//
// On process shutdown, stop the intake of new work first, then call
// reg.Shutdown to stop every worker. Cancellation is cooperative: a worker
// checks for a stop request while idle and between items, never mid-item, so
// an in-flight task always runs to completion.
//
// # Error Handling
//
// A task's own failure is logged, delivered to the attached future if one
// exists, and never affects the worker or later items. Enqueue-time failures
// (ErrQueueClosed after registry shutdown, ErrBacklogFull when a capacity
// bound is configured) are returned synchronously to the submitter.
package groupqueue
