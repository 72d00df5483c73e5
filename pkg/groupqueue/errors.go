package groupqueue

import "errors"

// Common errors
var (
	// ErrQueueClosed is returned when submitting to a queue that was
	// permanently closed by a registry shutdown
	ErrQueueClosed = errors.New("queue has been permanently closed")

	// ErrBacklogFull is returned when a capacity bound is configured and the
	// backlog is at it
	ErrBacklogFull = errors.New("queue backlog capacity exceeded")

	// ErrRegistryClosed is returned by Get after the registry was shut down
	ErrRegistryClosed = errors.New("registry has been shut down")

	// ErrNilTask is returned when submitting a nil task
	ErrNilTask = errors.New("task cannot be nil")
)
