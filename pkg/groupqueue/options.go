package groupqueue

import (
	"log/slog"
	"time"
)

// Option is a functional option applied to every queue a registry creates.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	maxDepth    int
	taskTimeout time.Duration
}

func defaultConfig() *config {
	return &config{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger used for queue lifecycle and task failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxDepth bounds the backlog of each queue to n pending items.
// The default of 0 leaves the backlog unbounded.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithTaskTimeout sets a deadline on the context passed to each task.
// The default of 0 lets tasks run without a deadline, which means a task
// that never returns stalls its group permanently.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.taskTimeout = d
		}
	}
}
