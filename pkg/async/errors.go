package async

import "errors"

// ErrTimeout is returned by AwaitWithTimeout when the future is not resolved
// within the given duration.
var ErrTimeout = errors.New("async: operation timed out waiting for future completion")
