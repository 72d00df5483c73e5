package llm

import "errors"

// Domain errors for completion operations.
var (
	ErrAPIKeyRequired    = errors.New("API key is required")
	ErrNoMessages        = errors.New("request has no messages")
	ErrCompletionFailed  = errors.New("completion request failed")
	ErrEmptyResponse     = errors.New("model returned an empty response")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidJSON       = errors.New("model response is not valid JSON")
)
