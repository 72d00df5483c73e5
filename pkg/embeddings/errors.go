package embeddings

import "errors"

// Domain errors for embedding operations.
var (
	ErrAPIKeyRequired        = errors.New("API key is required")
	ErrInvalidModel          = errors.New("invalid model name")
	ErrEmptyText             = errors.New("text cannot be empty")
	ErrEmbeddingFailed       = errors.New("failed to embed text")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrContextLengthExceeded = errors.New("text exceeds maximum context length")
)
