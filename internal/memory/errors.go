package memory

import "errors"

// Common errors
var (
	// ErrEmptyContent is returned when an episode has no content to process
	ErrEmptyContent = errors.New("episode content is empty")

	// ErrExtractionFailed wraps failures of the entity extraction step
	ErrExtractionFailed = errors.New("entity extraction failed")

	// ErrEmbeddingFailed wraps failures of the embedding step
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrStorageFailed wraps graph write and read failures
	ErrStorageFailed = errors.New("graph storage failed")
)
