package graph

import "errors"

// Package-specific errors
var (
	// ErrConnectionFailed is returned when the database cannot be reached
	ErrConnectionFailed = errors.New("failed to connect to graph database")

	// ErrQueryFailed is returned when a query is rejected by the database
	ErrQueryFailed = errors.New("graph query failed")

	// ErrInvalidReply is returned when a FalkorDB reply cannot be decoded
	ErrInvalidReply = errors.New("unexpected graph reply shape")

	// ErrUnsupportedBackend is returned for unknown backend names
	ErrUnsupportedBackend = errors.New("unsupported graph backend")

	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
)
