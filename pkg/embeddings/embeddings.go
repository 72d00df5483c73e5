package embeddings

import (
	"context"
	"math"
)

// Vector represents a text embedding. The dimensionality depends on the
// model used (e.g., 3072 for text-embedding-3-large).
type Vector []float64

// Provider defines the interface for embedding backends.
// Implementations should handle API authentication and error mapping.
type Provider interface {
	// Embed converts a single text into a vector embedding.
	Embed(ctx context.Context, text string) (Vector, error)

	// EmbedBatch converts multiple texts into vectors in a single request.
	// More efficient than calling Embed multiple times.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)

	// Dimensions returns the vector dimensions for the current model.
	Dimensions() int
}

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// Mismatched or zero-length vectors score 0.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
