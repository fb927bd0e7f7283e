// Package embedding provides the text-to-vector capability used by the
// goal-drift detector. The backend is a black box: given text, return a
// fixed-length vector.
package embedding

import (
	"context"
	"math"
)

// Embedder converts text into a dense vector suitable for semantic
// similarity comparison. Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to the Embedder interface. Useful for
// tests and for callers that already hold an embedding closure.
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed calls the underlying function
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Cosine computes the cosine similarity between two vectors:
// dot(a,b) / (|a|*|b|). Returns 0 if either vector has zero norm or the
// lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
