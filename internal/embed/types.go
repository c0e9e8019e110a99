// Package embed defines the embedding provider port and its implementations.
// Providers are pure functions of input text modulo model state and must be
// callable concurrently.
package embed

import (
	"context"
	"math"

	"github.com/marlonsc/mcb/internal/ids"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps batch size to prevent memory exhaustion.
	MaxBatchSize = 256

	// StaticDimensions is the embedding dimension for the static provider.
	StaticDimensions = 256
)

// Provider generates vector embeddings for text.
type Provider interface {
	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([]ids.Embedding, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ProviderName returns the provider identifier.
	ProviderName() string
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
