package contract

import (
	"context"

	"pdf-chat-be/internal/entity"
)

// DefaultTopK is used when Query is called with k <= 0.
const DefaultTopK = 4

// VectorIndex holds the embedded chunks of the single active document.
type VectorIndex interface {
	// ReplaceAll swaps the whole collection. Concurrent readers observe either
	// the previous collection or the new one, never a mix.
	ReplaceAll(ctx context.Context, chunks []entity.IndexedChunk) error
	// Query returns up to k chunks ordered by descending cosine similarity.
	// Ties keep insertion order. An empty index yields an empty slice.
	Query(ctx context.Context, embedding []float32, k int) ([]entity.ScoredChunk, error)
	Count(ctx context.Context) (int64, error)
}
