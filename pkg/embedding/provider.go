package embedding

import (
	"context"
	"math"
)

// EmbeddingProvider turns texts into vectors. The result has one vector per
// input, in input order, all of the same dimension.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// normalizeVector normalizes a vector to unit length (magnitude = 1).
// Cosine distance in pgvector and the in-memory index both assume it.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	// Avoid division by zero
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}

// batches splits texts into consecutive slices of at most size elements.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}
