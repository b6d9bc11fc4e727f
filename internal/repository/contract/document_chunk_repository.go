package contract

import (
	"context"

	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/repository/specification"
)

// ScoredDocumentChunk wraps DocumentChunk with its similarity score
type ScoredDocumentChunk struct {
	Chunk      *entity.DocumentChunk
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type DocumentChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.DocumentChunk) error
	DeleteByCollection(ctx context.Context, collection string) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentChunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarWithScore returns the nearest chunks of a collection by cosine distance.
	SearchSimilarWithScore(ctx context.Context, collection string, embedding []float32, limit int) ([]*ScoredDocumentChunk, error)
}
