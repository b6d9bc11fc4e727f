package pgvector

import (
	"context"
	"fmt"

	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/mapper"
	"pdf-chat-be/internal/repository/contract"
	"pdf-chat-be/internal/repository/specification"
	"pdf-chat-be/internal/repository/unitofwork"
)

// VectorIndex keeps the active collection in the document_chunks table.
// Replacement runs delete + insert inside one transaction, so readers on
// other connections see the old rows until commit.
type VectorIndex struct {
	uowFactory unitofwork.RepositoryFactory
	collection string
	mapper     *mapper.DocumentChunkMapper
}

var _ contract.VectorIndex = &VectorIndex{}

func NewVectorIndex(uowFactory unitofwork.RepositoryFactory, collection string) *VectorIndex {
	return &VectorIndex{
		uowFactory: uowFactory,
		collection: collection,
		mapper:     mapper.NewDocumentChunkMapper(),
	}
}

func (v *VectorIndex) ReplaceAll(ctx context.Context, chunks []entity.IndexedChunk) error {
	rows := make([]*entity.DocumentChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = v.mapper.FromIndexed(v.collection, i, c)
	}

	uow := v.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	repo := uow.DocumentChunkRepository()
	if err := repo.DeleteByCollection(ctx, v.collection); err != nil {
		return fmt.Errorf("delete previous chunks: %w", err)
	}
	if err := repo.CreateBulk(ctx, rows); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (v *VectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]entity.ScoredChunk, error) {
	if k <= 0 {
		k = contract.DefaultTopK
	}

	uow := v.uowFactory.NewUnitOfWork(ctx)
	found, err := uow.DocumentChunkRepository().SearchSimilarWithScore(ctx, v.collection, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search similar chunks: %w", err)
	}

	out := make([]entity.ScoredChunk, len(found))
	for i, f := range found {
		out[i] = entity.ScoredChunk{
			Chunk:      v.mapper.ToChunk(f.Chunk),
			Similarity: f.Similarity,
		}
	}
	return out, nil
}

func (v *VectorIndex) Count(ctx context.Context) (int64, error) {
	uow := v.uowFactory.NewUnitOfWork(ctx)
	return uow.DocumentChunkRepository().Count(ctx, specification.ByCollection{Name: v.collection})
}
