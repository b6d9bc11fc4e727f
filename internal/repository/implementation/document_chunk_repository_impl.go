package implementation

import (
	"context"

	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/mapper"
	"pdf-chat-be/internal/model"
	"pdf-chat-be/internal/repository/contract"
	"pdf-chat-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// insertBatchSize keeps each INSERT under postgres' bind parameter limit.
const insertBatchSize = 500

type DocumentChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentChunkMapper
}

func NewDocumentChunkRepository(db *gorm.DB) contract.DocumentChunkRepository {
	return &DocumentChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentChunkMapper(),
	}
}

func (r *DocumentChunkRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DocumentChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	models := r.mapper.ToModels(chunks)
	if err := r.db.WithContext(ctx).CreateInBatches(models, insertBatchSize).Error; err != nil {
		return err
	}

	// Update IDs back to entities
	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *DocumentChunkRepositoryImpl) DeleteByCollection(ctx context.Context, collection string) error {
	return r.db.WithContext(ctx).Where("collection = ?", collection).Delete(&model.DocumentChunk{}).Error
}

func (r *DocumentChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentChunk, error) {
	var models []*model.DocumentChunk
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DocumentChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.DocumentChunk{}).Count(&count).Error
	return count, err
}

func (r *DocumentChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, collection string, embedding []float32, limit int) ([]*contract.ScoredDocumentChunk, error) {
	if limit <= 0 {
		limit = contract.DefaultTopK
	}

	// Cosine distance in pgvector is: 1 - cosine_similarity
	// chunk_index breaks ties so equal scores keep ingestion order.
	type result struct {
		model.DocumentChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table(model.DocumentChunk{}.TableName()).
		Select("document_chunks.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("collection = ?", collection).
		Order(gorm.Expr("embedding <=> ?, chunk_index ASC", queryVector)).
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredDocumentChunk, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredDocumentChunk{
			Chunk:      r.mapper.ToEntity(&res.DocumentChunk),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
