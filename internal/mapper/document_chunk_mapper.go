package mapper

import (
	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type DocumentChunkMapper struct{}

func NewDocumentChunkMapper() *DocumentChunkMapper {
	return &DocumentChunkMapper{}
}

func (m *DocumentChunkMapper) ToEntity(e *model.DocumentChunk) *entity.DocumentChunk {
	if e == nil {
		return nil
	}

	return &entity.DocumentChunk{
		Id:         e.Id,
		Collection: e.Collection,
		ChunkIndex: e.ChunkIndex,
		Content:    e.Content,
		Embedding:  e.Embedding.Slice(),
		SourceRef:  sourceRefFromJSON(e.SourceRef, e.ChunkIndex),
		CreatedAt:  e.CreatedAt,
	}
}

func (m *DocumentChunkMapper) ToModel(e *entity.DocumentChunk) *model.DocumentChunk {
	if e == nil {
		return nil
	}

	return &model.DocumentChunk{
		Id:         e.Id,
		Collection: e.Collection,
		ChunkIndex: e.ChunkIndex,
		Content:    e.Content,
		Embedding:  pgvector.NewVector(e.Embedding),
		SourceRef: datatypes.JSONMap{
			"document": e.SourceRef.Document,
			"page":     e.SourceRef.Page,
			"index":    e.SourceRef.Index,
		},
		CreatedAt: e.CreatedAt,
	}
}

func (m *DocumentChunkMapper) ToEntities(chunks []*model.DocumentChunk) []*entity.DocumentChunk {
	entities := make([]*entity.DocumentChunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *DocumentChunkMapper) ToModels(chunks []*entity.DocumentChunk) []*model.DocumentChunk {
	models := make([]*model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}

// FromIndexed builds the persisted form of an index entry.
func (m *DocumentChunkMapper) FromIndexed(collection string, position int, c entity.IndexedChunk) *entity.DocumentChunk {
	return &entity.DocumentChunk{
		Collection: collection,
		ChunkIndex: position,
		Content:    c.Chunk.Text,
		Embedding:  c.Embedding,
		SourceRef:  c.Chunk.SourceRef,
	}
}

// ToChunk strips storage fields.
func (m *DocumentChunkMapper) ToChunk(e *entity.DocumentChunk) entity.Chunk {
	return entity.Chunk{
		Text:      e.Content,
		SourceRef: e.SourceRef,
	}
}

// JSONB numbers come back as float64.
func sourceRefFromJSON(raw datatypes.JSONMap, fallbackIndex int) entity.SourceRef {
	ref := entity.SourceRef{Index: fallbackIndex}
	if raw == nil {
		return ref
	}
	if doc, ok := raw["document"].(string); ok {
		ref.Document = doc
	}
	if page, ok := toInt(raw["page"]); ok {
		ref.Page = page
	}
	if idx, ok := toInt(raw["index"]); ok {
		ref.Index = idx
	}
	return ref
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
