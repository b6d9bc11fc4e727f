package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type DocumentChunk struct {
	Id         uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Collection string            `gorm:"type:varchar(255);not null;index"`
	ChunkIndex int               `gorm:"not null;default:0"` // 0-based, ingestion order
	Content    string            `gorm:"type:text"`
	Embedding  pgvector.Vector   `gorm:"type:vector"` // dimension follows the embedding model
	SourceRef  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"autoCreateTime"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
