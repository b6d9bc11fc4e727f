package entity

import (
	"time"

	"github.com/google/uuid"
)

// SourceRef locates a chunk inside the ingested document.
type SourceRef struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	Index    int    `json:"index"`
}

type Chunk struct {
	Text      string
	SourceRef SourceRef
}

// IndexedChunk pairs a chunk with its embedding for the vector index.
type IndexedChunk struct {
	Chunk     Chunk
	Embedding []float32
}

type ScoredChunk struct {
	Chunk      Chunk
	Similarity float64 // cosine similarity, 1.0 = identical
}

// IndexStatus describes the collection that is currently searchable.
type IndexStatus struct {
	Document   string
	ChunkCount int
	IngestedAt *time.Time
}

// DocumentChunk is the persisted form of an IndexedChunk.
type DocumentChunk struct {
	Id         uuid.UUID
	Collection string
	ChunkIndex int
	Content    string
	Embedding  []float32
	SourceRef  SourceRef
	CreatedAt  time.Time
}
