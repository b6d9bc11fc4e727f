package dto

import "time"

type IngestResponse struct {
	Filename     string `json:"filename"`
	SavedAs      string `json:"saved_as"`
	ChunksLength int    `json:"chunks_length"`
	Status       string `json:"status"`
}

type IndexStatusResponse struct {
	Document   string     `json:"document"`
	ChunkCount int        `json:"chunk_count"`
	IngestedAt *time.Time `json:"ingested_at"`
	Indexed    bool       `json:"indexed"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	VectorCount int64  `json:"vector_count"`
}

// DocumentIngestedMessage is the payload of a DOCUMENT_INGESTED event.
type DocumentIngestedMessage struct {
	Document   string    `json:"document"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// SessionClearedMessage is the payload of a SESSION_CLEARED event.
type SessionClearedMessage struct {
	SessionId string    `json:"session_id"`
	ClearedAt time.Time `json:"cleared_at"`
}
