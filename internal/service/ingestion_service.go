package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-chat-be/internal/constant"
	"pdf-chat-be/internal/dto"
	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/pkg/apperror"
	"pdf-chat-be/internal/pkg/logger"
	"pdf-chat-be/internal/repository/contract"
	"pdf-chat-be/pkg/chunker"
	"pdf-chat-be/pkg/embedding"
	"pdf-chat-be/pkg/events"
	"pdf-chat-be/pkg/pdf"

	"github.com/google/uuid"
)

type IIngestionService interface {
	Ingest(ctx context.Context, filename string, data []byte) (*dto.IngestResponse, error)
}

type IngestionOptions struct {
	UploadDir      string
	MaxUploadBytes int64
	BatchSize      int
}

type ingestionService struct {
	loader            pdf.Loader
	splitter          *chunker.RecursiveSplitter
	embeddingProvider embedding.EmbeddingProvider
	vectorIndex       contract.VectorIndex
	publisherService  IPublisherService
	logger            logger.ILogger
	opts              IngestionOptions
	now               func() time.Time
}

func NewIngestionService(
	loader pdf.Loader,
	splitter *chunker.RecursiveSplitter,
	embeddingProvider embedding.EmbeddingProvider,
	vectorIndex contract.VectorIndex,
	publisherService IPublisherService,
	logger logger.ILogger,
	opts IngestionOptions,
) IIngestionService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	return &ingestionService{
		loader:            loader,
		splitter:          splitter,
		embeddingProvider: embeddingProvider,
		vectorIndex:       vectorIndex,
		publisherService:  publisherService,
		logger:            logger,
		opts:              opts,
		now:               time.Now,
	}
}

func (s *ingestionService) Ingest(ctx context.Context, filename string, data []byte) (*dto.IngestResponse, error) {
	if err := s.validateUpload(filename, data); err != nil {
		return nil, err
	}

	savedAs, err := s.saveUpload(data)
	if err != nil {
		return nil, apperror.Ingestion("Ingestion failed", fmt.Errorf("save upload: %w", err))
	}
	defer func() {
		if err := os.Remove(filepath.Join(s.opts.UploadDir, savedAs)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn(constant.LogModuleIngest, "Failed to remove upload", map[string]interface{}{"file": savedAs, "error": err.Error()})
		}
	}()

	s.logger.Info(constant.LogModuleIngest, "Ingesting document", map[string]interface{}{
		"filename": filename,
		"saved_as": savedAs,
		"bytes":    len(data),
	})

	pages, err := s.loader.Load(data)
	if err != nil {
		return nil, s.fail(filename, "load pdf", err)
	}

	chunks := s.splitPages(filename, pages)
	s.logger.Info(constant.LogModuleIngest, "Document split", map[string]interface{}{
		"filename": filename,
		"pages":    len(pages),
		"chunks":   len(chunks),
	})

	indexed, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, s.fail(filename, "embed chunks", err)
	}

	if err := s.vectorIndex.ReplaceAll(ctx, indexed); err != nil {
		return nil, s.fail(filename, "replace index", err)
	}

	s.publishIngested(ctx, filename, len(indexed))

	s.logger.Info(constant.LogModuleIngest, "Document indexed", map[string]interface{}{
		"filename": filename,
		"chunks":   len(indexed),
	})

	return &dto.IngestResponse{
		Filename:     filename,
		SavedAs:      savedAs,
		ChunksLength: len(indexed),
		Status:       "success",
	}, nil
}

func (s *ingestionService) validateUpload(filename string, data []byte) error {
	if strings.TrimSpace(filename) == "" {
		return apperror.ErrEmptyFilename
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return apperror.ErrInvalidFileType
	}
	if len(data) == 0 {
		return apperror.ErrEmptyFile
	}
	if s.opts.MaxUploadBytes > 0 && int64(len(data)) > s.opts.MaxUploadBytes {
		return apperror.ErrFileTooLarge
	}
	return nil
}

func (s *ingestionService) saveUpload(data []byte) (string, error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ".pdf"
	if err := os.WriteFile(filepath.Join(s.opts.UploadDir, name), data, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// splitPages chunks every page on its own so a chunk never spans two pages.
// Index runs across the whole document.
func (s *ingestionService) splitPages(document string, pages []pdf.Page) []entity.Chunk {
	var chunks []entity.Chunk
	for _, page := range pages {
		for _, text := range s.splitter.Split(page.Text) {
			chunks = append(chunks, entity.Chunk{
				Text: text,
				SourceRef: entity.SourceRef{
					Document: document,
					Page:     page.Number,
					Index:    len(chunks),
				},
			})
		}
	}
	return chunks
}

// embedChunks embeds everything before anything is written, so a failure
// leaves the current index untouched.
func (s *ingestionService) embedChunks(ctx context.Context, chunks []entity.Chunk) ([]entity.IndexedChunk, error) {
	indexed := make([]entity.IndexedChunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := s.embeddingProvider.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("batch %d-%d: expected %d vectors, got %d", start, end, len(texts), len(vectors))
		}

		for i, vec := range vectors {
			indexed = append(indexed, entity.IndexedChunk{Chunk: chunks[start+i], Embedding: vec})
		}
	}
	return indexed, nil
}

func (s *ingestionService) publishIngested(ctx context.Context, filename string, chunkCount int) {
	if s.publisherService == nil {
		return
	}

	now := s.now()
	event, err := events.New(constant.EventTypeDocumentIngested, dto.DocumentIngestedMessage{
		Document:   filename,
		ChunkCount: chunkCount,
		IngestedAt: now,
	}, now)
	if err == nil {
		err = s.publisherService.Publish(ctx, event)
	}
	if err != nil {
		s.logger.Warn(constant.LogModuleEvents, "Failed to publish DOCUMENT_INGESTED", map[string]interface{}{"error": err.Error()})
	}
}

func (s *ingestionService) fail(filename, step string, err error) error {
	s.logger.Error(constant.LogModuleIngest, "Ingestion failed", map[string]interface{}{
		"filename": filename,
		"step":     step,
		"error":    err.Error(),
	})
	return apperror.Ingestion("Ingestion failed", fmt.Errorf("%s: %w", step, err))
}
