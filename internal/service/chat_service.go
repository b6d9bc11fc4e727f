package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"pdf-chat-be/internal/constant"
	"pdf-chat-be/internal/dto"
	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/pkg/apperror"
	"pdf-chat-be/internal/pkg/logger"
	"pdf-chat-be/internal/repository/contract"
	"pdf-chat-be/pkg/embedding"
	"pdf-chat-be/pkg/events"
	"pdf-chat-be/pkg/llm"
	"pdf-chat-be/pkg/rag/prompt"
)

type IChatService interface {
	Chat(ctx context.Context, sessionID, question string) (*dto.ChatResponse, error)
	// ChatStream validates, retrieves and opens the completion stream before
	// returning; failures up to that point come back as the error. The channel
	// then yields token events followed by exactly one done or error event.
	ChatStream(ctx context.Context, sessionID, question string) (<-chan entity.StreamEvent, error)
	ClearSession(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string) ([]entity.Turn, error)
}

type ChatOptions struct {
	RetrievalK  int
	Temperature float64
}

type chatService struct {
	embeddingProvider embedding.EmbeddingProvider
	vectorIndex       contract.VectorIndex
	sessionStore      contract.SessionStore
	llmProvider       llm.LLMProvider
	publisherService  IPublisherService
	logger            logger.ILogger
	promptLogger      logger.ILogger
	opts              ChatOptions
}

func NewChatService(
	embeddingProvider embedding.EmbeddingProvider,
	vectorIndex contract.VectorIndex,
	sessionStore contract.SessionStore,
	llmProvider llm.LLMProvider,
	publisherService IPublisherService,
	logger logger.ILogger,
	promptLogger logger.ILogger,
	opts ChatOptions,
) IChatService {
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = constant.DefaultRetrievalK
	}
	return &chatService{
		embeddingProvider: embeddingProvider,
		vectorIndex:       vectorIndex,
		sessionStore:      sessionStore,
		llmProvider:       llmProvider,
		publisherService:  publisherService,
		logger:            logger,
		promptLogger:      promptLogger,
		opts:              opts,
	}
}

func (s *chatService) Chat(ctx context.Context, sessionID, question string) (*dto.ChatResponse, error) {
	sessionID, question, err := validateChatInput(sessionID, question)
	if err != nil {
		return nil, err
	}

	messages, err := s.buildPrompt(ctx, sessionID, question)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	answer, err := s.llmProvider.Chat(ctx, messages, llm.WithTemperature(s.opts.Temperature))
	if err != nil {
		s.logger.Error(constant.LogModuleChat, "Completion failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, apperror.Completion("Completion failed", err)
	}

	s.sessionStore.AppendExchange(sessionID, question, answer)

	s.logger.Info(constant.LogModuleChat, "Answered question", map[string]interface{}{
		"session_id": sessionID,
		"latency_ms": time.Since(start).Milliseconds(),
	})

	return &dto.ChatResponse{
		SessionId: sessionID,
		Answer:    answer,
	}, nil
}

func (s *chatService) ChatStream(ctx context.Context, sessionID, question string) (<-chan entity.StreamEvent, error) {
	sessionID, question, err := validateChatInput(sessionID, question)
	if err != nil {
		return nil, err
	}

	messages, err := s.buildPrompt(ctx, sessionID, question)
	if err != nil {
		return nil, err
	}

	stream, err := s.llmProvider.ChatStream(ctx, messages, llm.WithTemperature(s.opts.Temperature))
	if err != nil {
		s.logger.Error(constant.LogModuleChat, "Failed to open completion stream", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, apperror.Completion("Completion failed", err)
	}

	out := make(chan entity.StreamEvent)
	go s.pump(ctx, stream, out, sessionID, question)
	return out, nil
}

// pump forwards stream deltas to out. The exchange is committed to the
// session only after the provider finished cleanly and the caller is still
// listening.
func (s *chatService) pump(ctx context.Context, stream llm.Stream, out chan<- entity.StreamEvent, sessionID, question string) {
	defer close(out)
	defer stream.Close()

	// Unblocks Recv when the caller goes away.
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	send := func(ev entity.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var answer strings.Builder
	tokens := 0
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				return
			}
			s.sessionStore.AppendExchange(sessionID, question, answer.String())
			s.logger.Info(constant.LogModuleChat, "Streamed answer", map[string]interface{}{
				"session_id": sessionID,
				"tokens":     tokens,
			})
			send(entity.StreamEvent{Type: entity.StreamEventDone})
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info(constant.LogModuleChat, "Stream cancelled by caller", map[string]interface{}{"session_id": sessionID})
				return
			}
			s.logger.Error(constant.LogModuleChat, "Completion stream failed", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
			send(entity.StreamEvent{
				Type: entity.StreamEventError,
				Err:  apperror.Completion("Completion failed", err),
			})
			return
		}
		if delta == "" {
			continue
		}

		answer.WriteString(delta)
		tokens++
		if !send(entity.StreamEvent{Type: entity.StreamEventToken, Content: delta}) {
			return
		}
	}
}

func (s *chatService) ClearSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return apperror.ErrEmptySession
	}

	s.sessionStore.Clear(sessionID)

	if s.publisherService != nil {
		now := time.Now()
		event, err := events.New(constant.EventTypeSessionCleared, dto.SessionClearedMessage{
			SessionId: sessionID,
			ClearedAt: now,
		}, now)
		if err == nil {
			err = s.publisherService.Publish(ctx, event)
		}
		if err != nil {
			s.logger.Warn(constant.LogModuleEvents, "Failed to publish SESSION_CLEARED", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (s *chatService) History(ctx context.Context, sessionID string) ([]entity.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperror.ErrEmptySession
	}
	return s.sessionStore.GetHistory(sessionID), nil
}

// buildPrompt runs retrieval and assembles the message list. Retrieval
// failures propagate; the model is never asked without its context.
func (s *chatService) buildPrompt(ctx context.Context, sessionID, question string) ([]llm.Message, error) {
	vectors, err := s.embeddingProvider.Embed(ctx, []string{question})
	if err != nil {
		s.logger.Error(constant.LogModuleChat, "Failed to embed question", map[string]interface{}{"error": err.Error()})
		return nil, apperror.Retrieval("Retrieval failed", fmt.Errorf("embed question: %w", err))
	}
	if len(vectors) != 1 {
		return nil, apperror.Retrieval("Retrieval failed", fmt.Errorf("embed question: expected 1 vector, got %d", len(vectors)))
	}

	found, err := s.vectorIndex.Query(ctx, vectors[0], s.opts.RetrievalK)
	if err != nil {
		s.logger.Error(constant.LogModuleChat, "Vector index query failed", map[string]interface{}{"error": err.Error()})
		return nil, apperror.Retrieval("Retrieval failed", err)
	}

	contexts := make([]string, len(found))
	for i, c := range found {
		contexts[i] = c.Chunk.Text
	}

	turns := s.sessionStore.GetHistory(sessionID)
	history := make([]llm.Message, len(turns))
	for i, t := range turns {
		history[i] = llm.Message{Role: t.Role, Content: t.Content}
	}

	messages := prompt.NewGroundedBuilder(question, contexts, history).Build()

	if s.promptLogger != nil {
		s.promptLogger.Info(constant.LogModuleChat, "Prompt assembled", map[string]interface{}{
			"session_id":     sessionID,
			"context_chunks": len(contexts),
			"history_turns":  len(history),
			"system_prompt":  messages[0].Content,
			"question":       question,
		})
	}
	return messages, nil
}

func validateChatInput(sessionID, question string) (string, string, error) {
	sessionID = strings.TrimSpace(sessionID)
	question = strings.TrimSpace(question)
	if question == "" {
		return "", "", apperror.ErrEmptyQuestion
	}
	if sessionID == "" {
		return "", "", apperror.ErrEmptySession
	}
	return sessionID, question, nil
}
