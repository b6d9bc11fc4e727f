package service

import (
	"context"
	"sync"

	"pdf-chat-be/internal/constant"
	"pdf-chat-be/internal/dto"
	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/pkg/logger"
	"pdf-chat-be/internal/repository/contract"
	"pdf-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventForwarder relays bus events to an external broker (NATS in production).
type EventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

type IIndexStatusService interface {
	Consume(ctx context.Context) error
	GetStatus(ctx context.Context) (*dto.IndexStatusResponse, error)
}

type indexStatusService struct {
	subscriber  message.Subscriber
	topicName   string
	vectorIndex contract.VectorIndex
	forwarder   EventForwarder
	logger      logger.ILogger

	mu     sync.RWMutex
	status entity.IndexStatus
}

// NewIndexStatusService builds the consumer. forwarder may be nil.
func NewIndexStatusService(
	subscriber message.Subscriber,
	topicName string,
	vectorIndex contract.VectorIndex,
	forwarder EventForwarder,
	logger logger.ILogger,
) IIndexStatusService {
	return &indexStatusService{
		subscriber:  subscriber,
		topicName:   topicName,
		vectorIndex: vectorIndex,
		forwarder:   forwarder,
		logger:      logger,
	}
}

func (s *indexStatusService) Consume(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *indexStatusService) processMessage(ctx context.Context, msg *message.Message) {
	event, err := events.Unmarshal(msg.Payload)
	if err != nil {
		s.logger.Error(constant.LogModuleEvents, "Failed to decode event", map[string]interface{}{"error": err.Error(), "uuid": msg.UUID})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if event.EventType() == constant.EventTypeDocumentIngested {
		var payload dto.DocumentIngestedMessage
		if err := events.DecodePayload(event, &payload); err != nil {
			s.logger.Error(constant.LogModuleEvents, "Malformed DOCUMENT_INGESTED payload", map[string]interface{}{"error": err.Error()})
		} else {
			s.setStatus(payload)
		}
	}

	if s.forwarder != nil {
		if err := s.forwarder.Publish(ctx, event); err != nil {
			s.logger.Warn(constant.LogModuleEvents, "Failed to forward event", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}

	msg.Ack()
}

func (s *indexStatusService) setStatus(payload dto.DocumentIngestedMessage) {
	ingestedAt := payload.IngestedAt

	s.mu.Lock()
	// Events can arrive out of order when ingests overlap.
	if s.status.IngestedAt != nil && ingestedAt.Before(*s.status.IngestedAt) {
		s.mu.Unlock()
		return
	}
	s.status = entity.IndexStatus{
		Document:   payload.Document,
		ChunkCount: payload.ChunkCount,
		IngestedAt: &ingestedAt,
	}
	s.mu.Unlock()

	s.logger.Info(constant.LogModuleIndex, "Index status updated", map[string]interface{}{
		"document":    payload.Document,
		"chunk_count": payload.ChunkCount,
	})
}

func (s *indexStatusService) GetStatus(ctx context.Context) (*dto.IndexStatusResponse, error) {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	res := &dto.IndexStatusResponse{
		Document:   status.Document,
		ChunkCount: status.ChunkCount,
		IngestedAt: status.IngestedAt,
		Indexed:    status.IngestedAt != nil,
	}

	// A persistent store can hold a collection from a previous run.
	if status.IngestedAt == nil {
		count, err := s.vectorIndex.Count(ctx)
		if err != nil {
			return nil, err
		}
		res.ChunkCount = int(count)
		res.Indexed = count > 0
	}
	return res, nil
}
