package service

import (
	"context"
	"testing"
	"time"

	"pdf-chat-be/internal/constant"
	"pdf-chat-be/internal/dto"
	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/pkg/logger"
	"pdf-chat-be/internal/repository/memory"
	"pdf-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "document.events.test"

func newBus(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestIndexStatusFollowsIngestEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	forwarder := &fakePublisher{}
	statusSvc := NewIndexStatusService(bus, testTopic, memory.NewVectorIndex(), forwarder, logger.NewNopLogger())
	require.NoError(t, statusSvc.Consume(ctx))

	publisher := NewPublisherService(testTopic, bus)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	ev, err := events.New(constant.EventTypeDocumentIngested, dto.DocumentIngestedMessage{
		Document:   "manual.pdf",
		ChunkCount: 87,
		IngestedAt: at,
	}, at)
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(ctx, ev))

	require.Eventually(t, func() bool {
		status, err := statusSvc.GetStatus(ctx)
		return err == nil && status.Indexed && status.Document == "manual.pdf"
	}, 2*time.Second, 10*time.Millisecond)

	status, err := statusSvc.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 87, status.ChunkCount)
	assert.True(t, at.Equal(*status.IngestedAt))

	require.Eventually(t, func() bool { return len(forwarder.published()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, constant.EventTypeDocumentIngested, forwarder.published()[0].EventType())
}

func TestIndexStatusIgnoresStaleEvents(t *testing.T) {
	svc := NewIndexStatusService(nil, testTopic, memory.NewVectorIndex(), nil, logger.NewNopLogger()).(*indexStatusService)
	newer := time.Now()
	older := newer.Add(-time.Minute)

	svc.setStatus(dto.DocumentIngestedMessage{Document: "new.pdf", ChunkCount: 2, IngestedAt: newer})
	svc.setStatus(dto.DocumentIngestedMessage{Document: "old.pdf", ChunkCount: 9, IngestedAt: older})

	status, err := svc.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new.pdf", status.Document)
	assert.Equal(t, 2, status.ChunkCount)
}

func TestIndexStatusFallsBackToIndexCount(t *testing.T) {
	index := memory.NewVectorIndex()
	require.NoError(t, index.ReplaceAll(context.Background(), []entity.IndexedChunk{
		{Chunk: entity.Chunk{Text: "a"}, Embedding: []float32{1}},
		{Chunk: entity.Chunk{Text: "b"}, Embedding: []float32{1}},
	}))
	svc := NewIndexStatusService(nil, testTopic, index, nil, logger.NewNopLogger())

	status, err := svc.GetStatus(context.Background())

	require.NoError(t, err)
	assert.True(t, status.Indexed)
	assert.Equal(t, 2, status.ChunkCount)
	assert.Nil(t, status.IngestedAt)
}

func TestIndexStatusEmpty(t *testing.T) {
	svc := NewIndexStatusService(nil, testTopic, memory.NewVectorIndex(), nil, logger.NewNopLogger())

	status, err := svc.GetStatus(context.Background())

	require.NoError(t, err)
	assert.False(t, status.Indexed)
	assert.Zero(t, status.ChunkCount)
}
