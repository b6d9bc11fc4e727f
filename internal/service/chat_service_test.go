package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pdf-chat-be/internal/constant"
	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/pkg/apperror"
	"pdf-chat-be/internal/pkg/logger"
	"pdf-chat-be/internal/repository/contract"
	"pdf-chat-be/internal/repository/memory"
	"pdf-chat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	svc       IChatService
	embedder  *fakeEmbedder
	sessions  *memory.SessionRepository
	llm       *fakeLLM
	publisher *fakePublisher
}

func newChatFixture(t *testing.T, index contract.VectorIndex) *chatFixture {
	t.Helper()
	if index == nil {
		mem := memory.NewVectorIndex()
		require.NoError(t, mem.ReplaceAll(context.Background(), []entity.IndexedChunk{
			{Chunk: entity.Chunk{Text: "The warranty lasts two years."}, Embedding: []float32{1, 1, 1}},
			{Chunk: entity.Chunk{Text: "Returns are accepted within 30 days."}, Embedding: []float32{2, 1, 1}},
		}))
		index = mem
	}

	f := &chatFixture{
		embedder:  &fakeEmbedder{},
		sessions:  memory.NewSessionRepository(0),
		llm:       &fakeLLM{answer: "Two years."},
		publisher: &fakePublisher{},
	}
	f.svc = NewChatService(f.embedder, index, f.sessions, f.llm, f.publisher,
		logger.NewNopLogger(), logger.NewNopLogger(), ChatOptions{RetrievalK: 4, Temperature: 0.2})
	return f
}

// collect drains the channel, failing the test if it does not close in time.
func collect(t *testing.T, ch <-chan entity.StreamEvent) []entity.StreamEvent {
	t.Helper()
	var out []entity.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
			return out
		}
	}
}

func TestChatAppendsExchangeEachCall(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Chat(ctx, "s1", "How long is the warranty?")
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SessionId)
	assert.Equal(t, "Two years.", res.Answer)
	assert.Len(t, f.sessions.GetHistory("s1"), 2)

	_, err = f.svc.Chat(ctx, "s1", "How long is the warranty?")
	require.NoError(t, err)

	history := f.sessions.GetHistory("s1")
	require.Len(t, history, 4)
	assert.Equal(t, entity.Turn{Role: entity.RoleUser, Content: "How long is the warranty?"}, history[2])
	assert.Equal(t, entity.Turn{Role: entity.RoleAssistant, Content: "Two years."}, history[3])
}

func TestChatPromptCarriesContextAndHistory(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "s1", "first")
	require.NoError(t, err)
	_, err = f.svc.Chat(ctx, "s1", "second")
	require.NoError(t, err)

	msgs := f.llm.lastMessages()
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "The warranty lasts two years.")
	assert.Contains(t, msgs[0].Content, "Returns are accepted within 30 days.")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "first"}, msgs[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Two years."}, msgs[2])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "second"}, msgs[3])
}

func TestChatRejectsBlankInputWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		question  string
		want      error
	}{
		{"empty question", "s1", "", apperror.ErrEmptyQuestion},
		{"whitespace question", "s1", "  \n\t", apperror.ErrEmptyQuestion},
		{"empty session", " ", "hello", apperror.ErrEmptySession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, nil)

			_, err := f.svc.Chat(context.Background(), tt.sessionID, tt.question)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

			_, err = f.svc.ChatStream(context.Background(), tt.sessionID, tt.question)
			assert.ErrorIs(t, err, tt.want)

			assert.Zero(t, f.embedder.callCount())
			assert.Zero(t, f.llm.callCount())
			assert.Empty(t, f.sessions.GetHistory("s1"))
		})
	}
}

func TestRetrievalFailurePropagates(t *testing.T) {
	f := newChatFixture(t, &fakeIndex{err: errors.New("index offline")})

	_, err := f.svc.Chat(context.Background(), "s1", "question")
	require.Error(t, err)
	assert.Equal(t, apperror.KindRetrieval, apperror.KindOf(err))

	_, err = f.svc.ChatStream(context.Background(), "s1", "question")
	assert.Equal(t, apperror.KindRetrieval, apperror.KindOf(err))

	assert.Zero(t, f.llm.callCount())
	assert.Empty(t, f.sessions.GetHistory("s1"))
}

func TestEmbeddingFailureIsRetrievalError(t *testing.T) {
	f := newChatFixture(t, nil)
	f.embedder.err = errors.New("rate limited")

	_, err := f.svc.Chat(context.Background(), "s1", "question")
	assert.Equal(t, apperror.KindRetrieval, apperror.KindOf(err))
}

func TestCompletionFailureCommitsNothing(t *testing.T) {
	f := newChatFixture(t, nil)
	f.llm.chatErr = errors.New("502 from upstream")

	_, err := f.svc.Chat(context.Background(), "s1", "question")

	require.Error(t, err)
	assert.Equal(t, apperror.KindCompletion, apperror.KindOf(err))
	assert.Empty(t, f.sessions.GetHistory("s1"))
}

func TestChatOnEmptyIndexStillAnswers(t *testing.T) {
	f := newChatFixture(t, memory.NewVectorIndex())
	f.llm.answer = "I don't know based on this document."

	res, err := f.svc.Chat(context.Background(), "s1", "anything")

	require.NoError(t, err)
	assert.Equal(t, "I don't know based on this document.", res.Answer)
	assert.Contains(t, f.llm.lastMessages()[0].Content, "Context:\n")
}

func TestChatStreamEmitsTokensThenDone(t *testing.T) {
	f := newChatFixture(t, nil)
	f.llm.stream = newFakeStream([]string{"Two", "", " years", "."}, nil, false)

	ch, err := f.svc.ChatStream(context.Background(), "s2", "Summarize")
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 4)
	var tokens []string
	for _, ev := range events[:3] {
		assert.Equal(t, entity.StreamEventToken, ev.Type)
		tokens = append(tokens, ev.Content)
	}
	assert.Equal(t, []string{"Two", " years", "."}, tokens)
	assert.Equal(t, entity.StreamEventDone, events[3].Type)

	assert.Equal(t, []entity.Turn{
		{Role: entity.RoleUser, Content: "Summarize"},
		{Role: entity.RoleAssistant, Content: "Two years."},
	}, f.sessions.GetHistory("s2"))
	assert.True(t, f.llm.stream.isClosed())
}

func TestFailedStreamCommitsNothing(t *testing.T) {
	f := newChatFixture(t, nil)
	f.llm.stream = newFakeStream([]string{"partial"}, errors.New("connection reset"), false)

	ch, err := f.svc.ChatStream(context.Background(), "s1", "question")
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 2)
	assert.Equal(t, entity.StreamEventToken, events[0].Type)
	last := events[1]
	assert.Equal(t, entity.StreamEventError, last.Type)
	assert.Equal(t, apperror.KindCompletion, apperror.KindOf(last.Err))
	assert.Empty(t, f.sessions.GetHistory("s1"))
}

func TestStreamOpenFailureIsSynchronous(t *testing.T) {
	f := newChatFixture(t, nil)
	f.llm.openErr = errors.New("401")

	ch, err := f.svc.ChatStream(context.Background(), "s1", "question")

	assert.Nil(t, ch)
	assert.Equal(t, apperror.KindCompletion, apperror.KindOf(err))
}

func TestCancelledStreamClosesProviderAndCommitsNothing(t *testing.T) {
	f := newChatFixture(t, nil)
	f.llm.stream = newFakeStream([]string{"first"}, nil, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.svc.ChatStream(ctx, "s1", "question")
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "first", first.Content)
	cancel()

	for _, ev := range collect(t, ch) {
		assert.NotEqual(t, entity.StreamEventDone, ev.Type)
	}
	assert.True(t, f.llm.stream.isClosed())
	assert.Empty(t, f.sessions.GetHistory("s1"))
}

func TestClearSessionStartsFresh(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "s1", "question")
	require.NoError(t, err)

	require.NoError(t, f.svc.ClearSession(ctx, "s1"))
	history, err := f.svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = f.svc.Chat(ctx, "s1", "again")
	require.NoError(t, err)
	assert.Len(t, f.sessions.GetHistory("s1"), 2)
	assert.Len(t, f.llm.lastMessages(), 2)

	published := f.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, constant.EventTypeSessionCleared, published[0].EventType())
}

func TestClearUnknownSessionIsNoop(t *testing.T) {
	f := newChatFixture(t, nil)

	assert.NoError(t, f.svc.ClearSession(context.Background(), "never-seen"))
	assert.ErrorIs(t, f.svc.ClearSession(context.Background(), ""), apperror.ErrEmptySession)
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "a", "question for a")
	require.NoError(t, err)
	_, err = f.svc.Chat(ctx, "b", "question for b")
	require.NoError(t, err)

	history, err := f.svc.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, strings.HasSuffix(history[0].Content, "for a"))
}
