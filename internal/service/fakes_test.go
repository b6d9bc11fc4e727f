package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"pdf-chat-be/internal/entity"
	"pdf-chat-be/pkg/events"
	"pdf-chat-be/pkg/llm"
	"pdf-chat-be/pkg/pdf"
)

type fakeLoader struct {
	pages []pdf.Page
	err   error
}

func (f *fakeLoader) Load(data []byte) ([]pdf.Page, error) {
	return f.pages, f.err
}

// fakeEmbedder maps text to a small deterministic vector.
type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	batches []int
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, len(texts))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, float32(i%3) + 1}
	}
	return out, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeIndex struct {
	err error
}

func (f *fakeIndex) ReplaceAll(ctx context.Context, chunks []entity.IndexedChunk) error {
	return f.err
}

func (f *fakeIndex) Query(ctx context.Context, embedding []float32, k int) ([]entity.ScoredChunk, error) {
	return nil, f.err
}

func (f *fakeIndex) Count(ctx context.Context) (int64, error) {
	return 0, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) published() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

// fakeStream yields tokens, then finishes with end (io.EOF when nil).
// With block set it waits for Close after the tokens instead.
type fakeStream struct {
	tokens    []string
	end       error
	block     bool
	pos       int
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeStream(tokens []string, end error, block bool) *fakeStream {
	return &fakeStream{tokens: tokens, end: end, block: block, closed: make(chan struct{})}
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos < len(s.tokens) {
		tok := s.tokens[s.pos]
		s.pos++
		return tok, nil
	}
	if s.block {
		<-s.closed
		return "", errors.New("stream closed")
	}
	if s.end != nil {
		return "", s.end
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeLLM struct {
	mu       sync.Mutex
	answer   string
	chatErr  error
	openErr  error
	stream   *fakeStream
	calls    int
	messages [][]llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = append(f.messages, history)
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.answer, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = append(f.messages, history)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLLM) lastMessages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}
