package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"pdf-chat-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible chat endpoint. OpenRouter is the default target.
type OpenAIProvider struct {
	client      *goopenai.Client
	ModelName   string
	Temperature float64
}

var _ llm.LLMProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, baseURL, modelName string, temperature float64, timeout time.Duration) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client:      goopenai.NewClientWithConfig(cfg),
		ModelName:   modelName,
		Temperature: temperature,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(history, false, opts...))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(history, true, opts...))
	if err != nil {
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}

	return &completionStream{stream: stream}, nil
}

func (p *OpenAIProvider) buildRequest(history []llm.Message, stream bool, opts ...llm.Option) goopenai.ChatCompletionRequest {
	options := llm.ApplyOptions(llm.Options{Temperature: p.Temperature, Model: p.ModelName}, opts...)

	messages := make([]goopenai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		messages[i] = goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	return goopenai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		Stream:      stream,
	}
}

type completionStream struct {
	stream    *goopenai.ChatCompletionStream
	closeOnce sync.Once
}

// Recv skips chunks without content (role headers, finish markers) and
// returns io.EOF once the server sends [DONE].
func (s *completionStream) Recv() (string, error) {
	for {
		chunk, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("receive stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *completionStream) Close() error {
	s.closeOnce.Do(func() {
		s.stream.Close()
	})
	return nil
}
