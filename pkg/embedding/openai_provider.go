package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls an OpenAI-compatible /embeddings endpoint (OpenRouter by default).
type OpenAIProvider struct {
	client    *goopenai.Client
	Model     string
	BatchSize int
}

func NewOpenAIProvider(apiKey, baseURL, model string, batchSize int, timeout time.Duration) EmbeddingProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 64
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client:    goopenai.NewClientWithConfig(cfg),
		Model:     model,
		BatchSize: batchSize,
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, p.BatchSize) {
		resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: batch,
			Model: goopenai.EmbeddingModel(p.Model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(batch), len(resp.Data))
		}

		// Data carries an index per item; do not trust the wire order.
		ordered := make([][]float32, len(batch))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(batch) {
				return nil, fmt.Errorf("embedding index %d out of range", item.Index)
			}
			ordered[item.Index] = item.Embedding
		}

		for i, vec := range ordered {
			if vec == nil {
				return nil, fmt.Errorf("missing embedding for input %d", i)
			}
			if len(vectors) > 0 && len(vec) != len(vectors[0]) {
				return nil, fmt.Errorf("inconsistent embedding dimension: %d vs %d", len(vec), len(vectors[0]))
			}
			vectors = append(vectors, normalizeVector(vec))
		}
	}

	return vectors, nil
}
