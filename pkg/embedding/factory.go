package embedding

import (
	"fmt"
	"time"
)

type Params struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	BatchSize int
	Timeout   time.Duration
}

func NewEmbeddingProvider(p Params) (EmbeddingProvider, error) {
	switch p.Provider {
	case "openai", "openrouter", "":
		if p.APIKey == "" {
			return nil, fmt.Errorf("embedding provider %q requires an API key", p.Provider)
		}
		return NewOpenAIProvider(p.APIKey, p.BaseURL, p.Model, p.BatchSize, p.Timeout), nil
	case "ollama":
		return NewOllamaProvider(p.BaseURL, p.Model, p.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", p.Provider)
	}
}
