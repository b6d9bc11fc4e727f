package factory

import (
	"fmt"
	"time"

	"pdf-chat-be/pkg/llm"
	"pdf-chat-be/pkg/llm/ollama"
	"pdf-chat-be/pkg/llm/openai"
)

type Params struct {
	Provider    string
	Model       string
	Temperature float64
	Timeout     time.Duration
	APIKey      string
	BaseURL     string
}

func NewLLMProvider(p Params) (llm.LLMProvider, error) {
	switch p.Provider {
	case "openai", "openrouter", "":
		if p.APIKey == "" {
			return nil, fmt.Errorf("llm provider %q requires an API key", p.Provider)
		}
		return openai.NewOpenAIProvider(p.APIKey, p.BaseURL, p.Model, p.Temperature, p.Timeout), nil
	case "ollama":
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, p.Model, p.Temperature, p.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", p.Provider)
	}
}
