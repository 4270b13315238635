package llm

import (
	"fmt"
	"time"
)

// DefaultOllamaHost is used when no base URL is configured for Ollama.
const DefaultOllamaHost = "http://localhost:11434"

// ProviderConfig carries everything a provider needs. Keys are passed in
// explicitly; the llm package never reads the environment.
type ProviderConfig struct {
	Type    string
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewProvider creates a new LLM provider from the given configuration.
// Supported provider types: "openrouter", "openai", "ollama".
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "openrouter":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openrouter API key is not set")
		}
		if cfg.BaseURL != "" {
			p := NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
			p.name = "openrouter"
			return p, nil
		}
		return NewOpenRouterProvider(cfg.APIKey, cfg.Model, cfg.Timeout), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key is not set")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout), nil

	case "ollama":
		host := cfg.BaseURL
		if host == "" {
			host = DefaultOllamaHost
		}
		return NewOllamaProvider(host, cfg.Model, cfg.Timeout), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
}
