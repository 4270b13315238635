package config

import "time"

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[ProviderType]string{
	ProviderOpenRouter: "openrouter/auto",
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderOllama:     "llama3",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Reply: ReplyConfig{
			Provider: ProviderOpenRouter,
			Model:    defaultModels[ProviderOpenRouter],
			Timeout:  30 * time.Second,
		},
		Notifier: NotifierConfig{
			Endpoint:       "http://localhost:8080/api/send-email",
			SupportAddress: "support@macworld.com",
			Timeout:        15 * time.Second,
		},
		SMTP: SMTPConfig{
			Port: 587,
			From: "support@macworld.com",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Session: SessionConfig{
			ProfileTTL: 7 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
		DataDir: "data",
	}
}

// DefaultModel returns the default model for the given provider, falling
// back to the OpenRouter auto-router.
func DefaultModel(provider ProviderType) string {
	if m, ok := defaultModels[provider]; ok {
		return m
	}
	return defaultModels[ProviderOpenRouter]
}
