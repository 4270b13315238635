package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Reply.Provider != ProviderOpenRouter {
		t.Errorf("expected default provider %q, got %q", ProviderOpenRouter, cfg.Reply.Provider)
	}
	if cfg.Reply.Model != "openrouter/auto" {
		t.Errorf("expected default model openrouter/auto, got %q", cfg.Reply.Model)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Session.ProfileTTL != 7*24*time.Hour {
		t.Errorf("expected profile ttl of 7 days, got %s", cfg.Session.ProfileTTL)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.concierge.yml")

	original := DefaultConfig()
	original.Reply.Provider = ProviderOpenAI
	original.Reply.Model = "gpt-4o"
	original.Reply.Timeout = 45 * time.Second
	original.Notifier.OperatorAddress = "admin@macworld.com"
	original.Server.Port = 9090
	original.DataDir = "var"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Reply.Provider != original.Reply.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Reply.Provider, original.Reply.Provider)
	}
	if loaded.Reply.Model != original.Reply.Model {
		t.Errorf("model: got %q, want %q", loaded.Reply.Model, original.Reply.Model)
	}
	if loaded.Reply.Timeout != original.Reply.Timeout {
		t.Errorf("timeout: got %s, want %s", loaded.Reply.Timeout, original.Reply.Timeout)
	}
	if loaded.Notifier.OperatorAddress != original.Notifier.OperatorAddress {
		t.Errorf("operator_address: got %q, want %q", loaded.Notifier.OperatorAddress, original.Notifier.OperatorAddress)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("port: got %d, want 9090", loaded.Server.Port)
	}
	if loaded.DataDir != "var" {
		t.Errorf("data_dir: got %q, want %q", loaded.DataDir, "var")
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Reply.Provider != ProviderOpenRouter {
		t.Errorf("expected default provider, got %q", cfg.Reply.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("CONCIERGE_REPLY__PROVIDER", "ollama")
	t.Setenv("CONCIERGE_NOTIFIER__OPERATOR_ADDRESS", "ops@macworld.com")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Reply.Provider != ProviderOllama {
		t.Errorf("env override failed: got %q, want %q", loaded.Reply.Provider, ProviderOllama)
	}
	if loaded.Notifier.OperatorAddress != "ops@macworld.com" {
		t.Errorf("nested env override failed: got %q", loaded.Notifier.OperatorAddress)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty provider", func(c *Config) { c.Reply.Provider = "" }},
		{"unknown provider", func(c *Config) { c.Reply.Provider = "anthropic" }},
		{"empty model", func(c *Config) { c.Reply.Model = "" }},
		{"negative rpm", func(c *Config) { c.Reply.RateLimitRPM = -1 }},
		{"negative timeout", func(c *Config) { c.Notifier.Timeout = -time.Second }},
		{"empty endpoint", func(c *Config) { c.Notifier.Endpoint = "" }},
		{"bad operator address", func(c *Config) { c.Notifier.OperatorAddress = "not an email" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"smtp without port", func(c *Config) { c.SMTP.Host = "smtp.example.com"; c.SMTP.Port = 0 }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenRouter, "OPENROUTER_API_KEY"},
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderOllama, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "from-env")

	cfg := DefaultConfig()
	if got := cfg.ResolveAPIKey(); got != "from-env" {
		t.Errorf("ResolveAPIKey() = %q, want env value", got)
	}

	cfg.Reply.APIKey = "explicit"
	if got := cfg.ResolveAPIKey(); got != "explicit" {
		t.Errorf("ResolveAPIKey() = %q, want explicit value", got)
	}
}
