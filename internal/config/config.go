package config

import (
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use a
// double underscore: CONCIERGE_REPLY__MODEL -> reply.model.
const EnvPrefix = "CONCIERGE_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CONCIERGE_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	// A missing file is fine; defaults plus env are enough to run.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").With("path", path).Wrapf(err, "reading config")
		}
	} else if !os.IsNotExist(err) {
		return nil, oops.In("config").With("path", path).Wrapf(err, "accessing config")
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.In("config").Wrapf(err, "loading env overrides")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.In("config").Wrapf(err, "unmarshalling config")
	}

	if cfg.Reply.Model == "" {
		cfg.Reply.Model = DefaultModel(cfg.Reply.Provider)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenRouter: true,
	ProviderOpenAI:     true,
	ProviderOllama:     true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Reply.Provider == "" {
		return fmt.Errorf("reply.provider is required")
	}
	if !validProviders[c.Reply.Provider] {
		return fmt.Errorf("invalid reply.provider %q: must be one of openrouter, openai, ollama", c.Reply.Provider)
	}
	if c.Reply.Model == "" {
		return fmt.Errorf("reply.model is required")
	}
	if c.Reply.RateLimitRPM < 0 {
		return fmt.Errorf("reply.rate_limit_rpm must be non-negative")
	}
	if c.Reply.Timeout < 0 || c.Notifier.Timeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}

	if c.Notifier.Endpoint == "" {
		return fmt.Errorf("notifier.endpoint is required")
	}
	if c.Notifier.OperatorAddress != "" {
		if _, err := mail.ParseAddress(c.Notifier.OperatorAddress); err != nil {
			return fmt.Errorf("invalid notifier.operator_address %q: %w", c.Notifier.OperatorAddress, err)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.SMTP.Host != "" && c.SMTP.Port <= 0 {
		return fmt.Errorf("smtp.port is required when smtp.host is set")
	}

	if c.Session.TTL < 0 || c.Session.ProfileTTL < 0 {
		return fmt.Errorf("session ttls must be non-negative")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// ResolveAPIKey returns the configured reply key, or the provider's
// conventional environment variable when the config leaves it empty.
func (c *Config) ResolveAPIKey() string {
	if c.Reply.APIKey != "" {
		return c.Reply.APIKey
	}
	if envVar := APIKeyEnvVar(c.Reply.Provider); envVar != "" {
		return os.Getenv(envVar)
	}
	return ""
}
