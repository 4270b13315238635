package config

import "time"

// ProviderType identifies the completion provider used to generate Rob's replies.
type ProviderType string

const (
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOllama     ProviderType = "ollama"
)

// Config is the top-level concierge configuration, corresponding to .concierge.yml.
type Config struct {
	Reply    ReplyConfig    `yaml:"reply" koanf:"reply"`
	Notifier NotifierConfig `yaml:"notifier" koanf:"notifier"`
	SMTP     SMTPConfig     `yaml:"smtp" koanf:"smtp"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Session  SessionConfig  `yaml:"session" koanf:"session"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
	DataDir  string         `yaml:"data_dir" koanf:"data_dir"`
}

// ReplyConfig selects and tunes the reply generator.
type ReplyConfig struct {
	Provider ProviderType `yaml:"provider" koanf:"provider"`
	Model    string       `yaml:"model" koanf:"model"`
	// APIKey is the reply generator key. When empty the provider's
	// conventional environment variable is consulted at startup.
	APIKey       string        `yaml:"api_key,omitempty" koanf:"api_key"`
	BaseURL      string        `yaml:"base_url,omitempty" koanf:"base_url"`
	RateLimitRPM int           `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	Timeout      time.Duration `yaml:"timeout" koanf:"timeout"`
}

// NotifierConfig points at the email relay that confirms appointments.
type NotifierConfig struct {
	Endpoint        string        `yaml:"endpoint" koanf:"endpoint"`
	OperatorAddress string        `yaml:"operator_address" koanf:"operator_address"`
	SupportAddress  string        `yaml:"support_address" koanf:"support_address"`
	Timeout         time.Duration `yaml:"timeout" koanf:"timeout"`
}

// SMTPConfig is used by the relay endpoint. An empty Host logs mail instead of sending it.
type SMTPConfig struct {
	Host     string `yaml:"host" koanf:"host"`
	Port     int    `yaml:"port" koanf:"port"`
	User     string `yaml:"user" koanf:"user"`
	Password string `yaml:"password,omitempty" koanf:"password"`
	From     string `yaml:"from" koanf:"from"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}

// SessionConfig controls how long dialogue snapshots and client profiles survive.
type SessionConfig struct {
	TTL        time.Duration `yaml:"ttl" koanf:"ttl"`
	ProfileTTL time.Duration `yaml:"profile_ttl" koanf:"profile_ttl"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
	File  string `yaml:"file,omitempty" koanf:"file"`
}
