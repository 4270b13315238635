package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/macworld/concierge/internal/config"
	"github.com/macworld/concierge/internal/conversation"
	"github.com/macworld/concierge/internal/db"
	"github.com/macworld/concierge/internal/leads"
	"github.com/macworld/concierge/internal/llm"
	"github.com/macworld/concierge/internal/logging"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `concierge init` to create a config file", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// setup loads the config and installs the configured logger. The returned
// closer flushes the log file.
func setup() (*config.Config, io.Closer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	closer, err := logging.Init(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logging: %w", err)
	}
	return cfg, closer, nil
}

// createProviderFromConfig creates the reply provider, rate limited when
// reply.rate_limit_rpm is set.
func createProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(llm.ProviderConfig{
		Type:    string(cfg.Reply.Provider),
		Model:   cfg.Reply.Model,
		APIKey:  cfg.ResolveAPIKey(),
		BaseURL: cfg.Reply.BaseURL,
		Timeout: cfg.Reply.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Reply.RateLimitRPM > 0 {
		p = llm.NewRateLimitedProvider(p, cfg.Reply.RateLimitRPM)
	}
	return p, nil
}

func openDatabase(cfg *config.Config) (*db.DB, error) {
	path := filepath.Join(cfg.DataDir, "concierge.db")
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return database, nil
}

// newNotifier builds the lead notifier that relays to notifier.endpoint.
// A nil store relays without keeping a record.
func newNotifier(cfg *config.Config, store *leads.Store) *leads.Notifier {
	return leads.NewNotifier(leads.NotifierOptions{
		Store:          store,
		Relay:          leads.NewRelayClient(cfg.Notifier.Endpoint, cfg.Notifier.Timeout),
		AdminAddress:   cfg.Notifier.OperatorAddress,
		SupportAddress: cfg.Notifier.SupportAddress,
		Logger:         slog.Default(),
	})
}

func dialogueOptions(cfg *config.Config, gen conversation.ReplyGenerator, n conversation.Notifier, store conversation.SnapshotStore) conversation.DialogueOptions {
	return conversation.DialogueOptions{
		Generator:     gen,
		Notifier:      n,
		Store:         store,
		ReplyTimeout:  cfg.Reply.Timeout,
		NotifyTimeout: cfg.Notifier.Timeout,
		SessionTTL:    cfg.Session.TTL,
		ProfileTTL:    cfg.Session.ProfileTTL,
		Logger:        slog.Default(),
	}
}
