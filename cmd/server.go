package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/macworld/concierge/internal/conversation"
	"github.com/macworld/concierge/internal/landing"
	"github.com/macworld/concierge/internal/leads"
	"github.com/macworld/concierge/internal/relay"
	"github.com/macworld/concierge/internal/server"
	"github.com/macworld/concierge/internal/snapshot"
)

var (
	serverPort    int
	sweepInterval time.Duration
	maxIdle       time.Duration
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the landing page, chat API and email relay",
	Long:  `Starts the concierge HTTP server: the landing page with Rob's chat widget, the chat REST and WebSocket API, the email relay endpoint and the operator leads API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logCloser, err := setup()
		if err != nil {
			return err
		}
		defer logCloser.Close()
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}

		provider, err := createProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating reply provider: %w", err)
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		snapshots := snapshot.NewSQLiteStore(database)
		leadStore := leads.NewStore(database)
		logger := slog.Default()

		gen := &conversation.LLMGenerator{Provider: provider, Model: cfg.Reply.Model}
		registry := landing.NewRegistry(dialogueOptions(cfg, gen, newNotifier(cfg, leadStore), snapshots))

		relayHandler := relay.NewHandler(relay.Options{
			Mailer:          relay.NewMailer(cfg.SMTP, logger),
			OperatorAddress: cfg.Notifier.OperatorAddress,
			SupportAddress:  cfg.Notifier.SupportAddress,
			Logger:          logger,
		})

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAll,
		}, logger,
			landing.New(registry, logger),
			relayHandler,
			server.RoutesFunc(func(r chi.Router) { leads.RegisterRoutes(r, leadStore) }),
		)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go registry.RunSweeper(ctx, sweepInterval, maxIdle)
		go purgeSnapshots(ctx, snapshots, time.Hour)

		go func() {
			<-ctx.Done()
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		logger.Info("concierge starting",
			"version", Version,
			"port", cfg.Server.Port,
			"database", database.Path(),
			"provider", provider.Name(),
			"model", cfg.Reply.Model,
			"notifier", cfg.Notifier.Endpoint,
		)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// purgeSnapshots drops expired dialogue snapshots every interval.
func purgeSnapshots(ctx context.Context, store *snapshot.SQLiteStore, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := store.Purge(ctx)
			if err != nil {
				slog.Warn("purging expired snapshots", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged expired snapshots", "count", n)
			}
		}
	}
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides server.port)")
	serverCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 5*time.Minute, "how often idle dialogues are evicted from memory")
	serverCmd.Flags().DurationVar(&maxIdle, "max-idle", 30*time.Minute, "idle time before a dialogue is evicted (its snapshot is kept)")
	rootCmd.AddCommand(serverCmd)
}
