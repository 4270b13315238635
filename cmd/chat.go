package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/macworld/concierge/internal/conversation"
	"github.com/macworld/concierge/internal/leads"
	"github.com/macworld/concierge/internal/snapshot"
)

var (
	chatStore   string
	chatSession string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to Rob in the terminal",
	Long: `Runs one dialogue with Rob in the terminal. Commands:
  /notify [email]  retry the confirmation email
  /reset           start over
  /quit            leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logCloser, err := setup()
		if err != nil {
			return err
		}
		defer logCloser.Close()

		provider, err := createProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating reply provider: %w", err)
		}
		gen := &conversation.LLMGenerator{Provider: provider, Model: cfg.Reply.Model}

		var (
			store     conversation.SnapshotStore
			leadStore *leads.Store
		)
		switch chatStore {
		case "memory":
			store = snapshot.NewMemoryStore()
		case "sqlite":
			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close()
			store = snapshot.NewSQLiteStore(database)
			leadStore = leads.NewStore(database)
		default:
			return fmt.Errorf("unknown --store %q: must be memory or sqlite", chatStore)
		}

		key := chatSession
		if key == "" {
			key = uuid.NewString()
		}

		ctx := cmd.Context()
		d := conversation.NewDialogue(key, dialogueOptions(cfg, gen, newNotifier(cfg, leadStore), store))
		d.Load(ctx)

		fmt.Fprintf(os.Stderr, "Session %s\n\n", key)
		return runChat(ctx, d, cmd.OutOrStdout())
	},
}

func runChat(ctx context.Context, d *conversation.Dialogue, out io.Writer) error {
	printTranscript(out, d.View().Messages)

	prompt := promptui.Prompt{Label: "You"}
	for {
		line, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " "); cmd {
		case "/quit":
			return nil
		case "/reset":
			if err := d.Reset(ctx); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			printTranscript(out, d.View().Messages)
		case "/notify":
			v, err := d.RetryNotification(ctx, arg)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			fmt.Fprintf(out, "* %s\n", v.Status.Message)
		default:
			res, err := d.Submit(ctx, line)
			switch {
			case errors.Is(err, conversation.ErrReplyUnavailable):
				fmt.Fprintf(out, "! %s\n", conversation.MsgRobUnavailable)
				continue
			case err != nil:
				return err
			case res == nil:
				continue
			}
			fmt.Fprintf(out, "Rob: %s\n", res.Reply)
			if res.Completed {
				fmt.Fprintf(out, "* %s\n", res.View.Status.Message)
			}
		}
	}
}

func printTranscript(out io.Writer, msgs []conversation.Message) {
	for _, m := range msgs {
		who := "You"
		if m.Role == conversation.RoleAssistant {
			who = "Rob"
		}
		fmt.Fprintf(out, "%s: %s\n", who, m.Content)
	}
}

func init() {
	chatCmd.Flags().StringVar(&chatStore, "store", "memory", "snapshot store: memory or sqlite")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "resume a session key (sqlite store)")
	rootCmd.AddCommand(chatCmd)
}
