package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macworld/concierge/internal/leads"
	"github.com/macworld/concierge/internal/progress"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-send appointment emails that never went out",
	Long:  `Relays every stored appointment request whose emails were not delivered, marking each one delivered on success.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logCloser, err := setup()
		if err != nil {
			return err
		}
		defer logCloser.Close()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		n := newNotifier(cfg, leads.NewStore(database))
		res, err := n.Redeliver(cmd.Context(), progress.NewReporter("Redelivering"))
		if err != nil {
			return fmt.Errorf("redelivering: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d of %d pending request(s).\n", res.Delivered, res.Attempted)
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d request(s) still undelivered", len(res.Failed))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)
}
