package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/macworld/concierge/internal/leads"
)

var (
	leadsUnread      bool
	leadsUndelivered bool
	leadsLimit       int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List captured appointment requests",
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

		filter := leads.ListFilter{
			Type:       leads.TypeAppointmentRequest,
			UnreadOnly: leadsUnread,
			Limit:      leadsLimit,
		}
		if leadsUndelivered {
			no := false
			filter.Delivered = &no
		}

		list, err := leads.NewStore(database).ListNotifications(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No appointment requests.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RECEIVED\tSESSION\tREAD\tEMAILED\tREQUEST")
		for _, n := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				n.CreatedAt.Local().Format("2006-01-02 15:04"),
				n.SessionID, yesNo(n.IsRead), yesNo(n.Delivered), n.Message)
		}
		return tw.Flush()
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the transcript behind an appointment request",
	Args:  cobra.ExactArgs(1),
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

		store := leads.NewStore(database)
		ctx := cmd.Context()
		ls, err := store.GetSession(ctx, args[0])
		if err != nil {
			return fmt.Errorf("session %s: %w", args[0], err)
		}
		client, err := store.GetClient(ctx, ls.ClientID)
		if err != nil {
			return err
		}
		msgs, err := store.GetMessages(ctx, ls.ID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), leads.TranscriptMarkdown(client, ls, msgs))
		return err
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	leadsCmd.Flags().BoolVar(&leadsUnread, "unread", false, "only unread requests")
	leadsCmd.Flags().BoolVar(&leadsUndelivered, "undelivered", false, "only requests whose emails have not gone out")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "maximum number of requests")
	leadsCmd.AddCommand(leadsShowCmd)
	rootCmd.AddCommand(leadsCmd)
}
