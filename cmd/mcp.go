package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/macworld/concierge/internal/leads"
	mcpserver "github.com/macworld/concierge/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for operator agents",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the captured appointment requests and their transcripts.`,
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

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "concierge MCP server started on stdio (db=%s)\n", database.Path())

		return mcpserver.NewServer(leads.NewStore(database)).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
