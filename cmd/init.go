package cmd

import (
	"github.com/spf13/cobra"

	"github.com/macworld/concierge/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a concierge config with an interactive wizard",
	Long:  `Runs an interactive wizard that picks Rob's reply provider, the operator inbox and the listen port, then writes .concierge.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
