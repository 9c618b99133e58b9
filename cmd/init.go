package cmd

import (
	"github.com/spf13/cobra"
	"github.com/ziadkadry99/pdfvault/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pdfvault configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the archive root, store and ingest settings, and writes a .pdfvault.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
