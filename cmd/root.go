package cmd

import "github.com/spf13/cobra"

var (
	cfgFile string
	verbose bool
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "pdfvault",
	Short: "Full-text index for archives of zipped PDFs",
	Long: `pdfvault walks a directory of ZIP archives, extracts the text of every
PDF inside them, and stores it in a single SQLite file with a full-text
index. Ingest runs resume where the last one stopped, failures are written
to an error ledger that can be retried, and the index can be searched from
the command line, over HTTP, or by AI agents via MCP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".pdfvault.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")
}
