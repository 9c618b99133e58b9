package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/db"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify store integrity and document/index parity",
	Long:  `Runs SQLite's integrity check and confirms that every document row has exactly one full-text index row.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.OpenReadOnly(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		problems, err := database.IntegrityCheck(ctx)
		if err != nil {
			return err
		}
		stats, err := catalog.NewStore(database).Stats(ctx)
		if err != nil {
			return err
		}
		if !stats.Consistent() {
			problems = append(problems, fmt.Sprintf("%d documents but %d index rows", stats.Documents, stats.Indexed))
		}

		if len(problems) > 0 {
			red := color.New(color.FgRed)
			red.Fprintf(os.Stdout, "Store %s has %d problem(s):\n", database.Path(), len(problems))
			for _, p := range problems {
				red.Fprintf(os.Stdout, "  - %s\n", p)
			}
			return fmt.Errorf("integrity check failed")
		}

		color.New(color.FgGreen).Fprintf(os.Stdout, "Store %s is healthy (%d documents)\n", database.Path(), stats.Documents)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
