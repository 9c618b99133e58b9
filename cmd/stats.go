package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/db"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document, archive and index counts for the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.OpenReadOnly(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		stats, err := catalog.NewStore(database).Stats(ctx)
		if err != nil {
			return err
		}
		size, err := database.Size(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*catalog.Stats
				SizeBytes int64  `json:"size_bytes"`
				Path      string `json:"path"`
			}{stats, size, database.Path()})
		}

		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleLight)
		tbl.AppendRows([]table.Row{
			{"Database", database.Path()},
			{"Size", humanize.Bytes(uint64(size))},
			{"Documents", humanize.Comma(stats.Documents)},
			{"Indexed", humanize.Comma(stats.Indexed)},
			{"Archives", humanize.Comma(stats.Containers)},
		})
		if !stats.LastInsertedAt.IsZero() {
			tbl.AppendRow(table.Row{"Last insert", humanize.Time(stats.LastInsertedAt)})
		}
		fmt.Println(tbl.Render())

		if !stats.Consistent() {
			color.New(color.FgYellow).Fprintf(os.Stdout,
				"\nWarning: %d documents but %d index rows. Run `pdfvault check`.\n",
				stats.Documents, stats.Indexed)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}
