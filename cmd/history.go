package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdfvault/internal/db"
	"github.com/ziadkadry99/pdfvault/internal/runlog"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent ingest and retry runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.OpenReadOnly(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		runs, err := runlog.NewStore(database).List(context.Background(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"Run", "Kind", "Status", "Started", "Duration", "Archives", "Processed", "Committed", "Failed", "Error"})
		tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 10, WidthMax: 40}})
		for _, r := range runs {
			duration := "-"
			if d := r.Duration(); d > 0 {
				duration = d.Round(time.Second).String()
			}
			tbl.AppendRow(table.Row{
				shortID(r.ID),
				r.Kind,
				statusColor(r.Status).Sprint(r.Status),
				humanize.Time(r.StartedAt),
				duration,
				r.Archives,
				r.Processed,
				r.Committed,
				r.Failed,
				r.Error,
			})
		}
		fmt.Println(tbl.Render())
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func statusColor(s runlog.Status) *color.Color {
	switch s {
	case runlog.StatusCompleted:
		return color.New(color.FgGreen)
	case runlog.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
