package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdfvault/internal/db"
)

var backupCmd = &cobra.Command{
	Use:   "backup <dest>",
	Short: "Write a compacted copy of the store to dest",
	Long:  `Copies the store with VACUUM INTO. The copy is consistent even while searches are running; dest must not exist.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Backup(context.Background(), dest); err != nil {
			return err
		}

		if info, err := os.Stat(dest); err == nil {
			fmt.Printf("Backup written to %s (%s)\n", dest, humanize.Bytes(uint64(info.Size())))
		} else {
			fmt.Printf("Backup written to %s\n", dest)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
