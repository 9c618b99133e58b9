package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/db"
	mcpserver "github.com/ziadkadry99/pdfvault/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing archive search tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.OpenReadOnly(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("%w\nRun `pdfvault ingest` first to build the index", err)
		}
		defer database.Close()

		store := catalog.NewStore(database)

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		if stats, err := store.Stats(context.Background()); err == nil {
			fmt.Fprintf(os.Stderr, "pdfvault MCP server started on stdio (db=%s, documents=%d)\n", database.Path(), stats.Documents)
		}

		srv := mcpserver.NewServer(store, nil)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
