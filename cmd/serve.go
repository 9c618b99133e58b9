package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/db"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
	"github.com/ziadkadry99/pdfvault/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP search API",
	Long:  `Serves the search API, a websocket search session and Prometheus metrics over a read-only handle on the store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		logger := newLogger(cfg)

		database, err := db.OpenReadOnly(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("%w\nRun `pdfvault ingest` first to build the index", err)
		}
		defer database.Close()

		srv := server.New(server.Config{
			Port:          cfg.Server.Port,
			AllowAll:      cfg.Server.AllowAll,
			SearchLimit:   cfg.Search.Limit,
			SnippetTokens: cfg.Search.SnippetTokens,
		}, database, metrics.New(), logger)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		if stats, err := catalog.NewStore(database).Stats(ctx); err == nil {
			fmt.Fprintf(os.Stderr, "pdfvault server %s starting on port %d\n", Version, cfg.Server.Port)
			fmt.Fprintf(os.Stderr, "  Database: %s\n", database.Path())
			fmt.Fprintf(os.Stderr, "  Documents indexed: %d\n", stats.Indexed)
		}

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
