package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/db"
	"github.com/ziadkadry99/pdfvault/internal/indexer"
	"github.com/ziadkadry99/pdfvault/internal/ledger"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
	"github.com/ziadkadry99/pdfvault/internal/progress"
	"github.com/ziadkadry99/pdfvault/internal/runlog"
)

var retryCmd = &cobra.Command{
	Use:   "retry [ledger]",
	Short: "Re-attempt the documents listed in an error ledger",
	Long: `Reads the error ledger (ingest.error_ledger by default), re-extracts each
listed document and inserts the ones that now succeed. Entries that still
fail are written to a fresh ledger (retry.output) with their original error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRetry,
}

func init() {
	retryCmd.Flags().StringP("output", "o", "", "ledger for entries that still fail (overrides config)")
	retryCmd.Flags().String("root", "", "ingest root the stored paths are relative to (source.root, else derived from the ledger)")
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := cfg.Ingest.ErrorLedger
	if len(args) == 1 {
		input = args[0]
	}
	output := cfg.Retry.Output
	if o, _ := cmd.Flags().GetString("output"); o != "" {
		output = o
	}
	if absOrSelf(input) == absOrSelf(output) {
		return fmt.Errorf("retry output %s would overwrite its input", output)
	}
	rootDir, _ := cmd.Flags().GetString("root")

	entries, err := ledger.ReadFile(input)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No entries to retry in %s.\n", input)
		return nil
	}

	// Stored containers are relative to the ingest root; prefer the
	// configured one over a guess from the ledger.
	if rootDir == "" && cfg.Source.Root != "" {
		rootDir = absOrSelf(cfg.Source.Root)
	}
	if rootDir == "" {
		containers := make([]string, len(entries))
		for i, e := range entries {
			containers[i] = e.Container
		}
		rootDir = indexer.DeriveRoot(containers, cfg.Retry.RootMarker)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	retrier := indexer.NewRetrier(newSource(cfg, ""), newExtractor(cfg), catalog.NewStore(database), indexer.RetryOptions{
		RootDir:    rootDir,
		RootMarker: cfg.Retry.RootMarker,
		MaxChars:   cfg.Extract.MaxChars,
		MaxBytes:   cfg.Extract.MaxBytes,
		Logger:     logger,
		Metrics:    metrics.New(),
	})

	reporter := progress.NewReporter(os.Stderr, "Retrying")
	retrier.SetProgressFunc(progress.Track(reporter))

	runs := runlog.NewStore(database)
	runID, err := runs.Start(ctx, runlog.KindRetry, rootDir)
	if err != nil {
		return err
	}

	result, runErr := retrier.Run(ctx, entries)
	reporter.Finish()

	var counters runlog.Counters
	if result != nil {
		counters = result.Counters()
	}
	if err := runs.Finish(context.Background(), runID, counters, runErr); err != nil {
		logger.Warn("recording run history", "run", runID, "error", err)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("retry interrupted; %s is unchanged", input)
		}
		return fmt.Errorf("retry failed: %w", runErr)
	}

	comments := []string{
		fmt.Sprintf("pdfvault retry of %s at %s", input, time.Now().Format(time.RFC3339)),
		fmt.Sprintf("root: %s", result.Root),
		fmt.Sprintf("%d of %d entries still failing", len(result.StillFailing), result.Total),
	}
	if err := ledger.WriteFile(output, result.StillFailing, comments...); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Retry complete!")
	fmt.Printf("  Entries:         %d\n", result.Total)
	fmt.Printf("  Recovered:       %d\n", result.Recovered)
	fmt.Printf("  Already indexed: %d\n", result.AlreadyIndexed)
	fmt.Printf("  Still failing:   %d (written to %s)\n", len(result.StillFailing), output)
	fmt.Printf("  Success rate:    %.1f%%\n", result.SuccessRate())
	fmt.Printf("  Duration:        %s\n", result.Duration.Round(100*time.Millisecond))
	return nil
}
