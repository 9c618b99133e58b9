package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/db"
	"github.com/ziadkadry99/pdfvault/internal/indexer"
	"github.com/ziadkadry99/pdfvault/internal/ledger"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
	"github.com/ziadkadry99/pdfvault/internal/progress"
	"github.com/ziadkadry99/pdfvault/internal/runlog"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [root]",
	Short: "Extract and index every PDF in the ZIP archives under root",
	Long: `Walks root (or source.root from the config) for ZIP archives, extracts the
text of each PDF inside them, and commits it to the store in batches. A
second run resumes after the last stored document. Documents that cannot be
read are appended to the error ledger for a later retry.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Int("batch-size", 0, "documents per commit (overrides config)")
	ingestCmd.Flags().String("ledger", "", "error ledger path (overrides config)")
	ingestCmd.Flags().Bool("positional-skip", false, "skip whole archives by count while resuming")
	ingestCmd.Flags().Bool("no-skip-existing", false, "extract documents even when already stored")
	ingestCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root := cfg.Source.Root
	if len(args) == 1 {
		root = args[0]
	}
	if root == "" {
		return errors.New("no archive root given; pass one or set source.root")
	}
	root = absOrSelf(root)

	if n, _ := cmd.Flags().GetInt("batch-size"); n > 0 {
		cfg.Ingest.BatchSize = n
	}
	if p, _ := cmd.Flags().GetString("ledger"); p != "" {
		cfg.Ingest.ErrorLedger = p
	}
	if cmd.Flags().Changed("positional-skip") {
		cfg.Ingest.PositionalSkip, _ = cmd.Flags().GetBool("positional-skip")
	}
	if noSkip, _ := cmd.Flags().GetBool("no-skip-existing"); noSkip {
		cfg.Ingest.SkipExisting = false
	}
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	errs, err := ledger.OpenWriter(cfg.Ingest.ErrorLedger)
	if err != nil {
		return err
	}
	defer errs.Close()

	m := metrics.New()
	if metricsAddr != "" {
		ms, err := metrics.Serve(metricsAddr, m, logger)
		if err != nil {
			return err
		}
		defer ms.Close()
		logger.Info("serving metrics", "addr", ms.Addr())
	}

	pipeline := indexer.NewPipeline(newSource(cfg, root), newExtractor(cfg), catalog.NewStore(database), errs, indexer.Options{
		BatchSize:      cfg.Ingest.BatchSize,
		MaxChars:       cfg.Extract.MaxChars,
		MaxBytes:       cfg.Extract.MaxBytes,
		PositionalSkip: cfg.Ingest.PositionalSkip,
		SkipExisting:   cfg.Ingest.SkipExisting,
		RootDir:        root,
		ProgressEvery:  cfg.Ingest.ProgressEvery,
		Logger:         logger,
		Metrics:        m,
	})

	reporter := progress.NewReporter(os.Stderr, "Ingesting")
	pipeline.SetProgressFunc(progress.Track(reporter))

	runs := runlog.NewStore(database)
	runID, err := runs.Start(ctx, runlog.KindIngest, root)
	if err != nil {
		return err
	}

	result, runErr := pipeline.Run(ctx)
	reporter.Finish()

	var counters runlog.Counters
	if result != nil {
		counters = result.Counters()
	}
	// The run context may already be cancelled; the history row still gets written.
	if err := runs.Finish(context.Background(), runID, counters, runErr); err != nil {
		logger.Warn("recording run history", "run", runID, "error", err)
	}

	if result != nil {
		printIngestSummary(result, errs, runErr == nil)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.New("ingest interrupted; the next run resumes after the last committed batch")
		}
		return fmt.Errorf("ingest failed: %w", runErr)
	}
	return nil
}

func printIngestSummary(r *indexer.Result, errs *ledger.Writer, complete bool) {
	fmt.Println()
	if complete {
		fmt.Println("Ingest complete!")
	} else {
		fmt.Println("Ingest stopped.")
	}
	fmt.Printf("  Archives:        %d of %d opened, %d failed, %d skipped\n",
		r.Archives, r.Containers, r.ArchivesFailed, r.ArchivesSkipped)
	fmt.Printf("  Documents:       %s extracted, %s committed\n",
		humanize.Comma(int64(r.Processed)), humanize.Comma(int64(r.Committed)))
	if r.Resumed > 0 || r.Existing > 0 {
		fmt.Printf("  Skipped:         %d before checkpoint, %d already stored\n", r.Resumed, r.Existing)
	}
	fmt.Printf("  Batches:         %d committed, %d failed\n", r.BatchesCommitted, r.BatchesFailed)
	fmt.Printf("  Failed:          %d\n", r.Failed)
	fmt.Printf("  Duration:        %s\n", r.Duration.Round(100*time.Millisecond))

	if errs.Count() > 0 {
		fmt.Printf("\n%d failure(s) written to %s. Run `pdfvault retry` to try them again.\n", errs.Count(), errs.Path())
	}
	for _, w := range r.Warnings {
		fmt.Printf("  Warning: %s\n", w)
	}
}
