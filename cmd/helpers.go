package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/pdfvault/internal/config"
	"github.com/ziadkadry99/pdfvault/internal/extract"
	"github.com/ziadkadry99/pdfvault/internal/logging"
	"github.com/ziadkadry99/pdfvault/internal/source"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `pdfvault init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger from config and the global flags.
func newLogger(cfg *config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	return logging.New(os.Stderr, level, cfg.Log.JSON || logJSON)
}

// newSource builds the archive source rooted at root.
func newSource(cfg *config.Config, root string) *source.ZipSource {
	return &source.ZipSource{
		Root:        root,
		Include:     cfg.Source.Include,
		Exclude:     cfg.Source.Exclude,
		DocumentExt: cfg.Source.DocumentExt,
	}
}

// newExtractor builds the PDF extractor, bounded by extract.timeout when set.
func newExtractor(cfg *config.Config) extract.Extractor {
	var ex extract.Extractor = extract.NewPDFExtractor(cfg.Extract.MaxPages)
	if cfg.Extract.Timeout > 0 {
		ex = extract.WithTimeout(ex, cfg.Extract.Timeout)
	}
	return ex
}

// absOrSelf returns the absolute form of p, or p when it cannot be resolved.
func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
