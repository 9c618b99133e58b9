package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to pdfvault! Let's configure your archive.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Source root.
	rootPrompt := promptui.Prompt{
		Label:    "Directory holding the ZIP archives",
		Default:  cfg.Source.Root,
		Validate: validateDir,
	}
	root, err := rootPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	cfg.Source.Root = root

	// 2. Include patterns.
	includePrompt := promptui.Prompt{
		Label:   "Archive patterns to include (comma-separated globs)",
		Default: strings.Join(cfg.Source.Include, ","),
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	if include := splitAndTrim(includeStr); len(include) > 0 {
		cfg.Source.Include = include
	}

	// 3. Database path.
	dbPrompt := promptui.Prompt{
		Label:   "SQLite database file",
		Default: cfg.Database.Path,
	}
	if cfg.Database.Path, err = dbPrompt.Run(); err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}

	// 4. Batch size.
	batchPrompt := promptui.Prompt{
		Label:    "Documents per commit",
		Default:  strconv.Itoa(cfg.Ingest.BatchSize),
		Validate: validatePositiveInt,
	}
	batchStr, err := batchPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("batch size: %w", err)
	}
	cfg.Ingest.BatchSize, _ = strconv.Atoi(strings.TrimSpace(batchStr))

	// 5. Resume strategy.
	resumePrompt := promptui.Select{
		Label: "Resume strategy",
		Items: []string{
			"identity   - skip by document name until the checkpoint (safe)",
			"positional - also skip whole archives by count (faster, legacy)",
		},
	}
	resumeIdx, _, err := resumePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("resume strategy: %w", err)
	}
	cfg.Ingest.PositionalSkip = resumeIdx == 1

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateDir(s string) error {
	info, err := os.Stat(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a number")
	}
	if n < 1 {
		return errors.New("must be at least 1")
	}
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
