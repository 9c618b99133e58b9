package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/pdfvault/internal/logging"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: PDFVAULT_INGEST__BATCH_SIZE sets ingest.batch_size.
const EnvPrefix = "PDFVAULT_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PDFVAULT_*). A .env file next to the
// config file is loaded first; it never overrides variables already set.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			return nil, fmt.Errorf("reading %s: %w", dotenv, err)
		}
	}

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKey maps PDFVAULT_INGEST__BATCH_SIZE to ingest.batch_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Source.DocumentExt == "" || !strings.HasPrefix(c.Source.DocumentExt, ".") {
		return fmt.Errorf("source.document_ext must start with a dot, got %q", c.Source.DocumentExt)
	}

	if c.Extract.MaxPages < 1 {
		return fmt.Errorf("extract.max_pages must be positive")
	}
	if c.Extract.MaxChars < 1 {
		return fmt.Errorf("extract.max_chars must be positive")
	}
	if c.Extract.MaxBytes < 1 {
		return fmt.Errorf("extract.max_bytes must be positive")
	}
	if c.Extract.Timeout < 0 {
		return fmt.Errorf("extract.timeout must be non-negative")
	}

	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be positive")
	}
	if c.Ingest.ErrorLedger == "" {
		return fmt.Errorf("ingest.error_ledger is required")
	}
	if c.Ingest.ProgressEvery < 0 {
		return fmt.Errorf("ingest.progress_every must be non-negative")
	}

	if c.Retry.Output == "" {
		return fmt.Errorf("retry.output is required")
	}

	if c.Search.Limit < 1 {
		return fmt.Errorf("search.limit must be positive")
	}
	if c.Search.SnippetTokens < 1 || c.Search.SnippetTokens > 64 {
		return fmt.Errorf("search.snippet_tokens must be between 1 and 64, got %d", c.Search.SnippetTokens)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
