package config

import "time"

// Config is the top-level pdfvault configuration, corresponding to .pdfvault.yml.
type Config struct {
	Database DatabaseConfig `yaml:"database" koanf:"database"`
	Source   SourceConfig   `yaml:"source" koanf:"source"`
	Extract  ExtractConfig  `yaml:"extract" koanf:"extract"`
	Ingest   IngestConfig   `yaml:"ingest" koanf:"ingest"`
	Retry    RetryConfig    `yaml:"retry" koanf:"retry"`
	Search   SearchConfig   `yaml:"search" koanf:"search"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// SourceConfig describes where containers are found.
type SourceConfig struct {
	Root        string   `yaml:"root" koanf:"root"`
	Include     []string `yaml:"include" koanf:"include"`
	Exclude     []string `yaml:"exclude" koanf:"exclude"`
	DocumentExt string   `yaml:"document_ext" koanf:"document_ext"`
}

// ExtractConfig bounds the work done per document.
type ExtractConfig struct {
	MaxPages int           `yaml:"max_pages" koanf:"max_pages"`
	MaxChars int           `yaml:"max_chars" koanf:"max_chars"`
	MaxBytes int64         `yaml:"max_bytes" koanf:"max_bytes"`
	Timeout  time.Duration `yaml:"timeout" koanf:"timeout"`
}

// IngestConfig holds ingest pipeline settings.
type IngestConfig struct {
	BatchSize      int    `yaml:"batch_size" koanf:"batch_size"`
	ErrorLedger    string `yaml:"error_ledger" koanf:"error_ledger"`
	PositionalSkip bool   `yaml:"positional_skip" koanf:"positional_skip"`
	SkipExisting   bool   `yaml:"skip_existing" koanf:"skip_existing"`
	ProgressEvery  int    `yaml:"progress_every" koanf:"progress_every"`
}

// RetryConfig holds retry pipeline settings.
type RetryConfig struct {
	Output     string `yaml:"output" koanf:"output"`
	RootMarker string `yaml:"root_marker" koanf:"root_marker"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	Limit         int `yaml:"limit" koanf:"limit"`
	SnippetTokens int `yaml:"snippet_tokens" koanf:"snippet_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
	JSON  bool   `yaml:"json" koanf:"json"`
}
