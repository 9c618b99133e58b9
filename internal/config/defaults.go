package config

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".pdfvault.yml"

// DefaultExcludes are glob patterns excluded from the source walk by default.
var DefaultExcludes = []string{
	"**/.git/**",
	"**/__MACOSX/**",
	"**/*.part.zip",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "pdf_archive.db",
		},
		Source: SourceConfig{
			Root:        ".",
			Include:     []string{"**/*.zip"},
			Exclude:     append([]string(nil), DefaultExcludes...),
			DocumentExt: ".pdf",
		},
		Extract: ExtractConfig{
			MaxPages: 10,
			MaxChars: 10000,
			MaxBytes: 64 << 20,
		},
		Ingest: IngestConfig{
			BatchSize:     10,
			ErrorLedger:   "pdf_errors.txt",
			SkipExisting:  true,
			ProgressEvery: 100,
		},
		Retry: RetryConfig{
			Output:     "retry_errors.txt",
			RootMarker: "libgen.scimag",
		},
		Search: SearchConfig{
			Limit:         20,
			SnippetTokens: 32,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
