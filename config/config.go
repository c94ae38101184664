package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/quote"
)

// Config captures all command-line options required to build a timeline.
type Config struct {
	ArchiveDir     string
	RawDir         string
	AttachmentsDir string
	MboxPath       string
	OutputDir      string
	Workers        int
	Languages      []string
	QuoteHeaders   []string
	ForwardRestore bool
	Transcripts    bool
	SQLitePath     string
	CacheDir       string
	IncludeHeader  []string
	ExcludeHeader  []string
	IncludeLabel   []string
	ExcludeLabel   []string
	Progress       bool
	LogLevel       string
	LogDir         string
}

// UsesMbox reports whether threads are read from an mbox file.
func (c Config) UsesMbox() bool {
	return c.MboxPath != ""
}

// RegisterFlags attaches all CLI flags to the provided command. Flags are
// persistent so subcommands read the same archive.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	flags.String("archive", "", "Archive directory holding raw/ thread JSON and attachments/ files")
	flags.String("raw-dir", "", "Thread JSON directory (default <archive>/raw)")
	flags.String("attachments-dir", "", "Attachment directory (default <archive>/attachments)")
	flags.String("mbox", "", "Google Takeout .mbox file to read instead of an archive directory")
	flags.String("output", "output", "Directory for the timeline artifacts")
	flags.Int("workers", runtime.NumCPU(), "Number of threads assembled in parallel")
	flags.StringSlice("languages", nil, "Quote header languages to recognise (default all: "+strings.Join(quote.Languages(), ",")+")")
	flags.StringArray("quote-header", nil, "Additional regex recognised as a quote attribution line")
	flags.Bool("no-forward-restore", false, "Keep stripped bodies of forwarded messages even when almost nothing is left")
	flags.Bool("transcripts", false, "Also write transcript_llm.txt and transcript_human.txt")
	flags.String("sqlite", "", "Also export the timeline into a SQLite database at this path")
	flags.String("cache-dir", "", "Directory for the PDF extraction cache (disabled when empty)")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArray("include-label", nil, "Label allow-list (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-label", nil, "Label block-list (mutually exclusive with include flags)")
	flags.Bool("progress", true, "Show a progress bar while processing")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory to mirror log output into a timestamped file")

	cmd.MarkFlagsMutuallyExclusive("archive", "mbox")
	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	archiveDir, err := flags.GetString("archive")
	if err != nil {
		return Config{}, err
	}
	rawDir, err := flags.GetString("raw-dir")
	if err != nil {
		return Config{}, err
	}
	attachmentsDir, err := flags.GetString("attachments-dir")
	if err != nil {
		return Config{}, err
	}
	mboxPath, err := flags.GetString("mbox")
	if err != nil {
		return Config{}, err
	}
	outputDir, err := flags.GetString("output")
	if err != nil {
		return Config{}, err
	}
	workers, err := flags.GetInt("workers")
	if err != nil {
		return Config{}, err
	}
	languages, err := flags.GetStringSlice("languages")
	if err != nil {
		return Config{}, err
	}
	quoteHeaders, err := flags.GetStringArray("quote-header")
	if err != nil {
		return Config{}, err
	}
	noForwardRestore, err := flags.GetBool("no-forward-restore")
	if err != nil {
		return Config{}, err
	}
	transcripts, err := flags.GetBool("transcripts")
	if err != nil {
		return Config{}, err
	}
	sqlitePath, err := flags.GetString("sqlite")
	if err != nil {
		return Config{}, err
	}
	cacheDir, err := flags.GetString("cache-dir")
	if err != nil {
		return Config{}, err
	}
	includeHeader, err := flags.GetStringArray("include-header")
	if err != nil {
		return Config{}, err
	}
	excludeHeader, err := flags.GetStringArray("exclude-header")
	if err != nil {
		return Config{}, err
	}
	includeLabel, err := flags.GetStringArray("include-label")
	if err != nil {
		return Config{}, err
	}
	excludeLabel, err := flags.GetStringArray("exclude-label")
	if err != nil {
		return Config{}, err
	}
	progress, err := flags.GetBool("progress")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}

	if archiveDir != "" {
		if rawDir == "" {
			rawDir = filepath.Join(archiveDir, "raw")
		}
		if attachmentsDir == "" {
			attachmentsDir = filepath.Join(archiveDir, "attachments")
		}
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	for i, lang := range languages {
		languages[i] = strings.ToLower(strings.TrimSpace(lang))
	}

	cfg := Config{
		ArchiveDir:     cleanPath(archiveDir),
		RawDir:         cleanPath(rawDir),
		AttachmentsDir: cleanPath(attachmentsDir),
		MboxPath:       cleanPath(mboxPath),
		OutputDir:      cleanPath(outputDir),
		Workers:        workers,
		Languages:      languages,
		QuoteHeaders:   quoteHeaders,
		ForwardRestore: !noForwardRestore,
		Transcripts:    transcripts,
		SQLitePath:     cleanPath(sqlitePath),
		CacheDir:       cleanPath(cacheDir),
		IncludeHeader:  includeHeader,
		ExcludeHeader:  excludeHeader,
		IncludeLabel:   includeLabel,
		ExcludeLabel:   excludeLabel,
		Progress:       progress,
		LogLevel:       logLevel,
		LogDir:         cleanPath(logDir),
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.RawDir == "" && cfg.MboxPath == "" {
		return fmt.Errorf("one of --archive, --raw-dir or --mbox is required")
	}
	if cfg.RawDir != "" && cfg.MboxPath != "" {
		return fmt.Errorf("--mbox cannot be combined with an archive directory")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("--output is required")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}

	known := make(map[string]bool)
	for _, lang := range quote.Languages() {
		known[lang] = true
	}
	for _, lang := range cfg.Languages {
		if !known[lang] {
			return fmt.Errorf("unsupported --languages entry: %s", lang)
		}
	}

	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeLabel) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeLabel) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
