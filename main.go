package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/cmd"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/config"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/progress"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/report"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/runner"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/stats"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "mailtimeline",
		Short:        "Build a deduplicated case timeline from an archived mailbox",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c)
			if err != nil {
				return err
			}

			logger, cleanup, err := cmd.SetupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting mailtimeline", "archive", cfg.RawDir, "mbox", cfg.MboxPath, "output", cfg.OutputDir, "workers", cfg.Workers)

			return run(c.Context(), cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
	rootCmd.AddCommand(cmd.NewShowCommand(), cmd.NewArchiveStatsCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	p, err := cmd.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("close extraction cache", stats.AttrError, err)
		}
	}()

	writer, err := report.New(report.Options{Dir: cfg.OutputDir, Transcripts: cfg.Transcripts}, logger)
	if err != nil {
		return fmt.Errorf("report.New: %w", err)
	}
	emitters := []runner.Emitter{writer}
	if cfg.SQLitePath != "" {
		emitters = append(emitters, store.Exporter{Path: cfg.SQLitePath, Logger: logger})
	}

	r, err := runner.New(ctx, runner.Options{
		Source:    p.Source,
		Filter:    p.Filter,
		Assembler: p.Assembler,
		Emitters:  emitters,
		Workers:   cfg.Workers,
	}, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	reporter := stats.NewReporter(r, logger)

	bar := progress.New(p.Total, cfg.Progress && cfg.LogLevel != "debug")
	r.SubscribeStats("progress-bar", bar.Subscriber)

	runErr := r.Start()
	progress.PrintSummary(reporter.Summary(), reporter.Duration(), runErr)
	return runErr
}
