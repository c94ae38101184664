package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/config"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/filter"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/report"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/runner"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/stats"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/timeline"
)

var trackedCategories = []string{"From", "To", "Label", "Attachment-Type", "Year"}

// ArchiveCounts tallies what an archive contains.
type ArchiveCounts struct {
	Threads  int
	Messages int
	Skipped  int
	Rejected int
	Counter  map[string]map[string]int
}

func newArchiveCounts() *ArchiveCounts {
	c := &ArchiveCounts{Counter: make(map[string]map[string]int)}
	for _, category := range trackedCategories {
		c.Counter[category] = make(map[string]int)
	}
	return c
}

func (c *ArchiveCounts) add(thread model.ThreadRecord) {
	c.Threads++
	for _, label := range thread.Labels {
		c.Counter["Label"][label]++
	}
	for _, msg := range thread.Messages {
		c.Messages++
		if from := timeline.Addresses(msg.Headers.From); from != "" {
			c.Counter["From"][from]++
		}
		for _, to := range strings.Split(timeline.Addresses(msg.Headers.To), ", ") {
			if to != "" {
				c.Counter["To"][to]++
			}
		}
		if !msg.Timestamp.IsZero() {
			c.Counter["Year"][strconv.Itoa(msg.Timestamp.Year())]++
		}
		for _, part := range msg.Parts {
			part.Walk(func(p model.ContentPart) {
				if p.IsAttachment() {
					c.Counter["Attachment-Type"][p.MediaType]++
				}
			})
		}
	}
}

// NewArchiveStatsCommand returns the command that analyses the archive and
// saves frequency reports.
func NewArchiveStatsCommand() *cobra.Command {
	var (
		reportDir string
		topN      int
	)

	cmd := &cobra.Command{
		Use:   "archive-stats",
		Short: "Analyse the archive and show statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := SetupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			p, err := NewPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				_ = p.Close()
			}()

			counts, err := CountArchive(cmd.Context(), p.Source, p.Filter)
			if err != nil {
				return fmt.Errorf("error reading archive: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d threads with %d messages (skipped %d by filters, %d unreadable)\n\n",
				counts.Threads, counts.Messages, counts.Skipped, counts.Rejected)
			for _, category := range trackedCategories {
				fmt.Fprintf(out, "Top %d %s:\n", topN, category)
				stats.PrettyPrintTop(counts.Counter[category], topN)
				fmt.Fprintln(out)
			}

			if err := SaveCSVReports(counts.Counter, trackedCategories, reportDir, 1000); err != nil {
				return fmt.Errorf("error saving CSV reports: %w", err)
			}

			fmt.Fprintf(out, "Reports saved to directory: %s\n", reportDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&reportDir, "report-dir", ".", "Output directory for CSV reports")
	cmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	return cmd
}

// CountArchive reads every thread of source and tallies the ones flt allows.
func CountArchive(ctx context.Context, source runner.Source, flt *filter.Filter) (*ArchiveCounts, error) {
	counts := newArchiveCounts()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan model.Envelope, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		errCh <- source.Stream(ctx, out)
	}()

	for env := range out {
		switch {
		case env.Err != nil:
			counts.Rejected++
		case !flt.Allows(env.Thread):
			counts.Skipped++
		default:
			counts.add(env.Thread)
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return counts, nil
}

// SaveCSVReports writes one "report_<category>.csv" per category with the
// limit most frequent values.
func SaveCSVReports(counter map[string]map[string]int, categories []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, category := range categories {
		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)

		if err := writer.Write([]string{"Value", "Count"}); err != nil {
			return err
		}
		for _, pair := range stats.Top(counter[category], limit) {
			if err := writer.Write([]string{pair.Key, strconv.Itoa(pair.Value)}); err != nil {
				return err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return err
		}

		filename := fmt.Sprintf("report_%s.csv", normalizeCategory(category))
		if err := report.WriteFileAtomic(filepath.Join(dir, filename), buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func normalizeCategory(category string) string {
	name := strings.ToLower(category)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
