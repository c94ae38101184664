package progress

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/stats"
)

// Bar tracks thread processing. With a known total it draws a progress bar,
// otherwise a spinner that counts threads.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	spinner *pterm.SpinnerPrinter
	total   int
	done    int
	mu      sync.Mutex
	enabled bool
}

// New creates a new progress display when enabled is set.
func New(total int, enabled bool) *Bar {
	bar := &Bar{
		total:   total,
		enabled: enabled,
	}
	if !enabled {
		return bar
	}

	if total > 0 {
		pterm.Info.Printf("Threads in archive: %d\n", total)
		pterm.Println()
		pb, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Processing threads").
			Start()
		if err == nil {
			bar.pb = pb
		}
		return bar
	}

	spinner, err := pterm.DefaultSpinner.Start("Processing threads")
	if err == nil {
		bar.spinner = spinner
	}
	return bar
}

// Update advances the display once per finished thread.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeThreadAssembled, stats.EventTypeThreadFiltered, stats.EventTypeThreadFailed:
		b.done++
		if b.pb != nil {
			b.pb.Increment()
			if evt.ThreadID != "" {
				displayID := evt.ThreadID
				if len(displayID) > 40 {
					displayID = displayID[:37] + "..."
				}
				b.pb.UpdateTitle("Thread: " + displayID)
			}
		}
		if b.spinner != nil {
			b.spinner.UpdateText("Processed threads: " + strconv.Itoa(b.done))
		}
	case stats.EventTypeMerged:
		if b.pb != nil {
			b.pb.UpdateTitle("Writing timeline")
		}
		if b.spinner != nil {
			b.spinner.UpdateText("Writing timeline of " + strconv.Itoa(evt.Count) + " threads")
		}
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Stop finalizes the display.
func (b *Bar) Stop() {
	if !b.enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb != nil {
		if b.pb.Current < b.total {
			b.pb.Current = b.total
		}
		b.pb.Stop()
		b.pb = nil
	}
	if b.spinner != nil {
		b.spinner.Success("Processed threads: " + strconv.Itoa(b.done))
		b.spinner = nil
	}
}

// Subscriber is a stats subscriber that updates the display.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	defer b.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}

// PrintSummary prints the run summary. It is called after every run,
// including failed and cancelled ones.
func PrintSummary(summary stats.Summary, duration time.Duration, runErr error) {
	pterm.Println()
	pterm.DefaultSection.Println("Summary Statistics")

	data := pterm.TableData{
		{"Metric", "Count"},
		{"Threads processed", strconv.Itoa(summary.ThreadsProcessed)},
		{"Threads filtered", strconv.Itoa(summary.ThreadsFiltered)},
		{"Threads failed", strconv.Itoa(summary.ThreadsFailed)},
		{"Threads in timeline", strconv.Itoa(summary.TimelineThreads)},
		{"Messages", strconv.Itoa(summary.Messages)},
		{"Duplicates", strconv.Itoa(summary.Duplicates)},
		{"Attachments extracted", strconv.Itoa(summary.AttachmentsExtracted)},
		{"Attachments scan-only", strconv.Itoa(summary.AttachmentsEmptyScan)},
		{"Attachments failed", strconv.Itoa(summary.AttachmentsFailed)},
		{"Attachments skipped", strconv.Itoa(summary.AttachmentsSkipped)},
		{"Warnings", strconv.Itoa(summary.Warnings)},
		{"Artifacts written", strconv.Itoa(summary.Artifacts)},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Warning.Printf("render summary table: %v\n", err)
	}

	pterm.Info.Printf("Duration: %v\n", duration.Round(time.Millisecond))
	if summary.AttachmentsEmptyScan > 0 {
		pterm.Warning.Printf("%d scan-only PDF(s) need OCR\n", summary.AttachmentsEmptyScan)
	}
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}
	if runErr != nil {
		pterm.Error.Printf("Run failed: %v\n", runErr)
		return
	}
	pterm.Success.Println("Timeline written")
}
