package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/config"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/report"
)

var (
	muted     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	bold      = lipgloss.NewStyle().Bold(true)
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	bodyStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// NewShowCommand returns the command that assembles one thread and renders
// it in the terminal.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show THREAD_ID",
		Short: "Assemble one thread and display its cleaned timeline",
		Args:  cobra.ExactArgs(1),
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

			tl, err := p.Thread(cmd.Context(), cfg, args[0])
			if err != nil {
				return fmt.Errorf("load thread %s: %w", args[0], err)
			}

			fmt.Fprint(cmd.OutOrStdout(), RenderThread(tl))
			return nil
		},
	}
}

// RenderThread renders a thread timeline for the terminal.
func RenderThread(tl model.ThreadTimeline) string {
	var b strings.Builder

	subject := tl.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	b.WriteString(bold.Render(subject) + "\n")
	meta := fmt.Sprintf("thread %s · %d messages", tl.ID, len(tl.Messages))
	if len(tl.Labels) > 0 {
		meta += " · " + strings.Join(tl.Labels, ", ")
	}
	b.WriteString(muted.Render(meta) + "\n")

	for _, m := range tl.Messages {
		b.WriteString("\n")
		header := fmt.Sprintf("%s  %s", report.FormatTimestamp(m.Timestamp), m.Sender)
		b.WriteString(bold.Render(header) + "\n")
		if m.To != "" {
			b.WriteString(muted.Render("to "+m.To) + "\n")
		}
		if m.Subject != "" {
			b.WriteString(muted.Render("subject "+m.Subject) + "\n")
		}

		switch {
		case m.DuplicateOf != "":
			b.WriteString(bodyStyle.Render(muted.Render("(same text as " + m.DuplicateOf + ")")))
		case m.Body == "":
			b.WriteString(bodyStyle.Render(muted.Render("(no text)")))
		default:
			b.WriteString(bodyStyle.Render(m.Body))
		}
		b.WriteString("\n")

		for _, a := range m.Attachments {
			b.WriteString("  " + statusLabel(a.Status) + " " + a.Filename)
			if a.Pages > 0 {
				b.WriteString(muted.Render(fmt.Sprintf(" (%d pages)", a.Pages)))
			}
			b.WriteString("\n")
		}
	}

	if len(tl.Warnings) > 0 {
		b.WriteString("\n")
		for _, w := range tl.Warnings {
			line := w.Message()
			if w.Filename != "" {
				line = w.Filename + ": " + line
			}
			b.WriteString(warnStyle.Render("! "+line) + "\n")
		}
	}
	return b.String()
}

func statusLabel(status model.ExtractionStatus) string {
	switch status {
	case model.StatusExtracted:
		return okStyle.Render("[text]")
	case model.StatusEmptyScan:
		return warnStyle.Render("[scan]")
	case model.StatusFailed:
		return errStyle.Render("[fail]")
	default:
		return muted.Render("[skip]")
	}
}
