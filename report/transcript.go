package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

// Lines shorter than this are never treated as repeated content.
const minRepeatedRunes = 10

const (
	threadRule  = "=================================================="
	messageRule = "--------------------"
)

// RenderLLMTranscript renders a compact transcript: one line per message
// with its date, sender, body and attachment names.
func RenderLLMTranscript(tl *model.CaseTimeline) []byte {
	var b strings.Builder
	for _, thread := range tl.Threads() {
		fmt.Fprintf(&b, "# THREAD: %s\n", subjectOrDefault(thread.Subject))

		var prev map[string]struct{}
		for _, m := range thread.Messages {
			var text string
			text, prev = transcriptBody(m.Body, prev)
			names := attachmentNames(m)
			if text == "" && len(names) == 0 {
				continue
			}

			fmt.Fprintf(&b, "[%s] %s: %s", day(m), m.Sender, text)
			if len(names) > 0 {
				fmt.Fprintf(&b, " <Attachments: %s>", strings.Join(names, ", "))
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// RenderHumanTranscript renders a readable transcript with message headers
// and attachment statuses.
func RenderHumanTranscript(tl *model.CaseTimeline) []byte {
	var b strings.Builder
	for _, thread := range tl.Threads() {
		b.WriteString(threadRule + "\n")
		fmt.Fprintf(&b, "THREAD ID: %s\n", thread.ID)
		fmt.Fprintf(&b, "SUBJECT: %s\n", subjectOrDefault(thread.Subject))
		b.WriteString(threadRule + "\n")

		var prev map[string]struct{}
		for _, m := range thread.Messages {
			var text string
			text, prev = transcriptBody(m.Body, prev)

			fmt.Fprintf(&b, "MSG ID: %s\n", m.ID)
			fmt.Fprintf(&b, "Date:   %s\n", FormatTimestamp(m.Timestamp))
			fmt.Fprintf(&b, "From:   %s\n", m.Sender)
			if m.To != "" {
				fmt.Fprintf(&b, "To:     %s\n", m.To)
			}
			b.WriteString(messageRule + "\n")

			switch {
			case text != "":
				b.WriteString(text + "\n")
			case m.DuplicateOf != "":
				fmt.Fprintf(&b, "(Duplicate of %s)\n", m.DuplicateOf)
			default:
				b.WriteString("(Empty body / All text was repeated content)\n")
			}

			if len(m.Attachments) > 0 {
				b.WriteString("\nAttachments:\n")
				for _, a := range m.Attachments {
					fmt.Fprintf(&b, "  - %s (%s)\n", a.Filename, a.Status)
				}
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// transcriptBody joins the lines of body into one line, leaving out lines
// that already appeared in the previous message. It returns the text and
// the line set to compare the next message against.
func transcriptBody(body string, prev map[string]struct{}) (string, map[string]struct{}) {
	current := make(map[string]struct{})
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		norm := strings.TrimSpace(strings.TrimLeft(line, " \t>"))
		if norm == "" {
			continue
		}
		current[norm] = struct{}{}
		if _, seen := prev[norm]; seen && utf8.RuneCountInString(norm) >= minRepeatedRunes {
			continue
		}
		kept = append(kept, strings.TrimSpace(line))
	}
	return strings.Join(kept, " "), current
}

func attachmentNames(m model.CleanedMessage) []string {
	names := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		names = append(names, a.Filename)
	}
	return names
}

func day(m model.CleanedMessage) string {
	if m.Timestamp.IsZero() {
		return ""
	}
	return m.Timestamp.UTC().Format("2006-01-02")
}

func subjectOrDefault(s string) string {
	if s == "" {
		return "No Subject"
	}
	return s
}
