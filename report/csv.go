package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

const csvBodyRunes = 1000

var csvHeader = []string{
	"thread_id",
	"message_id",
	"timestamp",
	"sender",
	"body",
	"attachment_count",
	"attachment_statuses",
	"thread_subject",
	"duplicate_of",
}

// RenderCSV renders one row per message in timeline order.
func RenderCSV(tl *model.CaseTimeline) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, thread := range tl.Threads() {
		for _, m := range thread.Messages {
			statuses := make([]string, 0, len(m.Attachments))
			for _, a := range m.Attachments {
				statuses = append(statuses, string(a.Status))
			}
			row := []string{
				thread.ID,
				m.ID,
				FormatTimestamp(m.Timestamp),
				m.Sender,
				Snippet(m.Body, csvBodyRunes),
				strconv.Itoa(len(m.Attachments)),
				strings.Join(statuses, ";"),
				thread.Subject,
				m.DuplicateOf,
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("write csv row %s: %w", m.ID, err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Snippet puts body on one line and cuts it to limit runes, marking the cut
// with "...".
func Snippet(body string, limit int) string {
	s := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
