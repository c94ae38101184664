package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

type threadDoc struct {
	Labels         []string     `json:"labels"`
	Subject        string       `json:"subject"`
	FirstTimestamp string       `json:"first_timestamp"`
	LastTimestamp  string       `json:"last_timestamp"`
	Messages       []messageDoc `json:"messages"`
}

type messageDoc struct {
	ID          string          `json:"id"`
	Timestamp   string          `json:"timestamp"`
	Sender      string          `json:"sender"`
	To          string          `json:"to,omitempty"`
	Cc          string          `json:"cc,omitempty"`
	Subject     string          `json:"subject,omitempty"`
	Body        string          `json:"body"`
	Attachments []attachmentDoc `json:"attachments"`
	DuplicateOf string          `json:"duplicate_of,omitempty"`
	Duplicates  []string        `json:"duplicates,omitempty"`
}

type attachmentDoc struct {
	Filename  string                 `json:"filename"`
	MediaType string                 `json:"media_type"`
	Status    model.ExtractionStatus `json:"status"`
	Pages     int                    `json:"pages,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// RenderJSON renders the case timeline as one JSON object keyed by thread
// id. Keys appear in timeline order, which a Go map cannot keep, so the
// outer object is written by hand and each thread is encoded on its own.
func RenderJSON(tl *model.CaseTimeline) ([]byte, error) {
	threads := tl.Threads()
	if len(threads) == 0 {
		return []byte("{}\n"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, thread := range threads {
		key, err := encode(thread.ID, "")
		if err != nil {
			return nil, fmt.Errorf("encode thread id %s: %w", thread.ID, err)
		}
		value, err := encode(newThreadDoc(thread), "  ")
		if err != nil {
			return nil, fmt.Errorf("encode thread %s: %w", thread.ID, err)
		}

		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
		if i < len(threads)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// encode marshals v without HTML escaping and without the encoder's
// trailing newline.
func encode(v any, prefix string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func newThreadDoc(t model.ThreadTimeline) threadDoc {
	doc := threadDoc{
		Labels:         t.Labels,
		Subject:        t.Subject,
		FirstTimestamp: FormatTimestamp(t.FirstTimestamp),
		LastTimestamp:  FormatTimestamp(t.LastTimestamp),
		Messages:       make([]messageDoc, 0, len(t.Messages)),
	}
	if doc.Labels == nil {
		doc.Labels = []string{}
	}
	for _, m := range t.Messages {
		msg := messageDoc{
			ID:          m.ID,
			Timestamp:   FormatTimestamp(m.Timestamp),
			Sender:      m.Sender,
			To:          m.To,
			Cc:          m.Cc,
			Subject:     m.Subject,
			Body:        m.Body,
			Attachments: make([]attachmentDoc, 0, len(m.Attachments)),
			DuplicateOf: m.DuplicateOf,
			Duplicates:  m.Duplicates,
		}
		for _, a := range m.Attachments {
			msg.Attachments = append(msg.Attachments, attachmentDoc{
				Filename:  a.Filename,
				MediaType: a.MediaType,
				Status:    a.Status,
				Pages:     a.Pages,
				Text:      a.Text,
				Error:     a.Error,
			})
		}
		doc.Messages = append(doc.Messages, msg)
	}
	return doc
}
