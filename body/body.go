// Package body picks the readable text of a message out of its MIME tree.
package body

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

const (
	mediaPlain = "text/plain"
	mediaHTML  = "text/html"
)

// Result is the resolved body of one message. MediaType names the kind of
// part the text came from and is empty when the message had no readable
// text part.
type Result struct {
	Text      string
	MediaType string
}

// Found reports whether a text part was used.
func (r Result) Found() bool {
	return r.MediaType != ""
}

// Resolve returns the best body of a message: the plain-text parts if any
// carry text, otherwise the HTML parts converted to text. Parts that carry a
// filename are attachments and never count as body.
func Resolve(parts []model.ContentPart) Result {
	var plain, html []string
	for _, root := range parts {
		root.Walk(func(p model.ContentPart) {
			if p.Filename != "" || len(p.Parts) > 0 || len(p.Data) == 0 {
				return
			}
			switch p.MediaType {
			case mediaPlain:
				if text := normalizeNewlines(Decode(p.Data, p.Charset)); strings.TrimSpace(text) != "" {
					plain = append(plain, text)
				}
			case mediaHTML:
				if text := HTMLToText(Decode(p.Data, p.Charset)); text != "" {
					html = append(html, text)
				}
			}
		})
	}

	switch {
	case len(plain) > 0:
		return Result{Text: join(plain), MediaType: mediaPlain}
	case len(html) > 0:
		return Result{Text: join(html), MediaType: mediaHTML}
	default:
		return Result{}
	}
}

// Decode converts data in the declared charset to a UTF-8 string. Bytes that
// are already valid UTF-8 are used as they are; anything the declared
// charset cannot decode is read as Windows-1252, which accepts every byte.
func Decode(data []byte, declared string) string {
	if utf8.Valid(data) {
		return string(data)
	}

	label := strings.ToLower(strings.TrimSpace(declared))
	if label != "" && !isUTF8Label(label) {
		if r, err := charset.Reader(label, bytes.NewReader(data)); err == nil {
			if decoded, err := io.ReadAll(r); err == nil && utf8.Valid(decoded) {
				return string(decoded)
			}
		}
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(decoded)
}

func isUTF8Label(label string) bool {
	switch label {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return true
	}
	return false
}

func join(texts []string) string {
	trimmed := make([]string, 0, len(texts))
	for _, text := range texts {
		trimmed = append(trimmed, strings.Trim(text, "\n"))
	}
	return strings.Join(trimmed, "\n\n")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
