// Package archive reads the thread JSON files and attachment tree mirrored
// to disk by the archiver.
//
// Each thread file is a Gmail API Thread resource. The archiver decodes
// text parts in place before saving, so a part body is either readable text
// or still base64url; the loader normalizes both into transfer-decoded bytes.
package archive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

var ErrNoMessages = errors.New("thread has no messages")

type Options struct {
	RawDir string
}

// Reader streams archived threads in file-name order.
type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

func NewReader(opts Options, logger *slog.Logger) (Reader, error) {
	dir := strings.TrimSpace(opts.RawDir)
	if dir == "" {
		return nil, fmt.Errorf("raw thread directory is empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat raw directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &dirReader{dir: dir, logger: logger}, nil
}

type dirReader struct {
	dir    string
	logger *slog.Logger
}

func (d *dirReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	files, err := ThreadFiles(d.dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		thread, err := ReadThread(path)
		if err != nil && d.logger != nil {
			d.logger.Debug("thread file rejected", "path", path, "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- model.Envelope{Thread: thread, Source: path, Err: err}:
		}
	}
	return nil
}

// ThreadFiles lists the *.json files of dir sorted by name.
func ThreadFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read raw directory: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Count returns the number of thread files in dir.
func Count(dir string) (int, error) {
	files, err := ThreadFiles(dir)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// ReadThread loads and parses a single thread file.
func ReadThread(path string) (model.ThreadRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ThreadRecord{}, fmt.Errorf("read thread file: %w", err)
	}
	fallbackID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	thread, err := ParseThread(data, fallbackID)
	if err != nil {
		return model.ThreadRecord{}, err
	}
	thread.Source = path
	return thread, nil
}

// ParseThread converts a Gmail Thread resource into a ThreadRecord. The
// fallback id is used when the resource carries none.
func ParseThread(data []byte, fallbackID string) (model.ThreadRecord, error) {
	var raw gmail.Thread
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.ThreadRecord{}, fmt.Errorf("decode thread json: %w", err)
	}

	thread := model.ThreadRecord{ID: strings.TrimSpace(raw.Id)}
	if thread.ID == "" {
		thread.ID = fallbackID
	}

	labels := make(map[string]struct{})
	for idx, msg := range raw.Messages {
		if msg == nil {
			continue
		}
		rec := convertMessage(msg, thread.ID, idx)
		for _, label := range rec.Labels {
			labels[label] = struct{}{}
		}
		thread.Messages = append(thread.Messages, rec)
	}

	thread.Labels = make([]string, 0, len(labels))
	for label := range labels {
		thread.Labels = append(thread.Labels, label)
	}
	sort.Strings(thread.Labels)

	if len(thread.Messages) == 0 {
		return thread, fmt.Errorf("thread %s: %w", thread.ID, ErrNoMessages)
	}
	return thread, nil
}

func convertMessage(msg *gmail.Message, threadID string, idx int) model.MessageRecord {
	id := strings.TrimSpace(msg.Id)
	if id == "" {
		id = fmt.Sprintf("%s-%d", threadID, idx)
	}

	rec := model.MessageRecord{
		ID:       id,
		ThreadID: threadID,
		Index:    idx,
		Labels:   append([]string(nil), msg.LabelIds...),
	}

	if msg.Payload != nil {
		rec.Headers = headersOf(msg.Payload.Headers)
		rec.Parts = []model.ContentPart{convertPart(msg.Payload)}
	}

	switch {
	case msg.InternalDate > 0:
		rec.Timestamp = time.UnixMilli(msg.InternalDate).UTC()
	case rec.Headers.Date != "":
		if t, err := mail.ParseDate(rec.Headers.Date); err == nil {
			rec.Timestamp = t.UTC()
		}
	}
	return rec
}

func headersOf(headers []*gmail.MessagePartHeader) model.Headers {
	var h model.Headers
	for _, header := range headers {
		if header == nil {
			continue
		}
		switch strings.ToLower(header.Name) {
		case "from":
			h.From = header.Value
		case "to":
			h.To = header.Value
		case "cc":
			h.Cc = header.Value
		case "subject":
			h.Subject = header.Value
		case "date":
			h.Date = header.Value
		}
	}
	return h
}

func convertPart(part *gmail.MessagePart) model.ContentPart {
	cp := model.ContentPart{
		MediaType: strings.ToLower(strings.TrimSpace(part.MimeType)),
		Filename:  part.Filename,
	}

	for _, header := range part.Headers {
		if header == nil || !strings.EqualFold(header.Name, "Content-Type") {
			continue
		}
		mediaType, params, err := mime.ParseMediaType(header.Value)
		if err != nil {
			continue
		}
		if cp.MediaType == "" {
			cp.MediaType = mediaType
		}
		cp.Charset = strings.ToLower(params["charset"])
	}

	if part.Body != nil {
		cp.AttachmentID = part.Body.AttachmentId
		if part.Body.Data != "" {
			cp.Data, cp.Charset = decodeBody(part.Body.Data, cp.MediaType, cp.Charset)
		}
	}

	for _, child := range part.Parts {
		if child == nil {
			continue
		}
		cp.Parts = append(cp.Parts, convertPart(child))
	}
	return cp
}

// decodeBody undoes the base64url transfer encoding when the payload still
// carries it and returns the bytes with the charset they are now in.
func decodeBody(data, mediaType, charset string) ([]byte, string) {
	isText := strings.HasPrefix(mediaType, "text/")
	if strings.ContainsAny(data, " \t\r\n") {
		return []byte(data), textCharset(isText, "utf-8")
	}

	decoded, err := decodeBase64URL(data)
	if err != nil {
		return []byte(data), textCharset(isText, "utf-8")
	}
	if !isText {
		return decoded, charset
	}
	if !IsUTF8Charset(charset) {
		return decoded, charset
	}
	if utf8.Valid(decoded) && printable(decoded) {
		return decoded, "utf-8"
	}
	return []byte(data), "utf-8"
}

func textCharset(isText bool, charset string) string {
	if !isText {
		return ""
	}
	return charset
}

var errUnpadded = errors.New("base64 payload is not padded")

// decodeBase64URL accepts only the padded form. Unpadded words such as "No"
// or "OK" would otherwise decode into printable garbage.
func decodeBase64URL(data string) ([]byte, error) {
	if data == "" || len(data)%4 != 0 {
		return nil, errUnpadded
	}
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(data)
}

// IsUTF8Charset reports whether charset is empty or a UTF-8 compatible label.
func IsUTF8Charset(charset string) bool {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return true
	}
	return false
}

func printable(b []byte) bool {
	for _, r := range string(b) {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
