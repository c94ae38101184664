package mbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	// Registers charset conversion so text parts arrive as UTF-8.
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

var ErrNoMessages = errors.New("mbox contains no messages")

var replyPrefix = regexp.MustCompile(`(?i)^\s*((re|fwd?|sv|vs|aw|wg|tr)\s*:\s*)+`)

type Options struct {
	Path string
}

// Reader streams the threads of an mbox archive. Messages are grouped by
// Gmail's X-GM-THRID header, so the whole file is read before the first
// thread is emitted.
type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

func NewReader(opts Options, logger *slog.Logger) (Reader, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	return &fileReader{path: path, logger: logger}, nil
}

type fileReader struct {
	path   string
	logger *slog.Logger
}

func (f *fileReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	threads, read, err := f.collect(ctx, mboxlib.NewReader(file), out)
	if err != nil {
		return err
	}
	if f.logger != nil {
		f.logger.Info("mbox read", "path", f.path, "messages", read, "threads", len(threads))
	}
	if read == 0 {
		return fmt.Errorf("%s: %w", f.path, ErrNoMessages)
	}

	for _, thread := range threads {
		if err := emitEnvelope(ctx, out, model.Envelope{Thread: thread, Source: f.path}); err != nil {
			return err
		}
	}
	return nil
}

// collect groups the messages of reader into threads. read counts the
// messages found in the file, including ones that could not be parsed.
func (f *fileReader) collect(ctx context.Context, reader *mboxlib.Reader, out chan<- model.Envelope) (threads []model.ThreadRecord, read int, err error) {
	var order []string
	byID := make(map[string]*model.ThreadRecord)

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, read, err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if err := f.emitError(ctx, out, idx, fmt.Errorf("message %d: %w", idx, err)); err != nil {
				return nil, read, err
			}
			break
		}

		read++

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			if err := f.emitError(ctx, out, idx, fmt.Errorf("message %d read: %w", idx, err)); err != nil {
				return nil, read, err
			}
			continue
		}

		threadID, msg, err := ParseMessage(raw)
		if err != nil {
			if err := f.emitError(ctx, out, idx, fmt.Errorf("message %d parse: %w", idx, err)); err != nil {
				return nil, read, err
			}
			continue
		}

		thread, ok := byID[threadID]
		if !ok {
			thread = &model.ThreadRecord{ID: threadID, Source: f.path}
			byID[threadID] = thread
			order = append(order, threadID)
		}
		msg.ThreadID = threadID
		msg.Index = len(thread.Messages)
		thread.Messages = append(thread.Messages, msg)
	}

	threads = make([]model.ThreadRecord, 0, len(order))
	for _, id := range order {
		thread := byID[id]
		thread.Labels = unionLabels(thread.Messages)
		threads = append(threads, *thread)
	}
	return threads, read, nil
}

func (f *fileReader) emitError(ctx context.Context, out chan<- model.Envelope, idx int, err error) error {
	if f.logger != nil {
		f.logger.Debug("mbox message rejected", "path", f.path, "err", err)
	}
	return emitEnvelope(ctx, out, model.Envelope{Source: fmt.Sprintf("%s#%d", f.path, idx), Err: fmt.Errorf("%w: %w", model.ErrMessageUnreadable, err)})
}

func emitEnvelope(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

// ParseMessage decodes one raw RFC 5322 message and returns the thread it
// belongs to.
func ParseMessage(raw []byte) (string, model.MessageRecord, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return "", model.MessageRecord{}, err
	}

	header := mail.Header{Header: entity.Header}
	rec := model.MessageRecord{
		Headers: model.Headers{
			From:    headerText(header, "From"),
			To:      headerText(header, "To"),
			Cc:      headerText(header, "Cc"),
			Subject: headerText(header, "Subject"),
			Date:    header.Get("Date"),
		},
		Labels: splitLabels(headerText(header, "X-Gmail-Labels")),
	}

	if date, err := header.Date(); err == nil {
		rec.Timestamp = date.UTC()
	}

	rec.ID, _ = header.MessageID()
	if rec.ID == "" {
		sum := sha256.Sum256(raw)
		rec.ID = hex.EncodeToString(sum[:8])
	}

	part, err := convertEntity(entity, err)
	if err != nil {
		return "", model.MessageRecord{}, err
	}
	rec.Parts = []model.ContentPart{part}

	threadID := strings.TrimSpace(header.Get("X-GM-THRID"))
	if threadID == "" {
		threadID = subjectThreadID(rec.Headers.Subject, rec.ID)
	}
	return threadID, rec, nil
}

func convertEntity(entity *message.Entity, readErr error) (model.ContentPart, error) {
	mediaType, params, _ := entity.Header.ContentType()
	part := model.ContentPart{
		MediaType: strings.ToLower(mediaType),
		Charset:   strings.ToLower(params["charset"]),
	}
	if part.MediaType == "" {
		part.MediaType = "text/plain"
	}
	if _, dispParams, err := entity.Header.ContentDisposition(); err == nil {
		part.Filename = dispParams["filename"]
	}
	if part.Filename == "" {
		part.Filename = params["name"]
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				return part, fmt.Errorf("read multipart: %w", err)
			}
			converted, convErr := convertEntity(child, err)
			if convErr != nil {
				return part, convErr
			}
			part.Parts = append(part.Parts, converted)
		}
		return part, nil
	}

	data, err := io.ReadAll(entity.Body)
	if err != nil {
		return part, fmt.Errorf("read body: %w", err)
	}
	part.Data = data

	if strings.HasPrefix(part.MediaType, "text/") && part.Filename == "" && !message.IsUnknownCharset(readErr) {
		part.Charset = "utf-8"
	}
	return part, nil
}

func headerText(header mail.Header, key string) string {
	if v, err := header.Text(key); err == nil {
		return v
	}
	return header.Get(key)
}

func splitLabels(value string) []string {
	var labels []string
	for _, label := range strings.Split(value, ",") {
		label = strings.TrimSpace(label)
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

func unionLabels(msgs []model.MessageRecord) []string {
	set := make(map[string]struct{})
	for _, msg := range msgs {
		for _, label := range msg.Labels {
			set[label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func subjectThreadID(subject, messageID string) string {
	normalized := strings.ToLower(strings.TrimSpace(replyPrefix.ReplaceAllString(subject, "")))
	if normalized == "" {
		normalized = messageID
	}
	sum := sha256.Sum256([]byte(normalized))
	return "subj-" + hex.EncodeToString(sum[:8])
}

// InlineLocator reports the attachments an mbox message carries in its
// own MIME tree.
type InlineLocator struct{}

func (InlineLocator) Attachments(msg model.MessageRecord) []model.AttachmentRef {
	var refs []model.AttachmentRef
	for _, part := range msg.Parts {
		part.Walk(func(p model.ContentPart) {
			if p.Filename == "" || len(p.Parts) > 0 {
				return
			}
			refs = append(refs, model.AttachmentRef{
				ThreadID:  msg.ThreadID,
				MessageID: msg.ID,
				Filename:  p.Filename,
				MediaType: p.MediaType,
				Data:      p.Data,
			})
		})
	}
	return refs
}
