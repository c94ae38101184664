// Package timeline turns raw threads into ordered, cleaned and de-duplicated
// timelines and merges them into the case timeline.
package timeline

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/body"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/extract"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/quote"
)

const forwardRestoreRunes = 300

var (
	replyPrefix   = regexp.MustCompile(`(?i)^\s*(re|sv|aw)\s*:`)
	forwardPrefix = regexp.MustCompile(`(?i)^\s*(fwd?|vs|videresend|tr|wg)\s*:`)
	subjectPrefix = regexp.MustCompile(`(?i)^\s*((re|fwd?|sv|vs|aw|wg|tr|videresend)\s*:\s*)+`)
	addressLike   = regexp.MustCompile(`[A-Za-z0-9._%+'-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)+`)

	forwardBanners = []string{
		"begin forwarded message",
		"forwarded message",
		"videresendt besked",
		"videresendt meddelelse",
		"oprindelig meddelelse",
		"vidarebefordrat meddelande",
		"weitergeleitete nachricht",
		"message transféré",
	}
)

// Locator finds the attachments of one message.
type Locator interface {
	Attachments(msg model.MessageRecord) []model.AttachmentRef
}

// Extractor turns an attachment reference into an extraction result.
type Extractor interface {
	Extract(ref model.AttachmentRef) model.AttachmentExtraction
}

type Options struct {
	Stripper  quote.Stripper
	Locator   Locator
	Extractor Extractor
	// ForwardRestore keeps the full resolved body of a forwarded message
	// when stripping cut it down to almost nothing.
	ForwardRestore bool
}

// Assembler builds ThreadTimelines. It holds no per-thread state and is safe
// for concurrent use when its collaborators are.
type Assembler struct {
	stripper       quote.Stripper
	locator        Locator
	extractor      Extractor
	forwardRestore bool
}

func New(opts Options) *Assembler {
	a := &Assembler{
		stripper:       opts.Stripper,
		locator:        opts.Locator,
		extractor:      opts.Extractor,
		forwardRestore: opts.ForwardRestore,
	}
	if a.stripper == nil {
		a.stripper = quote.Default()
	}
	if a.extractor == nil {
		a.extractor = extract.New(nil, nil)
	}
	return a
}

// Assemble builds the timeline of one thread.
func (a *Assembler) Assemble(thread model.ThreadRecord) model.ThreadTimeline {
	msgs := SortMessages(thread.Messages)

	tl := model.ThreadTimeline{
		ID:       thread.ID,
		Labels:   thread.Labels,
		Subject:  ThreadSubject(msgs),
		Messages: make([]model.CleanedMessage, 0, len(msgs)),
	}
	if len(msgs) > 0 {
		tl.FirstTimestamp = msgs[0].Timestamp
		tl.LastTimestamp = msgs[len(msgs)-1].Timestamp
	}

	for _, msg := range msgs {
		cleaned, warnings := a.message(thread.ID, tl.Subject, msg)
		tl.Messages = append(tl.Messages, cleaned)
		tl.Warnings = append(tl.Warnings, warnings...)
	}

	Deduplicate(tl.Messages)
	return tl
}

func (a *Assembler) message(threadID, threadSubject string, msg model.MessageRecord) (model.CleanedMessage, []model.Warning) {
	var warnings []model.Warning
	warn := func(kind model.WarningKind, filename, detail string) {
		warnings = append(warnings, model.Warning{
			Kind:      kind,
			ThreadID:  threadID,
			MessageID: msg.ID,
			Filename:  filename,
			Detail:    detail,
		})
	}

	resolved := body.Resolve(msg.Parts)
	if !resolved.Found() {
		warn(model.WarningNoBody, "", "")
	}

	text, fellBack := quote.Clean(a.stripper, resolved.Text)
	if fellBack {
		warn(model.WarningStripFallback, "", "")
	}
	if a.forwardRestore && IsForward(msg.Headers.Subject, text) {
		full := strings.TrimSpace(resolved.Text)
		if utf8.RuneCountInString(text) < forwardRestoreRunes && utf8.RuneCountInString(full) > forwardRestoreRunes {
			text = full
		}
	}

	cleaned := model.CleanedMessage{
		ID:        msg.ID,
		Timestamp: msg.Timestamp,
		Sender:    Addresses(msg.Headers.From),
		To:        Addresses(msg.Headers.To),
		Cc:        Addresses(msg.Headers.Cc),
		Body:      text,
	}
	if cleaned.Sender == "" {
		cleaned.Sender = strings.TrimSpace(msg.Headers.From)
	}
	if !SameSubject(msg.Headers.Subject, threadSubject) {
		cleaned.Subject = strings.TrimSpace(msg.Headers.Subject)
	}

	if a.locator != nil {
		for _, ref := range a.locator.Attachments(msg) {
			result := a.extractor.Extract(ref)
			cleaned.Attachments = append(cleaned.Attachments, result)
			switch result.Status {
			case model.StatusEmptyScan:
				warn(model.WarningOCRRequired, result.Filename, "")
			case model.StatusFailed:
				warn(model.WarningExtractionFailed, result.Filename, result.Error)
			}
		}
	}

	return cleaned, warnings
}

// SortMessages returns a copy of msgs ordered by timestamp ascending. Equal
// timestamps keep their stored order.
func SortMessages(msgs []model.MessageRecord) []model.MessageRecord {
	sorted := make([]model.MessageRecord, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].Index < sorted[j].Index
	})
	return sorted
}

// Deduplicate blanks the body of every message whose trimmed body repeats an
// earlier one and links the pair. Empty bodies are left alone.
func Deduplicate(msgs []model.CleanedMessage) {
	first := make(map[string]int)
	for i := range msgs {
		key := strings.TrimSpace(msgs[i].Body)
		if key == "" {
			continue
		}
		j, seen := first[key]
		if !seen {
			first[key] = i
			continue
		}
		msgs[i].Body = ""
		msgs[i].DuplicateOf = msgs[j].ID
		msgs[j].Duplicates = append(msgs[j].Duplicates, msgs[i].ID)
	}
}

// ThreadSubject picks the first non-empty subject and replaces it while it
// is still a reply.
func ThreadSubject(msgs []model.MessageRecord) string {
	subject := ""
	for _, msg := range msgs {
		s := strings.TrimSpace(msg.Headers.Subject)
		if s == "" {
			continue
		}
		if subject == "" || replyPrefix.MatchString(subject) {
			subject = s
		}
	}
	return subject
}

// SameSubject compares subjects without reply and forward prefixes.
func SameSubject(a, b string) bool {
	return strings.EqualFold(BaseSubject(a), BaseSubject(b))
}

// BaseSubject strips reply and forward prefixes.
func BaseSubject(s string) string {
	return strings.TrimSpace(subjectPrefix.ReplaceAllString(s, ""))
}

// IsForward reports whether a message forwards another one.
func IsForward(subject, text string) bool {
	if forwardPrefix.MatchString(subject) && !replyPrefix.MatchString(subject) {
		return true
	}
	lower := strings.ToLower(text)
	for _, banner := range forwardBanners {
		if strings.Contains(lower, banner) {
			return true
		}
	}
	return false
}

// Addresses reduces an address header to its bare addresses, joined with
// ", ". Repeated addresses are kept once.
func Addresses(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	var found []string
	if list, err := mail.ParseAddressList(header); err == nil {
		for _, addr := range list {
			found = append(found, addr.Address)
		}
	} else {
		found = addressLike.FindAllString(header, -1)
	}

	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, addr := range found {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return strings.Join(out, ", ")
}

// Merge orders threads by first message timestamp, ties by thread id, and
// wraps them in a CaseTimeline.
func Merge(threads []model.ThreadTimeline) *model.CaseTimeline {
	ordered := make([]model.ThreadTimeline, len(threads))
	copy(ordered, threads)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].FirstTimestamp.Equal(ordered[j].FirstTimestamp) {
			return ordered[i].FirstTimestamp.Before(ordered[j].FirstTimestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return model.NewCaseTimeline(ordered)
}
