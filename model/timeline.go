package model

import "time"

// ExtractionStatus classifies the outcome of attachment text extraction.
type ExtractionStatus string

const (
	StatusExtracted ExtractionStatus = "extracted"
	StatusEmptyScan ExtractionStatus = "empty_scan"
	StatusFailed    ExtractionStatus = "failed"
	StatusSkipped   ExtractionStatus = "skipped"
)

// AttachmentExtraction is the immutable result of processing one attachment.
type AttachmentExtraction struct {
	Filename  string
	MediaType string
	Status    ExtractionStatus
	Pages     int
	Text      string
	Error     string
}

// CleanedMessage is a message reduced to what an analyst needs.
type CleanedMessage struct {
	ID          string
	Timestamp   time.Time
	Sender      string
	To          string
	Cc          string
	Subject     string
	Body        string
	Attachments []AttachmentExtraction
	DuplicateOf string
	Duplicates  []string
}

// ThreadTimeline is the ordered, cleaned form of one thread.
type ThreadTimeline struct {
	ID             string
	Labels         []string
	Subject        string
	FirstTimestamp time.Time
	LastTimestamp  time.Time
	Messages       []CleanedMessage
	Warnings       []Warning
}

// CaseTimeline holds every thread of a run in output order.
type CaseTimeline struct {
	threads []ThreadTimeline
	index   map[string]int
}

// NewCaseTimeline wraps already-ordered threads.
func NewCaseTimeline(threads []ThreadTimeline) *CaseTimeline {
	index := make(map[string]int, len(threads))
	for i, t := range threads {
		index[t.ID] = i
	}
	return &CaseTimeline{threads: threads, index: index}
}

// Threads returns the threads in output order.
func (c *CaseTimeline) Threads() []ThreadTimeline {
	if c == nil {
		return nil
	}
	return c.threads
}

// Thread looks up a thread by id.
func (c *CaseTimeline) Thread(id string) (ThreadTimeline, bool) {
	if c == nil {
		return ThreadTimeline{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return ThreadTimeline{}, false
	}
	return c.threads[i], true
}

// Len returns the number of threads.
func (c *CaseTimeline) Len() int {
	if c == nil {
		return 0
	}
	return len(c.threads)
}

// MessageCount returns the number of messages across all threads.
func (c *CaseTimeline) MessageCount() int {
	n := 0
	for _, t := range c.Threads() {
		n += len(t.Messages)
	}
	return n
}

// WarningKind names a recoverable per-item problem.
type WarningKind string

const (
	WarningThreadUnparseable WarningKind = "thread_unparseable"
	WarningThreadEmpty       WarningKind = "thread_empty"
	WarningMessageUnreadable WarningKind = "message_unparseable"
	WarningNoBody            WarningKind = "no_body"
	WarningStripFallback     WarningKind = "strip_fallback"
	WarningOCRRequired       WarningKind = "ocr_required"
	WarningExtractionFailed  WarningKind = "extraction_failed"
)

// Warning describes a recoverable problem with one thread, message or attachment.
type Warning struct {
	Kind      WarningKind
	Source    string
	ThreadID  string
	MessageID string
	Filename  string
	Detail    string
}

// Message renders the human-readable warning text.
func (w Warning) Message() string {
	switch w.Kind {
	case WarningThreadUnparseable:
		return "thread file could not be parsed"
	case WarningThreadEmpty:
		return "thread has no messages, excluded from timeline"
	case WarningMessageUnreadable:
		return "message could not be parsed"
	case WarningNoBody:
		return "message has no readable text part"
	case WarningStripFallback:
		return "quote stripping left nothing, keeping original body"
	case WarningOCRRequired:
		return "scan-only PDF, OCR required"
	case WarningExtractionFailed:
		return "attachment text extraction failed"
	default:
		return string(w.Kind)
	}
}
