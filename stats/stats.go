package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

// Attribute keys shared by every log line that names an item.
const (
	AttrThread   = "thread"
	AttrMessage  = "message"
	AttrFilename = "filename"
	AttrWarning  = "warning"
	AttrError    = "error"
)

type Stage string

const (
	StageLoad     Stage = "load"
	StageAssemble Stage = "assemble"
	StageMerge    Stage = "merge"
	StageEmit     Stage = "emit"
)

type EventType string

const (
	EventTypeThreadLoaded    EventType = "thread_loaded"
	EventTypeThreadFiltered  EventType = "thread_filtered"
	EventTypeThreadFailed    EventType = "thread_failed"
	EventTypeThreadAssembled EventType = "thread_assembled"
	EventTypeMerged          EventType = "timeline_merged"
	EventTypeMessage         EventType = "message"
	EventTypeDuplicate       EventType = "duplicate"
	EventTypeAttachment      EventType = "attachment"
	EventTypeWarning         EventType = "warning"
	EventTypeArtifact        EventType = "artifact_written"
	EventTypeError           EventType = "error"
)

type Event struct {
	Stage     Stage
	Type      EventType
	ThreadID  string
	MessageID string
	Status    model.ExtractionStatus
	Err       error
	Detail    string
	// Count carries the thread count of a merged timeline.
	Count int
}

type Summary struct {
	ThreadsLoaded        int
	ThreadsFiltered      int
	ThreadsFailed        int
	ThreadsProcessed     int
	TimelineThreads      int
	Messages             int
	Duplicates           int
	AttachmentsExtracted int
	AttachmentsEmptyScan int
	AttachmentsFailed    int
	AttachmentsSkipped   int
	Warnings             int
	Artifacts            int
	Errors               int
	LastError            error
}

// Attachments returns the number of attachments seen in any status.
func (s Summary) Attachments() int {
	return s.AttachmentsExtracted + s.AttachmentsEmptyScan + s.AttachmentsFailed + s.AttachmentsSkipped
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"threadsLoaded", s.ThreadsLoaded,
		"threadsProcessed", s.ThreadsProcessed,
		"threadsFiltered", s.ThreadsFiltered,
		"threadsFailed", s.ThreadsFailed,
		"timelineThreads", s.TimelineThreads,
		"messages", s.Messages,
		"duplicates", s.Duplicates,
		"attachmentsExtracted", s.AttachmentsExtracted,
		"attachmentsEmptyScan", s.AttachmentsEmptyScan,
		"attachmentsFailed", s.AttachmentsFailed,
		"attachmentsSkipped", s.AttachmentsSkipped,
		"warnings", s.Warnings,
		"artifacts", s.Artifacts,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

// WarningAttrs returns the log attributes naming the item a warning is about.
func WarningAttrs(w model.Warning) []any {
	attrs := []any{AttrWarning, string(w.Kind)}
	if w.ThreadID != "" {
		attrs = append(attrs, AttrThread, w.ThreadID)
	}
	if w.MessageID != "" {
		attrs = append(attrs, AttrMessage, w.MessageID)
	}
	if w.Filename != "" {
		attrs = append(attrs, AttrFilename, w.Filename)
	}
	if w.Source != "" {
		attrs = append(attrs, "source", w.Source)
	}
	if w.Detail != "" {
		attrs = append(attrs, "detail", w.Detail)
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeThreadLoaded:
		c.summary.ThreadsLoaded++
	case EventTypeThreadFiltered:
		c.summary.ThreadsFiltered++
	case EventTypeThreadFailed:
		c.summary.ThreadsFailed++
	case EventTypeThreadAssembled:
		c.summary.ThreadsProcessed++
	case EventTypeMerged:
		c.summary.TimelineThreads = evt.Count
	case EventTypeMessage:
		c.summary.Messages++
	case EventTypeDuplicate:
		c.summary.Duplicates++
	case EventTypeAttachment:
		switch evt.Status {
		case model.StatusExtracted:
			c.summary.AttachmentsExtracted++
		case model.StatusEmptyScan:
			c.summary.AttachmentsEmptyScan++
		case model.StatusFailed:
			c.summary.AttachmentsFailed++
		case model.StatusSkipped:
			c.summary.AttachmentsSkipped++
		}
	case EventTypeWarning:
		c.summary.Warnings++
	case EventTypeArtifact:
		c.summary.Artifacts++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// Duration returns the time since the reporter was created.
func (r *Reporter) Duration() time.Duration {
	return time.Since(r.started)
}

// Pair is one entry of a frequency table.
type Pair struct {
	Key   string
	Value int
}

// Top returns the limit most frequent items, ties ordered by key.
func Top(m map[string]int, limit int) []Pair {
	pairs := make([]Pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	if limit >= 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	for i, p := range Top(m, limit) {
		fmt.Printf("%d. %s (%d)\n", i+1, p.Key, p.Value)
	}
}
