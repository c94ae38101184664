package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/archive"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/filter"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/stats"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/timeline"
)

var ErrCancelled = errors.New("run cancelled, no output written")

type StageFunc func(context.Context) error

// Source streams threads into out and returns when the input is exhausted.
type Source interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

// Emitter writes the merged case timeline and returns the written paths.
type Emitter interface {
	Emit(ctx context.Context, tl *model.CaseTimeline) ([]string, error)
}

type Options struct {
	Source    Source
	Filter    *filter.Filter
	Assembler *timeline.Assembler
	Emitters  []Emitter
	Workers   int
}

type subscriber struct {
	name   string
	events chan stats.Event
	done   chan struct{}
}

type Runner struct {
	logger *slog.Logger

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	source    Source
	filter    *filter.Filter
	assembler *timeline.Assembler
	emitters  []Emitter
	workers   int

	threads chan model.Envelope
	results chan model.ThreadTimeline
	events  chan stats.Event

	subscribers []subscriber
	timeline    *model.CaseTimeline

	workWG     sync.WaitGroup
	assembleWG sync.WaitGroup
	statsWG    sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeThreadsOnce sync.Once
	closeResultsOnce sync.Once
	closeEventsOnce  sync.Once
	since            time.Time
}

// New prepares a run. Cancelling parent stops the run without output.
func New(parent context.Context, opts Options, logger *slog.Logger) (*Runner, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("runner needs a thread source")
	}
	if opts.Assembler == nil {
		return nil, fmt.Errorf("runner needs an assembler")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(parent)
	return &Runner{
		logger:    logger,
		parent:    parent,
		ctx:       ctx,
		cancel:    cancel,
		source:    opts.Source,
		filter:    opts.Filter,
		assembler: opts.Assembler,
		emitters:  opts.Emitters,
		workers:   opts.Workers,
		threads:   make(chan model.Envelope, 32),
		results:   make(chan model.ThreadTimeline, 32),
		events:    make(chan stats.Event, 128),
	}, nil
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

// Timeline returns the merged case timeline once Start has returned. It is
// nil when the run failed or was cancelled before the merge finished.
func (r *Runner) Timeline() *model.CaseTimeline {
	return r.timeline
}

func (r *Runner) EmitEvent(evt stats.Event) {
	r.events <- evt
}

// SubscribeStats registers fn to receive every stats event. Subscribers must
// be registered before Start. Their context outlives failures of the run so
// summaries stay complete.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	sub := subscriber{
		name:   name,
		events: make(chan stats.Event, 128),
		done:   make(chan struct{}),
	}
	r.subscribers = append(r.subscribers, sub)

	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		defer close(sub.done)
		if err := fn(context.WithoutCancel(r.ctx), sub.events); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

// Start runs the load, assemble and merge stages and blocks until all of
// them and every stats subscriber finished.
func (r *Runner) Start() error {
	r.since = time.Now()

	r.statsWG.Add(1)
	go r.dispatch()

	r.AddStage("load", r.load)
	r.assembleWG.Add(r.workers)
	for i := 0; i < r.workers; i++ {
		r.AddStage(fmt.Sprintf("assemble-%d", i), r.assemble)
	}
	go func() {
		r.assembleWG.Wait()
		r.closeResults()
	}()
	r.AddStage("merge", r.merge)

	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	r.cancel()

	r.errMu.Lock()
	err := r.err
	r.errMu.Unlock()
	if err == nil && r.parent.Err() != nil {
		err = ErrCancelled
	}

	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, stats.AttrError, err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration, "threads", r.timeline.Len(), "messages", r.timeline.MessageCount())
	return nil
}

func (r *Runner) dispatch() {
	defer r.statsWG.Done()
	defer func() {
		for _, sub := range r.subscribers {
			close(sub.events)
		}
	}()

	for evt := range r.events {
		for _, sub := range r.subscribers {
			select {
			case sub.events <- evt:
			case <-sub.done:
			}
		}
	}
}

func (r *Runner) load(ctx context.Context) error {
	defer r.closeThreads()
	return r.source.Stream(ctx, r.threads)
}

func (r *Runner) assemble(ctx context.Context) error {
	defer r.assembleWG.Done()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-r.threads:
			if !ok {
				return nil
			}

			tl, ok := r.process(envelope)
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.results <- tl:
			}
		}
	}
}

// process turns one envelope into a thread timeline. Problems with the
// envelope are reported as warnings and never fail the run.
func (r *Runner) process(envelope model.Envelope) (model.ThreadTimeline, bool) {
	if envelope.Err != nil {
		r.reject(envelope)
		return model.ThreadTimeline{}, false
	}

	thread := envelope.Thread
	r.EmitEvent(stats.Event{Stage: stats.StageLoad, Type: stats.EventTypeThreadLoaded, ThreadID: thread.ID})

	if !r.filter.Allows(thread) {
		r.logger.Debug("thread filtered", stats.AttrThread, thread.ID)
		r.EmitEvent(stats.Event{Stage: stats.StageAssemble, Type: stats.EventTypeThreadFiltered, ThreadID: thread.ID})
		return model.ThreadTimeline{}, false
	}

	tl := r.assembler.Assemble(thread)
	for _, w := range tl.Warnings {
		r.warn(w)
	}
	for _, m := range tl.Messages {
		r.EmitEvent(stats.Event{Stage: stats.StageAssemble, Type: stats.EventTypeMessage, ThreadID: tl.ID, MessageID: m.ID})
		if m.DuplicateOf != "" {
			r.EmitEvent(stats.Event{Stage: stats.StageAssemble, Type: stats.EventTypeDuplicate, ThreadID: tl.ID, MessageID: m.ID, Detail: m.DuplicateOf})
		}
		for _, a := range m.Attachments {
			r.EmitEvent(stats.Event{Stage: stats.StageAssemble, Type: stats.EventTypeAttachment, ThreadID: tl.ID, MessageID: m.ID, Status: a.Status, Detail: a.Filename})
		}
	}
	r.EmitEvent(stats.Event{Stage: stats.StageAssemble, Type: stats.EventTypeThreadAssembled, ThreadID: tl.ID})
	return tl, true
}

func (r *Runner) reject(envelope model.Envelope) {
	w := model.Warning{
		Kind:     model.WarningThreadUnparseable,
		Source:   envelope.Source,
		ThreadID: envelope.Thread.ID,
		Detail:   envelope.Err.Error(),
	}
	switch {
	case errors.Is(envelope.Err, archive.ErrNoMessages):
		w.Kind = model.WarningThreadEmpty
	case errors.Is(envelope.Err, model.ErrMessageUnreadable):
		w.Kind = model.WarningMessageUnreadable
	}
	r.warn(w)

	if w.Kind != model.WarningMessageUnreadable {
		r.EmitEvent(stats.Event{Stage: stats.StageLoad, Type: stats.EventTypeThreadFailed, ThreadID: w.ThreadID, Err: envelope.Err, Detail: envelope.Source})
	}
}

func (r *Runner) warn(w model.Warning) {
	r.logger.Warn(w.Message(), stats.WarningAttrs(w)...)
	r.EmitEvent(stats.Event{
		Stage:     stats.StageAssemble,
		Type:      stats.EventTypeWarning,
		ThreadID:  w.ThreadID,
		MessageID: w.MessageID,
		Detail:    string(w.Kind),
	})
}

// merge collects every thread timeline and, when the run is still clean,
// hands the merged case timeline to the emitters.
func (r *Runner) merge(ctx context.Context) error {
	var collected []model.ThreadTimeline
	for tl := range r.results {
		collected = append(collected, tl)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if r.failed() {
		return nil
	}

	r.timeline = timeline.Merge(collected)
	r.logger.Debug("timeline merged", "threads", r.timeline.Len(), "messages", r.timeline.MessageCount())
	r.EmitEvent(stats.Event{Stage: stats.StageMerge, Type: stats.EventTypeMerged, Count: r.timeline.Len()})

	for _, emitter := range r.emitters {
		paths, err := emitter.Emit(ctx, r.timeline)
		for _, path := range paths {
			r.EmitEvent(stats.Event{Stage: stats.StageEmit, Type: stats.EventTypeArtifact, Detail: path})
			r.logger.Info("artifact written", "path", path)
		}
		if err != nil {
			r.EmitEvent(stats.Event{Stage: stats.StageEmit, Type: stats.EventTypeError, Err: err})
			return fmt.Errorf("emit: %w", err)
		}
	}
	return nil
}

func (r *Runner) closeThreads() {
	r.closeThreadsOnce.Do(func() {
		close(r.threads)
	})
}

func (r *Runner) closeResults() {
	r.closeResultsOnce.Do(func() {
		close(r.results)
	})
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
}

func (r *Runner) failed() bool {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err != nil
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
