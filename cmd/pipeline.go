package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/archive"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/config"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/extract"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/filter"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/mbox"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/quote"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/runner"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/state"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/stats"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/timeline"
)

// Pipeline holds the components every command builds from the same flags.
type Pipeline struct {
	Source    runner.Source
	Filter    *filter.Filter
	Assembler *timeline.Assembler
	// Total is the number of threads to expect, 0 when unknown.
	Total int

	cache  *state.FileCache
	logger *slog.Logger
}

// NewPipeline wires the loader, filter, stripper, extractor and assembler
// described by cfg.
func NewPipeline(cfg config.Config, logger *slog.Logger) (*Pipeline, error) {
	p := &Pipeline{logger: logger}

	var locator timeline.Locator
	if cfg.UsesMbox() {
		source, err := mbox.NewReader(mbox.Options{Path: cfg.MboxPath}, logger)
		if err != nil {
			return nil, fmt.Errorf("mbox.NewReader: %w", err)
		}
		p.Source = source
		locator = mbox.InlineLocator{}
	} else {
		source, err := archive.NewReader(archive.Options{RawDir: cfg.RawDir}, logger)
		if err != nil {
			return nil, fmt.Errorf("archive.NewReader: %w", err)
		}
		p.Source = source
		locator = archive.DiskLocator{Root: cfg.AttachmentsDir}
		if total, err := archive.Count(cfg.RawDir); err == nil {
			p.Total = total
		}
	}

	flt, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		ExcludeHeader: cfg.ExcludeHeader,
		IncludeLabel:  cfg.IncludeLabel,
		ExcludeLabel:  cfg.ExcludeLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("create filter: %w", err)
	}
	p.Filter = flt

	stripper, err := quote.New(quote.Options{Languages: cfg.Languages, ExtraHeaders: cfg.QuoteHeaders})
	if err != nil {
		return nil, fmt.Errorf("create quote stripper: %w", err)
	}

	var cache extract.Cache
	if cfg.CacheDir != "" {
		fileCache, err := state.NewFileCache(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("extraction cache: %w", err)
		}
		p.cache = fileCache
		cache = fileCache
		logger.Debug("extraction cache loaded", "path", fileCache.Path(), "entries", fileCache.Snapshot().Entries)
	}

	p.Assembler = timeline.New(timeline.Options{
		Stripper:       stripper,
		Locator:        locator,
		Extractor:      extract.New(cache, logger),
		ForwardRestore: cfg.ForwardRestore,
	})
	return p, nil
}

// Thread loads and assembles a single thread. Warnings are logged.
func (p *Pipeline) Thread(ctx context.Context, cfg config.Config, id string) (model.ThreadTimeline, error) {
	var (
		thread model.ThreadRecord
		err    error
	)
	if cfg.UsesMbox() {
		thread, err = p.findThread(ctx, id)
	} else {
		thread, err = archive.ReadThread(filepath.Join(cfg.RawDir, id+".json"))
	}
	if err != nil {
		return model.ThreadTimeline{}, err
	}

	tl := p.Assembler.Assemble(thread)
	for _, w := range tl.Warnings {
		p.logger.Warn(w.Message(), stats.WarningAttrs(w)...)
	}
	return tl, nil
}

var errThreadNotFound = errors.New("thread not found")

func (p *Pipeline) findThread(ctx context.Context, id string) (model.ThreadRecord, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan model.Envelope)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		errCh <- p.Source.Stream(ctx, out)
	}()

	for env := range out {
		if env.Err == nil && env.Thread.ID == id {
			return env.Thread, nil
		}
	}
	if err := <-errCh; err != nil {
		return model.ThreadRecord{}, err
	}
	return model.ThreadRecord{}, fmt.Errorf("%s: %w", id, errThreadNotFound)
}

// Close flushes the extraction cache.
func (p *Pipeline) Close() error {
	if p.cache == nil {
		return nil
	}
	snap := p.cache.Snapshot()
	p.logger.Debug("extraction cache closed", "entries", snap.Entries, "hits", snap.Hits, "skipped", snap.Skipped)
	return p.cache.Close()
}

// SetupLogger builds the run logger: a text handler on stderr, mirrored into
// a timestamped file when a log directory is configured. Every record
// carries the run id.
func SetupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }
	runID := uuid.NewString()

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("mailtimeline-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler).With("run_id", runID), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler).With("run_id", runID), cleanup, nil
}
