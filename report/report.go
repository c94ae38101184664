// Package report renders the case timeline into its output artifacts and
// writes them atomically.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

const (
	JSONFile            = "case_timelines.json"
	CSVFile             = "messages_timeline.csv"
	LLMTranscriptFile   = "transcript_llm.txt"
	HumanTranscriptFile = "transcript_human.txt"

	// TimestampLayout renders timestamps in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

type Options struct {
	Dir         string
	Transcripts bool
}

// Writer emits the artifacts of a run into one directory.
type Writer struct {
	dir         string
	transcripts bool
	logger      *slog.Logger
}

func New(opts Options, logger *slog.Logger) (*Writer, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Writer{dir: dir, transcripts: opts.Transcripts, logger: logger}, nil
}

type artifact struct {
	name string
	data []byte
}

// render produces every artifact in memory.
func (w *Writer) render(tl *model.CaseTimeline) ([]artifact, error) {
	jsonData, err := RenderJSON(tl)
	if err != nil {
		return nil, err
	}
	csvData, err := RenderCSV(tl)
	if err != nil {
		return nil, err
	}
	artifacts := []artifact{
		{name: JSONFile, data: jsonData},
		{name: CSVFile, data: csvData},
	}
	if w.transcripts {
		artifacts = append(artifacts,
			artifact{name: LLMTranscriptFile, data: RenderLLMTranscript(tl)},
			artifact{name: HumanTranscriptFile, data: RenderHumanTranscript(tl)},
		)
	}
	return artifacts, nil
}

// Emit renders and writes all artifacts. Every artifact is staged in a temp
// file first; the final paths are only replaced once all of them were
// staged and ctx is still live. It returns the written paths.
func (w *Writer) Emit(ctx context.Context, tl *model.CaseTimeline) ([]string, error) {
	artifacts, err := w.render(tl)
	if err != nil {
		return nil, err
	}

	temps := make([]string, 0, len(artifacts))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}

	for _, a := range artifacts {
		tmp, err := stage(w.dir, a.name, a.data)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("write %s: %w", a.name, err)
		}
		temps = append(temps, tmp)
	}

	if err := ctx.Err(); err != nil {
		cleanup()
		return nil, err
	}

	paths := make([]string, 0, len(artifacts))
	for i, a := range artifacts {
		final := filepath.Join(w.dir, a.name)
		if err := os.Rename(temps[i], final); err != nil {
			cleanup()
			return paths, fmt.Errorf("rename %s: %w", a.name, err)
		}
		temps[i] = ""
		paths = append(paths, final)
		w.logger.Debug("artifact written", "path", final, "bytes", len(a.data))
	}
	return paths, nil
}

// WriteFileAtomic replaces path with data through a temp file in the same
// directory.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := stage(filepath.Dir(path), filepath.Base(path), data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func stage(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Sync()
	}
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	return tmp, nil
}

// FormatTimestamp renders t for the artifacts. The zero time renders empty.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}
