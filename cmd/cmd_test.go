package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/archive"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/config"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/filter"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

const estateThread = `{
  "id": "t1",
  "messages": [
    {
      "id": "m1", "threadId": "t1", "labelIds": ["Label_7"], "internalDate": "1700000000000",
      "payload": {
        "mimeType": "text/plain",
        "headers": [{"name": "From", "value": "Alice <alice@example.com>"}, {"name": "To", "value": "bob@example.com"}, {"name": "Subject", "value": "Estate"}],
        "body": {"data": "Hello, see attached. \n\n> On Mon, X wrote: old stuff"}
      }
    },
    {
      "id": "m2", "threadId": "t1", "labelIds": ["Label_7"], "internalDate": "1700000060000",
      "payload": {
        "mimeType": "text/plain",
        "headers": [{"name": "From", "value": "Bob <bob@example.com>"}, {"name": "To", "value": "alice@example.com"}, {"name": "Subject", "value": "Re: Estate"}],
        "body": {"data": "> On Mon, X wrote: old stuff\n\nThanks!"}
      }
    }
  ]
}`

const scanThread = `{
  "id": "t2",
  "messages": [
    {
      "id": "m3", "threadId": "t2", "labelIds": ["INBOX"], "internalDate": "1690000000000",
      "payload": {
        "mimeType": "multipart/mixed",
        "headers": [{"name": "From", "value": "court@example.com"}, {"name": "Subject", "value": "Scanned ruling"}],
        "parts": [
          {"partId": "0", "mimeType": "text/plain", "body": {"data": "Ruling attached."}},
          {"partId": "1", "mimeType": "application/pdf", "filename": "scan.pdf", "body": {"attachmentId": "A1", "size": 900}}
        ]
      }
    }
  ]
}`

func writeArchive(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	require.NoError(t, os.MkdirAll(raw, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "t1.json"), []byte(estateThread), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "t2.json"), []byte(scanThread), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "broken.json"), []byte(`{"id": "t3", "messages": [`), 0o644))

	return config.Config{
		ArchiveDir:     root,
		RawDir:         raw,
		AttachmentsDir: filepath.Join(root, "attachments"),
		OutputDir:      filepath.Join(root, "output"),
		Workers:        1,
		ForwardRestore: true,
		LogLevel:       "info",
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestRenderThread(t *testing.T) {
	ts := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	tl := model.ThreadTimeline{
		ID:      "t1",
		Labels:  []string{"Label_7"},
		Subject: "Estate",
		Messages: []model.CleanedMessage{
			{ID: "m1", Timestamp: ts, Sender: "alice@example.com", To: "bob@example.com", Body: "Hello, see attached.", Duplicates: []string{"m2"}},
			{ID: "m2", Timestamp: ts.Add(time.Minute), Sender: "bob@example.com", DuplicateOf: "m1"},
			{ID: "m3", Timestamp: ts.Add(2 * time.Minute), Sender: "bob@example.com", Attachments: []model.AttachmentExtraction{
				{Filename: "scan.pdf", Status: model.StatusEmptyScan, Pages: 3},
				{Filename: "deed.pdf", Status: model.StatusExtracted, Pages: 1, Text: "deed"},
			}},
		},
		Warnings: []model.Warning{{Kind: model.WarningOCRRequired, ThreadID: "t1", MessageID: "m3", Filename: "scan.pdf"}},
	}

	out := RenderThread(tl)
	for _, want := range []string{
		"Estate",
		"thread t1 · 3 messages · Label_7",
		"2023-11-14T22:13:20.000Z  alice@example.com",
		"to bob@example.com",
		"Hello, see attached.",
		"(same text as m1)",
		"(no text)",
		"[scan]",
		"scan.pdf",
		"(3 pages)",
		"[text]",
		"deed.pdf",
		"! scan.pdf: scan-only PDF, OCR required",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderThreadWithoutSubject(t *testing.T) {
	out := RenderThread(model.ThreadTimeline{ID: "t9"})
	assert.Contains(t, out, "(no subject)")
	assert.Contains(t, out, "thread t9 · 0 messages")
}

func TestCountArchive(t *testing.T) {
	cfg := writeArchive(t)
	source, err := archive.NewReader(archive.Options{RawDir: cfg.RawDir}, discard())
	require.NoError(t, err)

	counts, err := CountArchive(context.Background(), source, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, counts.Threads)
	assert.Equal(t, 3, counts.Messages)
	assert.Equal(t, 0, counts.Skipped)
	assert.Equal(t, 1, counts.Rejected)
	assert.Equal(t, 1, counts.Counter["From"]["alice@example.com"])
	assert.Equal(t, 1, counts.Counter["From"]["court@example.com"])
	assert.Equal(t, 1, counts.Counter["To"]["bob@example.com"])
	assert.Equal(t, 1, counts.Counter["Label"]["INBOX"])
	assert.Equal(t, 1, counts.Counter["Attachment-Type"]["application/pdf"])
	assert.Equal(t, 3, counts.Counter["Year"]["2023"])
}

func TestCountArchiveFiltered(t *testing.T) {
	cfg := writeArchive(t)
	source, err := archive.NewReader(archive.Options{RawDir: cfg.RawDir}, discard())
	require.NoError(t, err)
	flt, err := filter.New(filter.Options{ExcludeLabel: []string{"inbox"}})
	require.NoError(t, err)

	counts, err := CountArchive(context.Background(), source, flt)
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Threads)
	assert.Equal(t, 1, counts.Skipped)
	assert.Empty(t, counts.Counter["Attachment-Type"])
}

func TestSaveCSVReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	counter := map[string]map[string]int{
		"From":            {"a@example.com": 1, "b@example.com": 3},
		"Attachment-Type": {"application/pdf": 2},
	}

	require.NoError(t, SaveCSVReports(counter, []string{"From", "Attachment-Type"}, dir, 10))

	data, err := os.ReadFile(filepath.Join(dir, "report_from.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Value,Count\nb@example.com,3\na@example.com,1\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "report_attachment_type.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Value,Count\napplication/pdf,2\n", string(data))
}

func TestPipelineThread(t *testing.T) {
	cfg := writeArchive(t)
	p, err := NewPipeline(cfg, discard())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, p.Close())
	}()
	assert.Equal(t, 3, p.Total)

	tl, err := p.Thread(context.Background(), cfg, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Estate", tl.Subject)
	require.Len(t, tl.Messages, 2)
	assert.Equal(t, "Hello, see attached.", tl.Messages[0].Body)
	assert.Equal(t, "Thanks!", tl.Messages[1].Body)

	_, err = p.Thread(context.Background(), cfg, "missing")
	assert.Error(t, err)
}

func TestPipelineCache(t *testing.T) {
	cfg := writeArchive(t)
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")

	p, err := NewPipeline(cfg, discard())
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = os.Stat(cfg.CacheDir)
	assert.NoError(t, err)
}

func TestSetupLoggerWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, cleanup, err := SetupLogger(config.Config{LogLevel: "debug", LogDir: dir})
	require.NoError(t, err)

	logger.Debug("hello from the run")
	require.NoError(t, cleanup())

	matches, err := filepath.Glob(filepath.Join(dir, "mailtimeline-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the run")
	assert.Contains(t, string(data), "run_id=")
}
