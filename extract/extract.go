// Package extract pulls the text layer out of PDF attachments and
// classifies the outcome.
package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

var ErrNotPDF = errors.New("attachment is not a PDF")

const pageMarker = "--- page %d ---"

// headerWindow is how far into the file the %PDF- marker may start.
const headerWindow = 1024

// Cache stores extraction results by content key.
type Cache interface {
	Lookup(key string) (model.AttachmentExtraction, bool)
	Store(key string, result model.AttachmentExtraction) error
}

// Extractor turns attachment references into extraction results. It is safe
// for concurrent use when its cache is.
type Extractor struct {
	cache  Cache
	logger *slog.Logger
}

// New returns an Extractor. cache and logger may be nil.
func New(cache Cache, logger *slog.Logger) *Extractor {
	return &Extractor{cache: cache, logger: logger}
}

// Extract processes one attachment. It never returns an error: problems are
// reported through the result's status.
func (e *Extractor) Extract(ref model.AttachmentRef) model.AttachmentExtraction {
	result := model.AttachmentExtraction{
		Filename:  ref.Filename,
		MediaType: ref.MediaType,
	}
	if !IsPDF(ref) {
		result.Status = model.StatusSkipped
		return result
	}

	data, err := load(ref)
	if err != nil {
		result.Status = model.StatusFailed
		result.Error = err.Error()
		return result
	}

	key := ContentKey(data)
	if e.cache != nil {
		if cached, ok := e.cache.Lookup(key); ok {
			cached.Filename = result.Filename
			cached.MediaType = result.MediaType
			return cached
		}
	}

	text, pages, err := PDFText(data)
	result.Pages = pages
	result.Status = Classify(text, err)
	switch result.Status {
	case model.StatusExtracted:
		result.Text = text
		if err != nil {
			result.Error = err.Error()
		}
	case model.StatusFailed:
		result.Error = err.Error()
	}

	if e.cache != nil {
		if err := e.cache.Store(key, result); err != nil && e.logger != nil {
			e.logger.Warn("store extraction in cache", "filename", ref.Filename, "error", err)
		}
	}
	return result
}

// IsPDF reports whether ref is declared as, or named like, a PDF.
func IsPDF(ref model.AttachmentRef) bool {
	switch strings.ToLower(strings.TrimSpace(ref.MediaType)) {
	case "application/pdf", "application/x-pdf":
		return true
	}
	return strings.EqualFold(filepath.Ext(ref.Filename), ".pdf") ||
		(ref.Path != "" && strings.EqualFold(filepath.Ext(ref.Path), ".pdf"))
}

// Classify maps extracted text and the extraction error to a status. Text
// wins over page errors; without text an error means failure and no error
// means a scan-only document.
func Classify(text string, err error) model.ExtractionStatus {
	switch {
	case strings.TrimSpace(text) != "":
		return model.StatusExtracted
	case err != nil:
		return model.StatusFailed
	default:
		return model.StatusEmptyScan
	}
}

// ContentKey identifies attachment content independent of its name.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PDFText extracts the text of every page. Pages with text are joined with
// page markers; pages without text contribute nothing. Errors of single
// pages are collected and returned alongside whatever text was found.
func PDFText(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	if !bytes.Contains(data[:min(len(data), headerWindow)], []byte("%PDF-")) {
		return "", 0, fmt.Errorf("%w: no %%PDF- header", ErrNotPDF)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages = reader.NumPage()
	var b strings.Builder
	var pageErrs []error
	for i := 1; i <= pages; i++ {
		content, err := pageText(reader, i)
		if err != nil {
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %w", i, err))
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, pageMarker, i)
		b.WriteString("\n\n")
		b.WriteString(content)
	}
	return b.String(), pages, errors.Join(pageErrs...)
}

func pageText(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("panic: %v", r)
		}
	}()
	page := reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func load(ref model.AttachmentRef) ([]byte, error) {
	if ref.Data != nil {
		return ref.Data, nil
	}
	if ref.Path == "" {
		return nil, fmt.Errorf("attachment %s has no content", ref.Filename)
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return data, nil
}
