// Package state keeps PDF extraction results between runs, keyed by the
// SHA-256 of the attachment content.
package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

const cacheFile = "extractions.jsonl"

type Snapshot struct {
	Entries int
	Hits    int64
	Skipped int
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]model.AttachmentExtraction
	hits    atomic.Int64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]model.AttachmentExtraction)}
}

func (m *MemoryCache) Lookup(key string) (model.AttachmentExtraction, bool) {
	if key == "" {
		return model.AttachmentExtraction{}, false
	}

	m.mu.RLock()
	result, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		m.hits.Add(1)
	}
	return result, ok
}

func (m *MemoryCache) Store(key string, result model.AttachmentExtraction) error {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	m.entries[key] = result
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Snapshot() Snapshot {
	m.mu.RLock()
	count := len(m.entries)
	m.mu.RUnlock()
	return Snapshot{Entries: count, Hits: m.hits.Load()}
}

// FileCache persists extraction results so later runs can reuse them.
type FileCache struct {
	*MemoryCache
	path    string
	skipped int
	writer  *bufio.Writer
	file    *os.File
	writeMu sync.Mutex
}

type fileRecord struct {
	Key       string                 `json:"key"`
	Status    model.ExtractionStatus `json:"status"`
	Pages     int                    `json:"pages,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Filename  string                 `json:"filename,omitempty"`
	MediaType string                 `json:"media_type,omitempty"`
}

func NewFileCache(cacheDir string) (*FileCache, error) {
	if strings.TrimSpace(cacheDir) == "" {
		return nil, fmt.Errorf("cache directory is empty")
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	cache := &FileCache{
		MemoryCache: NewMemoryCache(),
		path:        filepath.Join(cacheDir, cacheFile),
	}

	if err := cache.load(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(cache.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open cache file for append: %w", err)
	}
	cache.file = file
	cache.writer = bufio.NewWriterSize(file, 64*1024) // 64KB buffer

	if torn, err := missingFinalNewline(cache.path); err != nil {
		file.Close()
		return nil, err
	} else if torn {
		if err := cache.writer.WriteByte('\n'); err != nil {
			file.Close()
			return nil, fmt.Errorf("terminate torn cache line: %w", err)
		}
	}

	return cache, nil
}

func missingFinalNewline(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open cache file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat cache file: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read cache file: %w", err)
	}
	return last[0] != '\n', nil
}

func (f *FileCache) load() error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		// A torn final line from an interrupted run is skipped, not fatal.
		var record fileRecord
		if err := json.Unmarshal(text, &record); err != nil || record.Key == "" {
			f.skipped++
			continue
		}

		f.mu.Lock()
		f.entries[record.Key] = model.AttachmentExtraction{
			Filename:  record.Filename,
			MediaType: record.MediaType,
			Status:    record.Status,
			Pages:     record.Pages,
			Text:      record.Text,
			Error:     record.Error,
		}
		f.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read cache file: %w", err)
	}

	return nil
}

func (f *FileCache) Store(key string, result model.AttachmentExtraction) error {
	if key == "" {
		return nil
	}

	f.mu.Lock()
	if _, exists := f.entries[key]; exists {
		f.mu.Unlock()
		return nil
	}
	f.entries[key] = result
	f.mu.Unlock()

	record := fileRecord{
		Key:       key,
		Status:    result.Status,
		Pages:     result.Pages,
		Text:      result.Text,
		Error:     result.Error,
		Filename:  result.Filename,
		MediaType: result.MediaType,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if _, err := f.writer.Write(data); err != nil {
		return fmt.Errorf("write cache record: %w", err)
	}
	if err := f.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	return nil
}

func (f *FileCache) Snapshot() Snapshot {
	snap := f.MemoryCache.Snapshot()
	snap.Skipped = f.skipped
	return snap
}

// Path returns the location of the cache file.
func (f *FileCache) Path() string {
	return f.path
}

// Close flushes and closes the cache file.
func (f *FileCache) Close() error {
	if f.file == nil {
		return nil
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	var firstErr error
	if f.writer != nil {
		if err := f.writer.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush cache file: %w", err)
		}
	}
	if err := f.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync cache file: %w", err)
	}
	if err := f.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close cache file: %w", err)
	}
	f.file = nil
	f.writer = nil

	return firstErr
}
