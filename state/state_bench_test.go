package state

import (
	"fmt"
	"os"
	"testing"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

var benchResult = model.AttachmentExtraction{
	Filename: "deed.pdf",
	Status:   model.StatusExtracted,
	Pages:    2,
	Text:     "--- page 1 ---\n\nDeed of estate\n\n--- page 2 ---\n\nSigned",
}

// BenchmarkFileCache_Store benchmarks the cache write performance
func BenchmarkFileCache_Store(b *testing.B) {
	tmpDir, err := os.MkdirTemp("", "state-bench-*")
	if err != nil {
		b.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cache, err := NewFileCache(tmpDir)
	if err != nil {
		b.Fatal(err)
	}
	defer cache.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := cache.Store(fmt.Sprintf("key-%d", i), benchResult); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()

	if err := cache.Close(); err != nil {
		b.Fatal(err)
	}
}

// BenchmarkFileCache_Lookup benchmarks lookup performance
func BenchmarkFileCache_Lookup(b *testing.B) {
	tmpDir, err := os.MkdirTemp("", "state-bench-*")
	if err != nil {
		b.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cache, err := NewFileCache(tmpDir)
	if err != nil {
		b.Fatal(err)
	}
	defer cache.Close()

	// Pre-populate with 1000 entries
	for i := 0; i < 1000; i++ {
		if err := cache.Store(fmt.Sprintf("key-%d", i), benchResult); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cache.Lookup(fmt.Sprintf("key-%d", i%1000))
	}
}

// BenchmarkFileCache_Load benchmarks the cache file loading performance
func BenchmarkFileCache_Load(b *testing.B) {
	tmpDir, err := os.MkdirTemp("", "state-bench-*")
	if err != nil {
		b.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	// Create initial cache and populate with 10000 entries
	cache, err := NewFileCache(tmpDir)
	if err != nil {
		b.Fatal(err)
	}

	for i := 0; i < 10000; i++ {
		if err := cache.Store(fmt.Sprintf("key-%d", i), benchResult); err != nil {
			b.Fatal(err)
		}
	}

	if err := cache.Close(); err != nil {
		b.Fatal(err)
	}

	// Now benchmark loading
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache, err := NewFileCache(tmpDir)
		if err != nil {
			b.Fatal(err)
		}
		cache.Close()
	}
}

// BenchmarkMemoryCache_Store benchmarks in-memory cache for comparison
func BenchmarkMemoryCache_Store(b *testing.B) {
	cache := NewMemoryCache()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := cache.Store(fmt.Sprintf("key-%d", i), benchResult); err != nil {
			b.Fatal(err)
		}
	}
}
