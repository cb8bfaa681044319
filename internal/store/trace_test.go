package store

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestTraceWriteAndRead(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	entries := []TraceEntry{
		{Pair: 0, Score: 0.5, Keyframe: false, Timestamp: time.Now()},
		{Pair: 1, Score: 25.0, Keyframe: true, Timestamp: time.Now()},
		{Pair: 2, Score: 0.0, Keyframe: false, Timestamp: time.Now()},
	}
	for _, e := range entries {
		if err := tw.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("ReadAll returned %d entries, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if got[i].Pair != e.Pair {
			t.Errorf("entry %d: Pair = %d, want %d", i, got[i].Pair, e.Pair)
		}
		if got[i].Score != e.Score {
			t.Errorf("entry %d: Score = %v, want %v", i, got[i].Score, e.Score)
		}
		if got[i].Keyframe != e.Keyframe {
			t.Errorf("entry %d: Keyframe = %v, want %v", i, got[i].Keyframe, e.Keyframe)
		}
	}
}

func TestTraceSentinelScore(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	if err := tw.Write(TraceEntry{Pair: 0, Score: math.MaxFloat64, Keyframe: true, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entry, err := tr.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if entry.Score != math.MaxFloat64 {
		t.Errorf("Score = %v, want MaxFloat64", entry.Score)
	}
}

func TestTraceReaderEOF(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	if _, err := tr.Read(); err != io.EOF {
		t.Errorf("Read on empty trace = %v, want io.EOF", err)
	}
}

func TestTraceReaderNotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTraceWriterAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.jsonl")

	tw, err := NewTraceWriterAt(path)
	if err != nil {
		t.Fatalf("NewTraceWriterAt failed: %v", err)
	}
	if tw.Path() != path {
		t.Errorf("Path() = %q, want %q", tw.Path(), path)
	}
	if err := tw.Write(TraceEntry{Pair: 0, Score: 1.5, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read trace: %v", err)
	}
	if len(data) == 0 {
		t.Error("Trace file should not be empty")
	}
}

func TestTraceFlushMakesDataVisible(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	defer tw.Close()

	if err := tw.Write(TraceEntry{Pair: 0, Score: 1.0, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry after flush, got %d", len(entries))
	}
}

func TestTraceConcurrentWrites(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	const goroutines = 10
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				entry := TraceEntry{
					Pair:      g*perGoroutine + i,
					Score:     float64(i),
					Timestamp: time.Now(),
				}
				if err := tw.Write(entry); err != nil {
					t.Errorf("Write failed: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != goroutines*perGoroutine {
		t.Errorf("Expected %d entries, got %d", goroutines*perGoroutine, len(entries))
	}
}

func TestDeleteTrace(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	if err := tw.Write(TraceEntry{Pair: 0, Score: 1.0, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := DeleteTrace(baseDir, "job-1"); err != nil {
		t.Fatalf("DeleteTrace failed: %v", err)
	}
	if _, err := NewTraceReader(baseDir, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing trace is not an error.
	if err := DeleteTrace(baseDir, "job-1"); err != nil {
		t.Errorf("DeleteTrace on missing file = %v, want nil", err)
	}
}

func BenchmarkTraceWrite(b *testing.B) {
	tw, err := NewTraceWriterAt(filepath.Join(b.TempDir(), "bench.jsonl"))
	if err != nil {
		b.Fatalf("NewTraceWriterAt failed: %v", err)
	}
	defer tw.Close()

	entry := TraceEntry{Pair: 1, Score: 2.5, Keyframe: true, Timestamp: time.Now()}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		entry.Pair = i
		if err := tw.Write(entry); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
	}
}
