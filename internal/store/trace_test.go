package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/lahc"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	dir := t.TempDir()

	writer, err := NewTraceWriter(dir, "job-trace", false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	entries := []TraceEntry{
		{Step: 100, Energy: 9, BestEnergy: 9, AcceptanceRate: 0.9, Timestamp: time.Now()},
		{Step: 200, Energy: 5, BestEnergy: 4, AcceptanceRate: 0.7, Timestamp: time.Now()},
		{Step: 300, Energy: 4, BestEnergy: 1, AcceptanceRate: 0.5, Timestamp: time.Now()},
	}
	for _, e := range entries {
		if err := writer.Write(e); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	if writer.Path() != filepath.Join(dir, "jobs", "job-trace", "trace.jsonl") {
		t.Errorf("unexpected path %s", writer.Path())
	}

	got, err := ReadTrace(dir, "job-trace")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i := range got {
		if got[i].Step != entries[i].Step || got[i].BestEnergy != entries[i].BestEnergy {
			t.Errorf("entry %d mismatch: %+v", i, got[i])
		}
	}
}

func TestTraceWriter_AppendAndTruncate(t *testing.T) {
	dir := t.TempDir()

	write := func(appendMode bool, steps ...int) {
		t.Helper()
		w, err := NewTraceWriter(dir, "job", appendMode)
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range steps {
			if err := w.Write(TraceEntry{Step: s}); err != nil {
				t.Fatal(err)
			}
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}

	write(false, 1, 2)
	write(true, 3)

	got, err := ReadTrace(dir, "job")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2].Step != 3 {
		t.Fatalf("expected appended trace of 3 entries, got %+v", got)
	}

	write(false, 10)
	got, err = ReadTrace(dir, "job")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Step != 10 {
		t.Fatalf("expected truncated trace, got %+v", got)
	}
}

func TestTraceWriter_FlushMakesEntriesVisible(t *testing.T) {
	dir := t.TempDir()
	w, err := NewTraceWriter(dir, "job", false)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.Write(TraceEntry{Step: 1})
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got, err := ReadTrace(dir, "job")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 flushed entry, got %d", len(got))
	}
}

func TestTraceWriter_Concurrent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewTraceWriter(dir, "job", false)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				w.Write(TraceEntry{Step: g*50 + i})
			}
		}(g)
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ReadTrace(dir, "job")
	if err != nil {
		t.Fatalf("interleaved lines should stay parseable: %v", err)
	}
	if len(got) != 400 {
		t.Errorf("expected 400 entries, got %d", len(got))
	}
}

func TestTraceReader_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewTraceReader(dir, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	path := filepath.Join(dir, "jobs", "bad", "trace.jsonl")
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte("{\"step\":1}\nnot json\n"), 0644)

	r, err := NewTraceReader(dir, "bad")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if e, err := r.Read(); err != nil || e.Step != 1 {
		t.Fatalf("expected first entry, got %v %v", e, err)
	}
	if _, err := r.Read(); err == nil || err == io.EOF {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestDeleteTrace(t *testing.T) {
	dir := t.TempDir()

	if err := DeleteTrace(dir, "never"); err != nil {
		t.Errorf("deleting a missing trace should succeed: %v", err)
	}

	w, _ := NewTraceWriter(dir, "job", false)
	w.Close()
	if err := DeleteTrace(dir, "job"); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTraceReader(dir, "job"); !errors.Is(err, ErrNotFound) {
		t.Error("trace should be gone")
	}
}

func TestEntryFromStats(t *testing.T) {
	e := EntryFromStats(lahc.Stats{Step: 42, CurrentEnergy: 3, BestEnergy: 2, AcceptanceRate: 0.25})
	if e.Step != 42 || e.Energy != 3 || e.BestEnergy != 2 || e.AcceptanceRate != 0.25 {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}
