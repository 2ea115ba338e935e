package logbook

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journey.log")
	book, err := New(path, "info")
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	t.Cleanup(func() { _ = book.Close() })
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestLevelFiltersEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journey.log")
	book, err := New(path, "warn")
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	t.Cleanup(func() { _ = book.Close() })
	book.Debug("noise")
	book.Info("chatter")
	book.Error("bed service down")
	lines, total := book.Tail(10)
	if total != 1 {
		t.Fatalf("expected only the error entry, got %d: %v", total, lines)
	}
	if !strings.Contains(lines[0], "ERROR") || !strings.Contains(lines[0], "bed service down") {
		t.Fatalf("unexpected line %q", lines[0])
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Tail(5); lines != nil || total != 0 {
		t.Fatalf("nil logbook must have no lines")
	}
	if book.Logger() == nil {
		t.Fatalf("nil logbook must still hand out a logger")
	}
	if err := book.Close(); err != nil {
		t.Fatalf("close nil logbook: %v", err)
	}
}

func TestLoggerOutlivesClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journey.log")
	book, err := New(path, "info")
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	logger := book.Logger()
	logger.Info("before close")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			book.Logger().Info("racing close")
		}
	}()
	if err := book.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()

	logger.Info("after close")
	if book.Logger() != logger {
		t.Fatalf("close must not swap the logger")
	}
	if err := book.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	lines, _ := book.Tail(100)
	if len(lines) == 0 || !strings.Contains(lines[0], "before close") {
		t.Fatalf("expected entries written before close, got %v", lines)
	}
	for _, line := range lines {
		if strings.Contains(line, "after close") {
			t.Fatalf("entries after close must be dropped: %q", line)
		}
	}
}
