package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cam-andersen/InventorySystemV3/internal/config"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	cfg := config.LoadBaseline().Audit
	cfg.Dir = filepath.Join(t.TempDir(), "audit")

	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func readEntries(t *testing.T, path string) []AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestNewLoggerCreatesFile(t *testing.T) {
	l := newTestLogger(t)

	if filepath.Base(l.GetFilePath()) != FileName {
		t.Errorf("Expected %s, got %s", FileName, l.GetFilePath())
	}
	if _, err := os.Stat(l.GetFilePath()); err != nil {
		t.Errorf("audit file should exist: %v", err)
	}
}

func TestNewLoggerUnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain-file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := config.LoadBaseline().Audit
	cfg.Dir = filepath.Join(file, "sub")

	if _, err := NewLogger(cfg); err == nil {
		t.Error("expected error for a directory under a regular file")
	}
}

func TestLogAction(t *testing.T) {
	l := newTestLogger(t)
	fixed := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	ctx := WithActor(context.Background(), "operator-1")
	ctx = WithParams(ctx, map[string]interface{}{"lines": 3})
	l.LogAction(ctx, "dispatch", "order-42", "SUCCESS", 1500*time.Millisecond)

	entries := readEntries(t, l.GetFilePath())
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.User != "operator-1" || e.OrderID != "order-42" || e.Action != "dispatch" {
		t.Errorf("Unexpected entry %+v", e)
	}
	if e.Code != "SUCCESS" || e.LatencyMs != 1500 {
		t.Errorf("Unexpected code/latency %s/%d", e.Code, e.LatencyMs)
	}
	if !e.Timestamp.Equal(fixed) {
		t.Errorf("Expected timestamp %v, got %v", fixed, e.Timestamp)
	}
	if e.Params["lines"] != float64(3) {
		t.Errorf("params not recorded: %v", e.Params)
	}
}

func TestLogActionDefaultsToSystem(t *testing.T) {
	l := newTestLogger(t)
	l.LogAction(context.Background(), "dispatch", "", "NO_WORK", 0)

	e := readEntries(t, l.GetFilePath())[0]
	if e.User != "system" {
		t.Errorf("Expected system user, got %s", e.User)
	}
	if e.Code != "NO_WORK" {
		t.Errorf("Expected NO_WORK, got %s", e.Code)
	}
}

func TestLogOrderActionWithError(t *testing.T) {
	l := newTestLogger(t)
	l.LogOrderAction(context.Background(), "pick", "order-1",
		map[string]interface{}{"location": 2},
		errors.New("UNAVAILABLE (robot: connection refused)"))

	e := readEntries(t, l.GetFilePath())[0]
	if e.Outcome != "ERROR" || e.Code != "UNAVAILABLE" {
		t.Errorf("Unexpected outcome/code %s/%s", e.Outcome, e.Code)
	}
}

func TestCodeFromError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "SUCCESS"},
		{errors.New("INVALID_LOCATION: location 4 must be in 1..3"), "INVALID_LOCATION"},
		{errors.New("TIMEOUT (robot: i/o timeout)"), "TIMEOUT"},
		{errors.New("BUSY"), "BUSY"},
		{errors.New("something else"), "ERROR"},
	}
	for _, tt := range tests {
		if got := CodeFromError(tt.err); got != tt.want {
			t.Errorf("CodeFromError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestCodeFromResult(t *testing.T) {
	for result, want := range map[string]string{
		"SUCCESS":  "SUCCESS",
		"PARTIAL":  "PARTIAL",
		"TIMEOUT":  "TIMEOUT",
		"whatever": "UNKNOWN",
	} {
		if got := codeFromResult(result); got != want {
			t.Errorf("codeFromResult(%s) = %s, want %s", result, got, want)
		}
	}
}

func TestRotate(t *testing.T) {
	l := newTestLogger(t)
	l.LogAction(context.Background(), "queue", "a", "SUCCESS", 0)

	if err := l.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	l.LogAction(context.Background(), "queue", "b", "SUCCESS", 0)

	entries := readEntries(t, l.GetFilePath())
	if len(entries) != 1 || entries[0].OrderID != "b" {
		t.Errorf("current file should only hold the post-rotation entry, got %+v", entries)
	}

	files, _ := filepath.Glob(filepath.Join(filepath.Dir(l.GetFilePath()), "audit-*.jsonl"))
	if len(files) != 1 {
		t.Errorf("Expected one backup, got %v", files)
	}
}

func TestCloseDropsLaterActions(t *testing.T) {
	l := newTestLogger(t)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	l.LogAction(context.Background(), "queue", "x", "SUCCESS", 0)
	if err := l.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if entries := readEntries(t, l.GetFilePath()); len(entries) != 0 {
		t.Errorf("Expected no entries after close, got %d", len(entries))
	}
	if err := l.Rotate(); err == nil {
		t.Error("rotate after close should fail")
	}
}

func TestConcurrentLogging(t *testing.T) {
	l := newTestLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				l.LogAction(context.Background(), "queue", "o", "SUCCESS", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if n := len(readEntries(t, l.GetFilePath())); n != 200 {
		t.Errorf("Expected 200 entries, got %d", n)
	}
}
