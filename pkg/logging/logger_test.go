package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestNewLogger tests logger construction with temp directories
func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		baseDir   string
		sessionID string
	}{
		{
			name:      "valid directory and session ID",
			baseDir:   t.TempDir(),
			sessionID: "tab-123",
		},
		{
			name:      "creates directories if not exist",
			baseDir:   filepath.Join(t.TempDir(), "nested", "path"),
			sessionID: "tab-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.baseDir, tt.sessionID)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			defer logger.Close()

			if logger.sessionID != tt.sessionID {
				t.Errorf("sessionID = %v, want %v", logger.sessionID, tt.sessionID)
			}
			if logger.minLevel != LevelInfo {
				t.Errorf("minLevel = %v, want %v", logger.minLevel, LevelInfo)
			}

			for _, path := range []string{
				SessionLogPath(tt.baseDir, tt.sessionID),
				filepath.Join(tt.baseDir, "errors.jsonl"),
				filepath.Join(tt.baseDir, "dispatches.jsonl"),
			} {
				if _, err := os.Stat(path); os.IsNotExist(err) {
					t.Errorf("%s not created", path)
				}
			}
		})
	}
}

func TestNewLoggerInvalidDirectory(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file-not-dir")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if _, err := NewLogger(filePath, "tab"); err == nil {
		t.Fatal("expected error when baseDir is a file, got nil")
	}
}

func TestLogEvent(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "tab")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	before := time.Now()
	if err := logger.Log(Event{
		Level:     LevelInfo,
		Category:  CategoryLoop,
		EventType: "loop_started",
		RunID:     "01HZX",
		Message:   "loop started",
		Details:   map[string]any{"interval_ms": 1000},
	}); err != nil {
		t.Fatalf("Log() failed: %v", err)
	}

	events, err := ReadRecentEvents(SessionLogPath(baseDir, "tab"), 1)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	logged := events[0]
	if logged.Category != CategoryLoop {
		t.Errorf("Category = %v, want %v", logged.Category, CategoryLoop)
	}
	if logged.EventType != "loop_started" {
		t.Errorf("EventType = %v, want loop_started", logged.EventType)
	}
	if logged.SessionID != "tab" {
		t.Errorf("SessionID = %v, want tab", logged.SessionID)
	}
	if logged.RunID != "01HZX" {
		t.Errorf("RunID = %v, want 01HZX", logged.RunID)
	}
	if logged.Timestamp.Before(before.Add(-time.Second)) {
		t.Errorf("Timestamp %v should be set automatically", logged.Timestamp)
	}
}

func TestLogRouting(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "tab")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Info(CategoryBridge, "dispatch", "", nil)
	logger.Error(CategoryBridge, "dispatch_failed", "boom", nil)
	logger.Error(CategoryBrowser, "navigate_failed", "no route", nil)
	logger.Info(CategoryLoop, "loop_stopped", "", nil)

	tests := []struct {
		file string
		want int
	}{
		{SessionLogPath(baseDir, "tab"), 4},
		{filepath.Join(baseDir, "errors.jsonl"), 2},
		{filepath.Join(baseDir, "dispatches.jsonl"), 2},
	}
	for _, tt := range tests {
		events, err := ReadRecentEvents(tt.file, 100)
		if err != nil {
			t.Fatalf("ReadRecentEvents(%s) failed: %v", tt.file, err)
		}
		if len(events) != tt.want {
			t.Errorf("%s: got %d events, want %d", filepath.Base(tt.file), len(events), tt.want)
		}
	}
}

func TestSetMinLevel(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "tab")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Debug(CategoryLoop, "tick", "", nil)
	logger.SetMinLevel(LevelWarn)
	logger.Info(CategoryLoop, "tick", "", nil)
	logger.Warn(CategoryLoop, "slow", "", nil)
	logger.SetMinLevel(LevelDebug)
	logger.Debug(CategoryLoop, "tick", "", nil)

	events, err := ReadRecentEvents(SessionLogPath(baseDir, "tab"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Level != LevelWarn || events[1].Level != LevelDebug {
		t.Errorf("levels = %v,%v want warn,debug", events[0].Level, events[1].Level)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": LevelDebug,
		"warn":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"loud":  LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMirror(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), "tab")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	var buf bytes.Buffer
	logger.SetMirror(&buf)
	logger.Info(CategoryConfig, "reloaded", "config reloaded", nil)

	if !strings.Contains(buf.String(), "INFO  config  reloaded config reloaded") {
		t.Errorf("mirror output = %q, want formatted reloaded event", buf.String())
	}
}

func TestNilLogger(t *testing.T) {
	var logger *Logger
	if err := logger.Info(CategoryLoop, "tick", "", nil); err != nil {
		t.Errorf("nil logger Info() = %v, want nil", err)
	}
	logger.SetMinLevel(LevelDebug)
	if err := logger.Close(); err != nil {
		t.Errorf("nil logger Close() = %v, want nil", err)
	}
}

func TestReadRecentEvents(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "tab")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 10; i++ {
		logger.Info(CategoryBridge, "dispatch", "", map[string]any{"seq": float64(i)})
	}

	sessionFile := SessionLogPath(baseDir, "tab")

	tests := []struct {
		name      string
		count     int
		wantCount int
	}{
		{"read last 5", 5, 5},
		{"read last 10", 10, 10},
		{"read more than exist", 20, 10},
		{"read 0", 0, 0},
		{"read 1", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := ReadRecentEvents(sessionFile, tt.count)
			if err != nil {
				t.Fatalf("ReadRecentEvents failed: %v", err)
			}
			if len(events) != tt.wantCount {
				t.Errorf("got %d events, want %d", len(events), tt.wantCount)
			}
		})
	}

	events, _ := ReadRecentEvents(sessionFile, 3)
	for i, event := range events {
		if seq := event.Details["seq"].(float64); int(seq) != 7+i {
			t.Errorf("event %d has seq=%v, want %d", i, seq, 7+i)
		}
	}
}

func TestReadRecentEventsSkipsTornLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torn.jsonl")
	content := `{"level":"info","category":"loop","type":"loop.started"}
not json at all
{"level":"error","category":"bridge","type":"click.failed"}
{"level":"info","categ`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	events, err := ReadRecentEvents(path, 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].EventType != "click.failed" {
		t.Errorf("last event = %q, want click.failed", events[1].EventType)
	}
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 15, 250_000_000, time.UTC)
	got := FormatEvent(Event{
		Timestamp: ts,
		Level:     LevelWarn,
		Category:  CategoryBridge,
		EventType: "click.failed",
		Message:   "target closed",
		Details:   map[string]any{"points": 2},
	})
	want := `09:30:15.250 WARN  bridge  click.failed target closed {"points":2}`
	if got != want {
		t.Errorf("FormatEvent = %q, want %q", got, want)
	}
}

func TestReadRecentEventsNonexistent(t *testing.T) {
	if _, err := ReadRecentEvents("/nonexistent/path/file.jsonl", 10); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestConcurrentWrites(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "tab")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Info(CategoryBridge, "dispatch", "", map[string]any{"worker": n})
			}
		}(i)
	}
	wg.Wait()

	events, err := ReadRecentEvents(SessionLogPath(baseDir, "tab"), 1000)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 100 {
		t.Errorf("got %d events, want 100", len(events))
	}
}
