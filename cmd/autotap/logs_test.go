package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/autotap/pkg/logging"
)

func writeSessionLog(t *testing.T, dir, sessionID string, messages ...string) {
	t.Helper()
	logger, err := logging.NewLogger(dir, sessionID)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()
	for _, msg := range messages {
		if err := logger.Info(logging.CategoryLoop, "loop.started", msg, map[string]any{"points": 1}); err != nil {
			t.Fatalf("Info: %v", err)
		}
	}
}

func TestRunLogsShowsLatestSession(t *testing.T) {
	dir := t.TempDir()
	writeSessionLog(t, dir, "old", "from old session")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(logging.SessionLogPath(dir, "old"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	writeSessionLog(t, dir, "new", "first", "second", "third")

	var out bytes.Buffer
	if err := runLogs([]string{"--dir", dir, "-n", "2"}, &out); err != nil {
		t.Fatalf("runLogs: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "second") || !strings.Contains(lines[1], "third") {
		t.Errorf("unexpected lines %q", lines)
	}
	if !strings.Contains(lines[1], "INFO  loop    loop.started third {\"points\":1}") {
		t.Errorf("unexpected format %q", lines[1])
	}
}

func TestRunLogsBySession(t *testing.T) {
	dir := t.TempDir()
	writeSessionLog(t, dir, "a", "alpha")
	writeSessionLog(t, dir, "b", "bravo")

	var out bytes.Buffer
	if err := runLogs([]string{"--dir", dir, "--session", "a"}, &out); err != nil {
		t.Fatalf("runLogs: %v", err)
	}
	if !strings.Contains(out.String(), "alpha") || strings.Contains(out.String(), "bravo") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRunLogsEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sessions"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var out bytes.Buffer
	if err := runLogs([]string{"--dir", dir}, &out); err == nil {
		t.Fatal("expected an error when no session logs exist")
	}
}
