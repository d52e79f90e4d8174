// Package logging writes autotap's structured event log. Each session gets
// its own JSONL file; errors and bridge traffic are also appended to shared
// files so they can be followed across sessions.
package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// ParseLevel maps a level name to a Level. Unknown names fall back to info.
func ParseLevel(name string) Level {
	switch Level(name) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return Level(name)
	}
	return LevelInfo
}

// Category represents the subsystem generating the log
type Category string

const (
	CategoryLoop    Category = "loop"
	CategoryBridge  Category = "bridge"
	CategoryBrowser Category = "browser"
	CategoryConfig  Category = "config"
	CategoryServer  Category = "server"
)

// Event is one line of the log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  Category       `json:"category"`
	EventType string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Shared log files under the base directory.
const (
	ErrorLogName    = "errors.jsonl"
	DispatchLogName = "dispatches.jsonl"
)

// sink is a log file plus the events routed to it.
type sink struct {
	file  *os.File
	match func(Event) bool
}

// Logger writes structured events to the session log and the shared logs.
// A nil *Logger discards everything.
type Logger struct {
	sessionID string

	mu       sync.Mutex
	sinks    []sink
	mirror   io.Writer
	minLevel Level
}

// NewLogger opens (appending) the session, error and dispatch logs under
// baseDir.
func NewLogger(baseDir, sessionID string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "sessions"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	routes := []struct {
		path  string
		match func(Event) bool
	}{
		{SessionLogPath(baseDir, sessionID), func(Event) bool { return true }},
		{filepath.Join(baseDir, ErrorLogName), func(e Event) bool { return e.Level == LevelError }},
		{filepath.Join(baseDir, DispatchLogName), func(e Event) bool { return e.Category == CategoryBridge }},
	}

	l := &Logger{sessionID: sessionID, minLevel: LevelInfo}
	for _, route := range routes {
		f, err := os.OpenFile(route.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(route.path), err)
		}
		l.sinks = append(l.sinks, sink{file: f, match: route.match})
	}
	return l, nil
}

// SessionLogPath returns the JSONL file a logger for sessionID writes to.
func SessionLogPath(baseDir, sessionID string) string {
	return filepath.Join(baseDir, "sessions", sessionID+".jsonl")
}

// SetMinLevel drops events below level.
func (l *Logger) SetMinLevel(level Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetMirror also writes each event to w as a FormatEvent line.
func (l *Logger) SetMirror(w io.Writer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror = w
}

// Log fills in the timestamp and session id, then writes event to every sink that
// wants it.
func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Level.rank() < l.minLevel.rank() {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	for _, s := range l.sinks {
		if !s.match(event) {
			continue
		}
		if _, err := s.file.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", filepath.Base(s.file.Name()), err)
		}
	}
	if l.mirror != nil {
		_, _ = fmt.Fprintln(l.mirror, FormatEvent(event))
	}
	return nil
}

func (l *Logger) emit(level Level, category Category, eventType, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     level,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Debug logs a debug event
func (l *Logger) Debug(category Category, eventType string, message string, details map[string]any) error {
	return l.emit(LevelDebug, category, eventType, message, details)
}

// Info logs an info event
func (l *Logger) Info(category Category, eventType string, message string, details map[string]any) error {
	return l.emit(LevelInfo, category, eventType, message, details)
}

// Warn logs a warning event
func (l *Logger) Warn(category Category, eventType string, message string, details map[string]any) error {
	return l.emit(LevelWarn, category, eventType, message, details)
}

// Error logs an error event
func (l *Logger) Error(category Category, eventType string, message string, details map[string]any) error {
	return l.emit(LevelError, category, eventType, message, details)
}

// Close closes all log files. Later events are dropped.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []string
	for _, s := range l.sinks {
		if err := s.file.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	l.sinks = nil

	if len(errs) > 0 {
		return fmt.Errorf("errors closing log files: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FormatEvent renders event as a single console line:
// "15:04:05.000 LEVEL category type message {details}".
func FormatEvent(event Event) string {
	var b strings.Builder
	b.WriteString(event.Timestamp.Format("15:04:05.000"))
	fmt.Fprintf(&b, " %-5s %-7s %s", strings.ToUpper(string(event.Level)), event.Category, event.EventType)
	if event.Message != "" {
		b.WriteString(" ")
		b.WriteString(event.Message)
	}
	if len(event.Details) > 0 {
		if data, err := json.Marshal(event.Details); err == nil {
			b.WriteString(" ")
			b.Write(data)
		}
	}
	return b.String()
}

// ReadRecentEvents returns the last count events of a JSONL log, oldest
// first. Lines that do not parse, such as a torn final write, are skipped.
func ReadRecentEvents(logPath string, count int) ([]Event, error) {
	file, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer file.Close()

	if count <= 0 {
		return []Event{}, nil
	}

	ring := make([]Event, 0, count)
	next := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		if len(ring) < count {
			ring = append(ring, event)
			continue
		}
		ring[next] = event
		next = (next + 1) % count
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	events := make([]Event, 0, len(ring))
	events = append(events, ring[next:]...)
	events = append(events, ring[:next]...)
	return events, nil
}
