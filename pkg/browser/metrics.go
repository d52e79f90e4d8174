package browser

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/odvcencio/autotap/pkg/telemetry"
)

// Metrics tracks browser runtime performance counters.
type Metrics struct {
	// Session counts
	SessionsCreated atomic.Int64
	SessionsClosed  atomic.Int64
	ActiveSessions  atomic.Int64

	// Operation counts
	NavigateCount      atomic.Int64
	EvaluateCount      atomic.Int64
	EvaluateFailures   atomic.Int64
	EvaluateLatencySum atomic.Int64 // nanoseconds
	EvaluateLatencyMax atomic.Int64 // nanoseconds
	InstallScriptCount atomic.Int64

	mu        sync.RWMutex
	hub       *telemetry.Hub
	sessionID string
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// EnableTelemetry wires the metrics collector to a telemetry hub.
func (m *Metrics) EnableTelemetry(hub *telemetry.Hub, sessionID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.hub = hub
	m.sessionID = sessionID
	m.mu.Unlock()
}

// RecordSessionCreated increments session creation counter.
func (m *Metrics) RecordSessionCreated(browserSessionID string) {
	if m == nil {
		return
	}
	m.SessionsCreated.Add(1)
	m.ActiveSessions.Add(1)
	m.publishEvent(telemetry.EventBrowserSessionCreated, map[string]any{
		"browser_session_id": browserSessionID,
	})
}

// RecordSessionClosed increments session close counter.
func (m *Metrics) RecordSessionClosed(browserSessionID string) {
	if m == nil {
		return
	}
	m.SessionsClosed.Add(1)
	m.ActiveSessions.Add(-1)
	m.publishEvent(telemetry.EventBrowserSessionClosed, map[string]any{
		"browser_session_id": browserSessionID,
	})
}

// RecordNavigate increments navigation counter.
func (m *Metrics) RecordNavigate(browserSessionID, url string, latency time.Duration) {
	if m == nil {
		return
	}
	m.NavigateCount.Add(1)
	m.publishEvent(telemetry.EventBrowserNavigate, map[string]any{
		"browser_session_id": browserSessionID,
		"url":                url,
		"latency_ms":         latency.Milliseconds(),
	})
}

// RecordInstallScript counts user scripts registered with a session.
func (m *Metrics) RecordInstallScript(browserSessionID string) {
	if m == nil {
		return
	}
	m.InstallScriptCount.Add(1)
}

// RecordEvaluate tracks a script evaluation and its outcome.
func (m *Metrics) RecordEvaluate(browserSessionID string, success bool, latency time.Duration) {
	if m == nil {
		return
	}
	m.EvaluateCount.Add(1)
	ns := latency.Nanoseconds()
	m.EvaluateLatencySum.Add(ns)
	for {
		cur := m.EvaluateLatencyMax.Load()
		if ns <= cur || m.EvaluateLatencyMax.CompareAndSwap(cur, ns) {
			break
		}
	}
	eventType := telemetry.EventBrowserEvaluate
	if !success {
		m.EvaluateFailures.Add(1)
		eventType = telemetry.EventBrowserEvaluateFailed
	}
	m.publishEvent(eventType, map[string]any{
		"browser_session_id": browserSessionID,
		"success":            success,
		"latency_ms":         latency.Milliseconds(),
	})
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	count := m.EvaluateCount.Load()
	failures := m.EvaluateFailures.Load()
	avg := time.Duration(0)
	successRate := float64(1.0)
	if count > 0 {
		avg = time.Duration(m.EvaluateLatencySum.Load() / count)
		successRate = float64(count-failures) / float64(count)
	}
	return MetricsSnapshot{
		SessionsCreated:        m.SessionsCreated.Load(),
		SessionsClosed:         m.SessionsClosed.Load(),
		ActiveSessions:         m.ActiveSessions.Load(),
		NavigateCount:          m.NavigateCount.Load(),
		InstallScriptCount:     m.InstallScriptCount.Load(),
		EvaluateCount:          count,
		EvaluateFailures:       failures,
		EvaluateSuccessRate:    successRate,
		AverageEvaluateLatency: avg,
		MaxEvaluateLatency:     time.Duration(m.EvaluateLatencyMax.Load()),
	}
}

func (m *Metrics) publishEvent(eventType telemetry.EventType, data map[string]any) {
	m.mu.RLock()
	hub := m.hub
	sessionID := m.sessionID
	m.mu.RUnlock()
	if hub == nil {
		return
	}
	hub.Publish(telemetry.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      data,
	})
}

// MetricsSnapshot is a point-in-time copy of browser metrics.
type MetricsSnapshot struct {
	SessionsCreated        int64
	SessionsClosed         int64
	ActiveSessions         int64
	NavigateCount          int64
	InstallScriptCount     int64
	EvaluateCount          int64
	EvaluateFailures       int64
	EvaluateSuccessRate    float64
	AverageEvaluateLatency time.Duration
	MaxEvaluateLatency     time.Duration
}
