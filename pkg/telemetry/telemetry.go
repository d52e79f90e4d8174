package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies the kind of telemetry event.
type EventType string

const (
	EventLoopStarted     EventType = "loop.started"
	EventLoopStopped     EventType = "loop.stopped"
	EventLoopExpired     EventType = "loop.expired"
	EventClickDispatched EventType = "click.dispatched"
	EventClickFailed     EventType = "click.failed"

	EventBrowserSessionCreated EventType = "browser.session.created"
	EventBrowserSessionClosed  EventType = "browser.session.closed"
	EventBrowserNavigate       EventType = "browser.navigate"
	EventBrowserEvaluate       EventType = "browser.evaluate"
	EventBrowserEvaluateFailed EventType = "browser.evaluate_failed"

	EventConfigReloaded EventType = "config.reloaded"
)

// Event describes loop and browser telemetry that the host and exporters consume.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId,omitempty"`
	RunID     string         `json:"runId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// subscriberBuffer is how many events a subscriber may fall behind before
// Publish starts dropping events for it.
const subscriberBuffer = 64

// Hub fans telemetry events out to any number of subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the event and the drop is
// counted.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
	dropped     atomic.Uint64
}

// NewHub constructs a telemetry hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Publish stamps event and offers it to every subscriber. Publishing on a nil
// hub is a no-op.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel that will receive future events and a cleanup func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		empty := make(chan Event)
		close(empty)
		return empty, func() {}
	}
	ch := make(chan Event, subscriberBuffer)
	h.subscribers[ch] = struct{}{}
	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (h *Hub) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}

// Close unsubscribes all listeners and prevents future publications.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}
