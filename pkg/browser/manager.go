package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Manager wraps a Runtime and remembers every session it opened so they can
// all be closed with the runtime.
type Manager struct {
	runtime Runtime

	mu sync.Mutex
	// A nil entry is an id reserved while its session is being created.
	sessions map[string]BrowserSession
	closed   bool
}

// NewManager creates a Manager backed by the provided runtime.
func NewManager(runtime Runtime) *Manager {
	return &Manager{
		runtime:  runtime,
		sessions: make(map[string]BrowserSession),
	}
}

// NewSession implements Runtime so a Manager can stand in wherever a runtime
// is expected while keeping track of what it opened.
func (m *Manager) NewSession(ctx context.Context, cfg SessionConfig) (BrowserSession, error) {
	return m.CreateSession(ctx, cfg)
}

// CreateSession opens a session on the runtime. An empty SessionID is
// replaced with a random one; an id already open or being opened is
// rejected. The returned session untracks itself on Close.
func (m *Manager) CreateSession(ctx context.Context, cfg SessionConfig) (BrowserSession, error) {
	if m == nil || m.runtime == nil {
		return nil, ErrUnavailable
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	id := cfg.SessionID

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrUnavailable
	}
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("session already exists: %s", id)
	}
	m.sessions[id] = nil
	m.mu.Unlock()

	sess, err := m.runtime.NewSession(ctx, cfg)

	m.mu.Lock()
	if err != nil {
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, err
	}
	if m.closed {
		// Close ran while the runtime was opening the tab.
		m.mu.Unlock()
		_ = sess.Close()
		return nil, ErrUnavailable
	}
	m.sessions[id] = sess
	m.mu.Unlock()
	return &trackedSession{BrowserSession: sess, manager: m, id: id}, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sess := range m.sessions {
		if sess != nil {
			n++
		}
	}
	return n
}

// CloseSession closes and removes a session. Closing an unknown or already
// closed session returns ErrSessionClosed.
func (m *Manager) CloseSession(sessionID string) error {
	if m == nil {
		return ErrUnavailable
	}
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok && sess != nil {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if sess == nil {
		return ErrSessionClosed
	}
	return sess.Close()
}

// Close closes every open session, then the runtime. Later CreateSession
// calls fail with ErrUnavailable.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]BrowserSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		if sess != nil {
			sessions = append(sessions, sess)
		}
	}
	m.sessions = make(map[string]BrowserSession)
	m.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := sess.Close(); err != nil && !errors.Is(err, ErrSessionClosed) {
			errs = append(errs, err)
		}
	}
	if m.runtime != nil {
		if err := m.runtime.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// trackedSession removes itself from the manager when closed directly.
type trackedSession struct {
	BrowserSession
	manager *Manager
	id      string
}

func (s *trackedSession) Close() error {
	return s.manager.CloseSession(s.id)
}
