package rod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/odvcencio/autotap/pkg/browser"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
)

// Session is a single browser page.
type Session struct {
	id      string
	cfg     browser.SessionConfig
	page    *rod.Page
	metrics *browser.Metrics

	mu     sync.Mutex
	closed bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	runCtx, cancel := s.operationContext(ctx)
	defer cancel()

	start := time.Now()
	p := s.page.Context(runCtx)
	err := p.Navigate(url)
	if err == nil {
		err = p.WaitLoad()
	}
	if err != nil {
		return apperrors.Wrap(classify(err), apperrors.ErrCodeBrowserNavigate, "navigate").
			WithContext("url", url)
	}
	s.metrics.RecordNavigate(s.id, url, time.Since(start))
	return nil
}

// InstallScript registers script to run in every document the page loads
// from now on.
func (s *Session) InstallScript(ctx context.Context, script browser.UserScript) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	runCtx, cancel := s.operationContext(ctx)
	defer cancel()

	if _, err := s.page.Context(runCtx).EvalOnNewDocument(browser.WrapUserScript(script)); err != nil {
		return apperrors.Wrap(classify(err), apperrors.ErrCodeScriptInstall, "install user script")
	}
	s.metrics.RecordInstallScript(s.id)
	return nil
}

// Evaluate runs script in the page as a plain expression, the way the
// DevTools console does, and returns its value as JSON. Scripts that return
// undefined yield a nil result.
func (s *Session) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	runCtx, cancel := s.operationContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := evaluateRequest(script).Call(s.page.Context(runCtx))
	if err != nil {
		s.metrics.RecordEvaluate(s.id, false, time.Since(start))
		return nil, browser.WrapScriptError("evaluate", "evaluation failed", classify(err))
	}
	raw, err := decodeEvaluateResult(res)
	s.metrics.RecordEvaluate(s.id, err == nil, time.Since(start))
	return raw, err
}

// evaluateRequest builds the Runtime.evaluate call for script. Page.Eval is
// not used because it expects a function and applies it.
func evaluateRequest(script string) proto.RuntimeEvaluate {
	return proto.RuntimeEvaluate{
		Expression:    script,
		ReturnByValue: true,
		UserGesture:   true,
	}
}

func decodeEvaluateResult(res *proto.RuntimeEvaluateResult) (json.RawMessage, error) {
	if res == nil {
		return nil, nil
	}
	if exc := res.ExceptionDetails; exc != nil {
		msg := exc.Text
		if exc.Exception != nil && exc.Exception.Description != "" {
			msg = exc.Exception.Description
		}
		return nil, browser.NewScriptError("exception", msg)
	}
	obj := res.Result
	if obj == nil || obj.Type == proto.RuntimeRemoteObjectTypeUndefined {
		return nil, nil
	}
	return json.RawMessage(obj.Value.JSON("", "")), nil
}

// Close closes the page.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var err error
	if s.page != nil {
		err = s.page.Close()
	}
	s.metrics.RecordSessionClosed(s.id)
	return err
}

func (s *Session) ensureOpen() error {
	if s == nil || s.page == nil {
		return browser.ErrSessionClosed
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return browser.ErrSessionClosed
	}
	return nil
}

func (s *Session) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := s.cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", browser.ErrOperationTimeout, err)
	}
	return err
}
