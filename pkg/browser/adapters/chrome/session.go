package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/odvcencio/autotap/pkg/browser"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
)

// Session is a single Chrome tab.
type Session struct {
	id      string
	cfg     browser.SessionConfig
	tabCtx  context.Context
	cancel  context.CancelFunc
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
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return apperrors.Wrap(classify(err), apperrors.ErrCodeBrowserNavigate, "navigate").
			WithContext("url", url)
	}
	s.metrics.RecordNavigate(s.id, url, time.Since(start))
	return nil
}

// InstallScript registers script to run in every document the tab loads
// from now on.
func (s *Session) InstallScript(ctx context.Context, script browser.UserScript) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	runCtx, cancel := s.operationContext(ctx)
	defer cancel()

	source := browser.WrapUserScript(script)
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
		return err
	}))
	if err != nil {
		return apperrors.Wrap(classify(err), apperrors.ErrCodeScriptInstall, "install user script")
	}
	s.metrics.RecordInstallScript(s.id)
	return nil
}

// Evaluate runs script in the page's main world and returns its value as
// JSON. Scripts that return undefined yield a nil result.
func (s *Session) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	runCtx, cancel := s.operationContext(ctx)
	defer cancel()

	start := time.Now()
	var raw []byte
	err := chromedp.Run(runCtx, chromedp.Evaluate(script, &raw))
	s.metrics.RecordEvaluate(s.id, err == nil, time.Since(start))
	if err != nil {
		var exc *runtime.ExceptionDetails
		if errors.As(err, &exc) {
			return nil, browser.WrapScriptError("exception", "script threw", err)
		}
		return nil, browser.WrapScriptError("evaluate", "evaluation failed", classify(err))
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// Close closes the tab.
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

	err := chromedp.Cancel(s.tabCtx)
	s.cancel()
	s.metrics.RecordSessionClosed(s.id)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) ensureOpen() error {
	if s == nil || s.tabCtx == nil {
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

// operationContext derives a context from the tab, since chromedp locates
// the target through it, bounded by the session timeout and by ctx.
func (s *Session) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := s.cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	runCtx, cancel := context.WithDeadline(s.tabCtx, deadline)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", browser.ErrOperationTimeout, err)
	}
	return err
}
