package chrome

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/odvcencio/autotap/pkg/browser"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
)

// Runtime is a chromedp-backed browser runtime. One browser process (or
// remote connection) hosts every session; each session is its own tab.
type Runtime struct {
	cfg Config

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewRuntime launches Chrome, or connects to RemoteURL, and returns a runtime
// ready to open sessions.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	merged := cfg.withDefaults()
	if err := merged.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "invalid chrome config")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// The browser outlives the call that creates it, so the allocator hangs
	// off a detached context.
	allocCtx, allocCancel := newAllocator(context.WithoutCancel(ctx), merged)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser and binds its lifetime to the
	// context it is given, so it must not carry a deadline.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBrowserLaunch, "start chrome").
			WithRemediation("install Chrome or Chromium, or set browser.exec_path",
				"set browser.remote_url to attach to a running browser")
	}

	return &Runtime{
		cfg:           merged,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func newAllocator(ctx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	if cfg.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return chromedp.NewExecAllocator(ctx, opts...)
}

// NewSession opens a tab sized to the session viewport.
func (r *Runtime) NewSession(ctx context.Context, sessionCfg browser.SessionConfig) (browser.BrowserSession, error) {
	if r == nil {
		return nil, browser.ErrUnavailable
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, browser.ErrUnavailable
	}
	if strings.TrimSpace(sessionCfg.SessionID) == "" {
		return nil, errors.New("session_id is required")
	}
	normalized := sessionCfg.Normalize()
	if sessionCfg.OperationTimeout == 0 {
		normalized.OperationTimeout = r.cfg.OperationTimeout
	}

	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	sess := &Session{
		id:      normalized.SessionID,
		cfg:     normalized,
		tabCtx:  tabCtx,
		cancel:  tabCancel,
		metrics: r.cfg.Metrics,
	}

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(normalized.Viewport.Width), int64(normalized.Viewport.Height),
			chromedp.EmulateScale(normalized.Viewport.DeviceScaleFactor)),
	}
	if normalized.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(normalized.UserAgent))
	}

	// Same rule for tabs: the target is created by a deadline-free Run.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, apperrors.Wrap(classify(err), apperrors.ErrCodeBrowserLaunch, "open tab")
	}
	runCtx, cancel := sess.operationContext(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		_ = chromedp.Cancel(tabCtx)
		tabCancel()
		return nil, apperrors.Wrap(classify(err), apperrors.ErrCodeBrowserLaunch, "open tab")
	}
	sess.metrics.RecordSessionCreated(sess.id)
	return sess, nil
}

// Close shuts down the browser, or disconnects from a remote one.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.cfg.RemoteURL != "" {
		// Cancel would ask a remote browser to exit; only drop the connection.
		r.browserCancel()
		r.allocCancel()
		return nil
	}
	err := chromedp.Cancel(r.browserCtx)
	r.browserCancel()
	r.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
