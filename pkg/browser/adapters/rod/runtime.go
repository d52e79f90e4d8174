package rod

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/odvcencio/autotap/pkg/browser"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
)

// Runtime is a go-rod backed browser runtime.
type Runtime struct {
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher
	// disconnect drops the connection to a remote browser without closing it.
	disconnect context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewRuntime launches a browser, or connects to RemoteURL.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	merged := cfg.withDefaults()
	if err := merged.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "invalid rod config")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r := &Runtime{cfg: merged}
	var controlURL string
	if merged.RemoteURL != "" {
		u, err := launcher.ResolveURL(merged.RemoteURL)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeBrowserLaunch, "resolve remote browser")
		}
		controlURL = u
	} else {
		l := launcher.New().Headless(merged.Headless).NoSandbox(merged.NoSandbox)
		if merged.Bin != "" {
			l = l.Bin(merged.Bin)
		}
		if merged.UserDataDir != "" {
			l = l.UserDataDir(merged.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeBrowserLaunch, "launch browser").
				WithRemediation("set browser.exec_path to a Chrome or Chromium binary")
		}
		r.launcher = l
		controlURL = u
	}

	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b := rod.New().ControlURL(controlURL).Context(connCtx)
	if err := b.Connect(); err != nil {
		cancel()
		if r.launcher != nil {
			r.launcher.Kill()
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBrowserLaunch, "connect browser")
	}
	r.browser = b
	r.disconnect = cancel
	return r, nil
}

// NewSession opens a page sized to the session viewport.
func (r *Runtime) NewSession(ctx context.Context, sessionCfg browser.SessionConfig) (browser.BrowserSession, error) {
	if r == nil || r.browser == nil {
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

	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBrowserLaunch, "open page")
	}
	sess := &Session{
		id:      normalized.SessionID,
		cfg:     normalized,
		page:    page,
		metrics: r.cfg.Metrics,
	}

	runCtx, cancel := sess.operationContext(ctx)
	defer cancel()
	p := page.Context(runCtx)
	err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             normalized.Viewport.Width,
		Height:            normalized.Viewport.Height,
		DeviceScaleFactor: normalized.Viewport.DeviceScaleFactor,
	})
	if err == nil && normalized.UserAgent != "" {
		err = p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: normalized.UserAgent})
	}
	if err != nil {
		_ = page.Close()
		return nil, apperrors.Wrap(classify(err), apperrors.ErrCodeBrowserLaunch, "configure page")
	}
	sess.metrics.RecordSessionCreated(sess.id)
	return sess, nil
}

// Close closes a launched browser, or disconnects from a remote one.
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

	var err error
	if r.launcher != nil && r.browser != nil {
		err = r.browser.Close()
		if r.cfg.UserDataDir == "" {
			r.launcher.Cleanup()
		} else {
			r.launcher.Kill()
		}
	}
	if r.disconnect != nil {
		r.disconnect()
	}
	return err
}
