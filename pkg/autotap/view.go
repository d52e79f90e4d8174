// Package autotap provides the auto-tap view: a browser page that, once
// started, clicks configured points on a timer.
package autotap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odvcencio/autotap/pkg/autoclick"
	"github.com/odvcencio/autotap/pkg/browser"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
	"github.com/odvcencio/autotap/pkg/logging"
	"github.com/odvcencio/autotap/pkg/telemetry"
)

// Option configures a View.
type Option func(*options)

type options struct {
	logger    *logging.Logger
	hub       *telemetry.Hub
	scheduler autoclick.Scheduler
	sessionID string
	config    *autoclick.Config
	userAgent string
	timeout   time.Duration
	metrics   *autoclick.Metrics
}

// WithLogger sets the structured event logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHub publishes loop and click events to hub.
func WithHub(hub *telemetry.Hub) Option {
	return func(o *options) { o.hub = hub }
}

// WithScheduler replaces the real-clock tick scheduler.
func WithScheduler(s autoclick.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithSessionID fixes the browser session ID instead of generating one.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// WithConfig sets the initial click configuration.
func WithConfig(cfg autoclick.Config) Option {
	return func(o *options) { o.config = &cfg }
}

// WithUserAgent overrides the page's user agent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithOperationTimeout bounds each browser operation the view issues.
func WithOperationTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMetrics shares a loop metrics collector.
func WithMetrics(m *autoclick.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// View is a browser page with a click loop attached. The embedded
// Controller is the configuration and start/stop surface.
type View struct {
	*autoclick.Controller

	session browser.BrowserSession
	url     string
	logger  *logging.Logger
	cancel  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewView opens a page sized to region, installs the click script and loads
// url. The loop is idle until Start is called.
func NewView(ctx context.Context, rt browser.Runtime, region browser.Viewport, url string, opts ...Option) (*View, error) {
	if rt == nil {
		return nil, browser.ErrUnavailable
	}
	if strings.TrimSpace(url) == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "url is required")
	}
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}

	sessionCfg := browser.DefaultSessionConfig()
	sessionCfg.SessionID = o.sessionID
	sessionCfg.Viewport = region
	sessionCfg.UserAgent = o.userAgent
	if o.timeout > 0 {
		sessionCfg.OperationTimeout = o.timeout
	}
	sess, err := rt.NewSession(ctx, sessionCfg.Normalize())
	if err != nil {
		return nil, err
	}

	// The script only reaches documents loaded after it is registered.
	if err := sess.InstallScript(ctx, autoclick.PageScript()); err != nil {
		_ = sess.Close()
		return nil, err
	}
	_ = o.logger.Info(logging.CategoryBrowser, "browser.script_installed", "click script installed", nil)

	if err := sess.Navigate(ctx, url); err != nil {
		_ = sess.Close()
		return nil, err
	}
	_ = o.logger.Info(logging.CategoryBrowser, "browser.navigate", "page loaded", map[string]any{"url": url})

	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ctrlOpts := []autoclick.Option{
		autoclick.WithContext(baseCtx),
		autoclick.WithLogger(o.logger),
		autoclick.WithHub(o.hub),
		autoclick.WithSessionID(sess.ID()),
		autoclick.WithScheduler(o.scheduler),
		autoclick.WithMetrics(o.metrics),
	}
	if o.config != nil {
		ctrlOpts = append(ctrlOpts, autoclick.WithConfig(*o.config))
	}

	return &View{
		Controller: autoclick.NewController(sess, ctrlOpts...),
		session:    sess,
		url:        url,
		logger:     o.logger,
		cancel:     cancel,
	}, nil
}

// Session returns the underlying browser session.
func (v *View) Session() browser.BrowserSession {
	return v.session
}

// URL returns the URL the view was opened with.
func (v *View) URL() string {
	return v.url
}

// Reload stops the loop and loads the view's URL again. The click script is
// reinstalled by the browser on the new document.
func (v *View) Reload(ctx context.Context) error {
	v.Stop()
	if err := v.session.Navigate(ctx, v.url); err != nil {
		return err
	}
	_ = v.logger.Info(logging.CategoryBrowser, "browser.reload", "page reloaded", map[string]any{"url": v.url})
	return nil
}

// Close stops the loop, waits for in-flight clicks and closes the session.
func (v *View) Close() error {
	if v == nil {
		return nil
	}
	v.closeOnce.Do(func() {
		v.Stop()
		v.Wait()
		v.cancel()
		if err := v.session.Close(); err != nil && !errors.Is(err, browser.ErrSessionClosed) {
			v.closeErr = err
		}
	})
	return v.closeErr
}
