package autoclick

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/odvcencio/autotap/pkg/browser"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
	"github.com/odvcencio/autotap/pkg/logging"
	"github.com/odvcencio/autotap/pkg/telemetry"
)

//go:generate mockgen -destination=mock_bridge_test.go -package=autoclick . Bridge

// Bridge evaluates script in the rendered page. Any browser.BrowserSession
// satisfies it.
type Bridge interface {
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the real-clock scheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithLogger sets the structured event logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithHub publishes loop and click events to hub.
func WithHub(hub *telemetry.Hub) Option {
	return func(c *Controller) { c.hub = hub }
}

// WithMetrics shares a metrics collector with the caller.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithContext sets the context bridge calls run under.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

// WithConfig replaces the default initial configuration.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg.Clone() }
}

// WithSessionID tags telemetry events with the owning session.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}

// Controller runs the click loop: every interval it advances the elapsed
// time and, until the duration is exceeded, asks the bridge to click the
// configured points.
//
// All loop state is guarded by mu. Bridge calls run on their own goroutines
// and never touch loop state.
type Controller struct {
	bridge    Bridge
	scheduler Scheduler
	logger    *logging.Logger
	hub       *telemetry.Hub
	metrics   *Metrics
	baseCtx   context.Context
	sessionID string

	errLimiter *rate.Limiter
	suppressed atomic.Int64

	mu         sync.Mutex
	cfg        Config
	running    bool
	elapsed    time.Duration
	runID      string
	cancel     func()
	generation uint64

	inflight sync.WaitGroup
}

// NewController creates an idle controller with the default configuration.
func NewController(bridge Bridge, opts ...Option) *Controller {
	c := &Controller{
		bridge:     bridge,
		scheduler:  NewClockScheduler(nil),
		metrics:    NewMetrics(),
		baseCtx:    context.Background(),
		cfg:        DefaultConfig(),
		errLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SetInterval stops the loop, then sets the tick interval.
func (c *Controller) SetInterval(interval time.Duration) {
	c.update("interval", func(cfg *Config) { cfg.Interval = interval })
}

// SetPoints stops the loop, then sets the click sites.
func (c *Controller) SetPoints(points []Point) {
	points = clonePoints(points)
	c.update("points", func(cfg *Config) { cfg.Points = points })
}

// SetHighlight stops the loop, then sets whether clicks are highlighted.
func (c *Controller) SetHighlight(highlight bool) {
	c.update("highlight", func(cfg *Config) { cfg.Highlight = highlight })
}

// SetMode stops the loop, then sets the click mode.
func (c *Controller) SetMode(mode ClickMode) {
	c.update("mode", func(cfg *Config) { cfg.Mode = mode })
}

// SetDuration stops the loop, then sets the run duration.
func (c *Controller) SetDuration(duration time.Duration) {
	c.update("duration", func(cfg *Config) { cfg.Duration = duration })
}

// Apply stops the loop once, then replaces the whole configuration.
func (c *Controller) Apply(cfg Config) {
	cfg = cfg.Clone()
	c.update("all", func(cur *Config) { *cur = cfg })
}

// Config returns a copy of the current configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Clone()
}

// State returns a snapshot of the loop state.
func (c *Controller) State() LoopState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return LoopState{Running: c.running, Elapsed: c.elapsed, RunID: c.runID}
}

// Running reports whether the loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Metrics returns the controller's counters.
func (c *Controller) Metrics() *Metrics {
	return c.metrics
}

// Start begins the loop. It is a no-op while the loop is running. The
// interval and duration must both be positive.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	cfg := c.cfg
	if cfg.Interval <= 0 {
		c.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "click interval must be positive").
			WithContext("interval", cfg.Interval.String())
	}
	if cfg.Duration <= 0 {
		c.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "click duration must be positive").
			WithContext("duration", cfg.Duration.String())
	}

	c.generation++
	gen := c.generation
	c.running = true
	c.elapsed = 0
	c.runID = ulid.Make().String()
	runID := c.runID
	c.cancel = c.scheduler.Every(cfg.Interval, func() { c.tick(gen) })
	c.mu.Unlock()

	c.metrics.RunsStarted.Add(1)
	details := map[string]any{
		"interval_ms": cfg.Interval.Milliseconds(),
		"duration_ms": cfg.Duration.Milliseconds(),
		"points":      len(cfg.Points),
		"mode":        cfg.Mode.String(),
		"highlight":   cfg.Highlight,
	}
	c.publish(telemetry.EventLoopStarted, runID, details)
	c.log(logging.LevelInfo, logging.CategoryLoop, "loop.started", runID, "click loop started", details)
	return nil
}

// Stop cancels the loop and resets the elapsed time. Bridge calls already
// issued are left to finish. Stopping an idle loop does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	run, wasRunning := c.stopLocked()
	c.mu.Unlock()
	if wasRunning {
		c.reportStopped(run, "stop")
	}
}

// Wait blocks until every bridge call issued so far has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

type finishedRun struct {
	runID   string
	elapsed time.Duration
}

func (c *Controller) update(field string, apply func(*Config)) {
	c.mu.Lock()
	run, wasRunning := c.stopLocked()
	apply(&c.cfg)
	c.mu.Unlock()
	if wasRunning {
		c.reportStopped(run, "config."+field)
	}
}

// stopLocked returns the loop to idle. The generation bump makes any tick
// already queued by the scheduler a no-op. Callers hold c.mu.
func (c *Controller) stopLocked() (finishedRun, bool) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	run := finishedRun{runID: c.runID, elapsed: c.elapsed}
	wasRunning := c.running
	c.running = false
	c.elapsed = 0
	c.runID = ""
	c.generation++
	return run, wasRunning
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if !c.running || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.metrics.Ticks.Add(1)
	c.elapsed += c.cfg.Interval
	if c.elapsed > c.cfg.Duration {
		run, _ := c.stopLocked()
		run.elapsed = c.cfg.Duration
		c.mu.Unlock()
		c.metrics.Expiries.Add(1)
		c.reportExpired(run)
		return
	}
	d := NewDispatch(c.cfg)
	runID := c.runID
	elapsed := c.elapsed
	c.inflight.Add(1)
	c.mu.Unlock()

	c.metrics.Dispatches.Add(1)
	c.metrics.DispatchedPoints.Add(int64(len(d.Points)))
	go c.dispatch(runID, elapsed, d)
}

func (c *Controller) dispatch(runID string, elapsed time.Duration, d Dispatch) {
	defer c.inflight.Done()

	start := time.Now()
	var err error
	if c.bridge == nil {
		err = browser.ErrUnavailable
	} else {
		var script string
		if script, err = d.Script(); err == nil {
			_, err = c.bridge.Evaluate(c.baseCtx, script)
		}
	}
	details := map[string]any{
		"points":     len(d.Points),
		"mode":       d.Mode.String(),
		"highlight":  d.Highlight,
		"elapsed_ms": elapsed.Milliseconds(),
		"latency_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		c.metrics.BridgeFailures.Add(1)
		details["error"] = err.Error()
		c.logBridgeError(runID, err, details)
		c.publish(telemetry.EventClickFailed, runID, details)
		return
	}
	c.metrics.BridgeSuccesses.Add(1)
	c.publish(telemetry.EventClickDispatched, runID, details)
	c.log(logging.LevelInfo, logging.CategoryBridge, "click.dispatched", runID, "", details)
}

// logBridgeError logs at most a burst of failures per second. A failing page
// would otherwise write one error per tick.
func (c *Controller) logBridgeError(runID string, err error, details map[string]any) {
	if !c.errLimiter.Allow() {
		c.suppressed.Add(1)
		return
	}
	if n := c.suppressed.Swap(0); n > 0 {
		details["suppressed"] = n
	}
	c.log(logging.LevelError, logging.CategoryBridge, "click.failed", runID, err.Error(), details)
}

func (c *Controller) reportStopped(run finishedRun, reason string) {
	c.metrics.RunsStopped.Add(1)
	details := map[string]any{
		"reason":     reason,
		"elapsed_ms": run.elapsed.Milliseconds(),
	}
	c.publish(telemetry.EventLoopStopped, run.runID, details)
	c.log(logging.LevelInfo, logging.CategoryLoop, "loop.stopped", run.runID, "click loop stopped", details)
}

func (c *Controller) reportExpired(run finishedRun) {
	c.metrics.RunsStopped.Add(1)
	details := map[string]any{"elapsed_ms": run.elapsed.Milliseconds()}
	c.publish(telemetry.EventLoopExpired, run.runID, details)
	c.log(logging.LevelInfo, logging.CategoryLoop, "loop.expired", run.runID, "click loop reached its duration", details)
}

func (c *Controller) publish(eventType telemetry.EventType, runID string, data map[string]any) {
	c.hub.Publish(telemetry.Event{
		Type:      eventType,
		SessionID: c.sessionID,
		RunID:     runID,
		Data:      data,
	})
}

func (c *Controller) log(level logging.Level, category logging.Category, eventType, runID, message string, details map[string]any) {
	_ = c.logger.Log(logging.Event{
		Level:     level,
		Category:  category,
		EventType: eventType,
		RunID:     runID,
		Message:   message,
		Details:   details,
	})
}
