package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/odvcencio/autotap/pkg/autotap"
	"github.com/odvcencio/autotap/pkg/browser"
	"github.com/odvcencio/autotap/pkg/config"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
	"github.com/odvcencio/autotap/pkg/ipc"
	"github.com/odvcencio/autotap/pkg/logging"
	"github.com/odvcencio/autotap/pkg/telemetry"
)

const maxOpenAttempts = 3

var openBackoff = time.Second

var errLoopFinished = errors.New("click loop finished")

// loadConfigFn allows tests to stub config discovery.
var loadConfigFn = loadConfig

type runOptions struct {
	configPath string
	watch      bool
	stay       bool
	noStart    bool
}

func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func runRunCommand(args []string) error {
	cfg, opts, err := parseRunFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runSession(ctx, cfg, opts, os.Stdout)
}

// parseRunFlags loads the configuration and layers command-line flags on
// top. Only flags given explicitly override the file.
func parseRunFlags(args []string) (*config.Config, runOptions, error) {
	var opts runOptions
	var points []config.PointConfig

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	url := fs.String("url", "", "page to open")
	interval := fs.Float64("interval", 0, "seconds between clicks")
	duration := fs.Float64("duration", 0, "seconds before the loop stops itself")
	mode := fs.String("mode", "", "click mode: single, multi or double")
	highlight := fs.Bool("highlight", false, "flash a marker at each click site")
	fs.Var(&pointListValue{target: &points}, "point", "click site as x,y (repeatable)")
	driver := fs.String("driver", "", "browser driver: chromedp or rod")
	headless := fs.Bool("headless", true, "run the browser without a window")
	remoteURL := fs.String("remote-url", "", "attach to a running browser's DevTools endpoint")
	addr := fs.String("addr", "", "serve the control API and /metrics on host:port")
	fs.BoolVar(&opts.watch, "watch", false, "re-apply --config when the file changes")
	fs.BoolVar(&opts.stay, "stay", false, "keep running after the loop expires")
	fs.BoolVar(&opts.noStart, "no-start", false, "load the page but wait for POST /start")

	if err := fs.Parse(args); err != nil {
		return nil, opts, withExitCode(err, exitCodeUsage)
	}
	if fs.NArg() == 1 && *url == "" {
		*url = fs.Arg(0)
	} else if fs.NArg() > 0 {
		return nil, opts, withExitCode(fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " ")), exitCodeUsage)
	}

	cfg, err := loadConfigFn(opts.configPath)
	if err != nil {
		return nil, opts, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["url"] || *url != "" {
		cfg.URL = *url
	}
	if set["interval"] {
		cfg.Clicks.Interval = *interval
	}
	if set["duration"] {
		cfg.Clicks.Duration = *duration
	}
	if set["mode"] {
		cfg.Clicks.Mode = *mode
	}
	if set["highlight"] {
		cfg.Clicks.Highlight = *highlight
	}
	if set["point"] {
		cfg.Clicks.Points = points
	}
	if set["driver"] {
		cfg.Browser.Driver = strings.ToLower(*driver)
	}
	if set["headless"] {
		cfg.Browser.Headless = *headless
	}
	if set["remote-url"] {
		cfg.Browser.RemoteURL = *remoteURL
	}
	if set["addr"] {
		cfg.Server.Addr = *addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, opts, err
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, opts, withExitCode(errors.New("no page to open (pass --url or set url in config)"), exitCodeUsage)
	}
	if opts.noStart && cfg.Server.Addr == "" {
		return nil, opts, withExitCode(errors.New("--no-start needs --addr so the loop can be started"), exitCodeUsage)
	}
	if opts.watch && opts.configPath == "" {
		return nil, opts, withExitCode(errors.New("--watch needs --config"), exitCodeUsage)
	}
	return cfg, opts, nil
}

// runSession opens the view and drives it until the loop expires (unless
// opts.stay) or ctx is done.
func runSession(ctx context.Context, cfg *config.Config, opts runOptions, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sessionID := uuid.NewString()

	logger, err := logging.NewLogger(cfg.Logging.LogDir(), sessionID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "open event log")
	}
	defer logger.Close()
	logger.SetMinLevel(logging.ParseLevel(cfg.Logging.Level))
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger.SetMirror(os.Stderr)
	}

	hub := telemetry.NewHub()
	defer hub.Close()
	exporter := telemetry.NewPromExporter(nil)
	exporter.TrackHub(hub)

	browserMetrics := browser.NewMetrics()
	browserMetrics.EnableTelemetry(hub, sessionID)

	rt, err := newRuntimeFn(ctx, cfg.Browser, browserMetrics)
	if err != nil {
		return err
	}
	manager := browser.NewManager(rt)
	defer func() {
		if err := manager.Close(); err != nil {
			_ = logger.Warn(logging.CategoryBrowser, "browser.close_failed", err.Error(), nil)
		}
	}()

	clickCfg, err := cfg.Clicks.ToAutoclick()
	if err != nil {
		return err
	}
	view, err := openView(ctx, manager, cfg, logger,
		autotap.WithSessionID(sessionID),
		autotap.WithLogger(logger),
		autotap.WithHub(hub),
		autotap.WithConfig(clickCfg),
		autotap.WithUserAgent(cfg.Browser.UserAgent),
		autotap.WithOperationTimeout(cfg.Browser.OperationTimeout),
	)
	if err != nil {
		return err
	}
	defer view.Close()

	// Subscribe before starting so no loop event is missed.
	metricEvents, unsubscribeMetrics := hub.Subscribe()
	defer unsubscribeMetrics()
	loopEvents, unsubscribeLoop := hub.Subscribe()
	defer unsubscribeLoop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		exporter.Run(gctx, metricEvents)
		return nil
	})
	g.Go(func() error {
		return waitForExpiry(gctx, loopEvents, opts.stay)
	})

	if cfg.Server.Addr != "" {
		server := ipc.NewServer(ipc.Config{
			BindAddress: cfg.Server.Addr,
			Token:       cfg.Server.Token,
			Version:     version,
			PageURL:     cfg.URL,
		}, view, hub, exporter, logger)
		g.Go(func() error {
			return server.Start(gctx)
		})
	}

	if opts.watch {
		g.Go(func() error {
			return config.Watch(gctx, opts.configPath, func(next *config.Config, err error) {
				applyReload(view, hub, logger, sessionID, next, err, !opts.noStart)
			})
		})
	}

	if !opts.noStart {
		if err := view.Start(); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}
	fmt.Fprintf(stdout, "autotap: clicking %s (session %s)\n", cfg.URL, sessionID)

	err = g.Wait()
	view.Stop()
	view.Wait()

	snap := view.Metrics().Snapshot()
	fmt.Fprintf(stdout, "autotap: %d dispatches, %d failed\n", snap.Dispatches, snap.BridgeFailures)

	if errors.Is(err, errLoopFinished) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openView retries transient failures (timeouts, an unavailable page) a few
// times before giving up.
func openView(ctx context.Context, rt browser.Runtime, cfg *config.Config, logger *logging.Logger, opts ...autotap.Option) (*autotap.View, error) {
	var lastErr error
	for attempt := 1; attempt <= maxOpenAttempts; attempt++ {
		view, err := autotap.NewView(ctx, rt, cfg.Browser.Viewport, cfg.URL, opts...)
		if err == nil {
			return view, nil
		}
		lastErr = err
		if !browser.IsRetryableError(err) || attempt == maxOpenAttempts {
			break
		}
		_ = logger.Warn(logging.CategoryBrowser, "browser.open_retry", err.Error(), map[string]any{
			"attempt": attempt,
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * openBackoff):
		}
	}
	return nil, lastErr
}

func waitForExpiry(ctx context.Context, events <-chan telemetry.Event, stay bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Type == telemetry.EventLoopExpired && !stay {
				return errLoopFinished
			}
		}
	}
}

// applyReload swaps in the click settings of a reloaded config file. The
// loop stops on Apply and is restarted when restart is set.
func applyReload(view *autotap.View, hub *telemetry.Hub, logger *logging.Logger, sessionID string, next *config.Config, err error, restart bool) {
	if err != nil {
		_ = logger.Warn(logging.CategoryConfig, "config.reload_failed", err.Error(), nil)
		return
	}
	clickCfg, err := next.Clicks.ToAutoclick()
	if err != nil {
		_ = logger.Warn(logging.CategoryConfig, "config.reload_failed", err.Error(), nil)
		return
	}
	view.Apply(clickCfg)
	hub.Publish(telemetry.Event{
		Type:      telemetry.EventConfigReloaded,
		SessionID: sessionID,
		Data: map[string]any{
			"points": len(clickCfg.Points),
			"mode":   clickCfg.Mode.String(),
		},
	})
	_ = logger.Info(logging.CategoryConfig, "config.reloaded", "click configuration reloaded from disk", nil)
	if restart {
		if err := view.Start(); err != nil {
			_ = logger.Warn(logging.CategoryConfig, "config.restart_failed", err.Error(), nil)
		}
	}
}
