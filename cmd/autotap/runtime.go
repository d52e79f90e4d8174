package main

import (
	"context"
	"fmt"

	"github.com/odvcencio/autotap/pkg/browser"
	"github.com/odvcencio/autotap/pkg/browser/adapters/chrome"
	rodadapter "github.com/odvcencio/autotap/pkg/browser/adapters/rod"
	"github.com/odvcencio/autotap/pkg/config"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
)

// newRuntimeFn allows tests to run sessions without a real browser.
var newRuntimeFn = newRuntime

func newRuntime(ctx context.Context, cfg config.BrowserConfig, metrics *browser.Metrics) (browser.Runtime, error) {
	switch cfg.Driver {
	case config.DriverChromedp, "":
		rt, err := chrome.NewRuntime(ctx, chrome.Config{
			ExecPath:         cfg.ExecPath,
			RemoteURL:        cfg.RemoteURL,
			Headless:         cfg.Headless,
			NoSandbox:        cfg.NoSandbox,
			OperationTimeout: cfg.OperationTimeout,
			Metrics:          metrics,
		})
		if err != nil {
			return nil, err
		}
		return rt, nil
	case config.DriverRod:
		rt, err := rodadapter.NewRuntime(ctx, rodadapter.Config{
			Bin:              cfg.ExecPath,
			RemoteURL:        cfg.RemoteURL,
			Headless:         cfg.Headless,
			NoSandbox:        cfg.NoSandbox,
			OperationTimeout: cfg.OperationTimeout,
			Metrics:          metrics,
		})
		if err != nil {
			return nil, err
		}
		return rt, nil
	default:
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, fmt.Sprintf("unknown browser driver %q", cfg.Driver))
	}
}
