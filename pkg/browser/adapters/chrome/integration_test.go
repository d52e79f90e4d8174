//go:build integration
// +build integration

package chrome_test

import (
	"context"
	"testing"

	"github.com/odvcencio/autotap/pkg/browser"
	"github.com/odvcencio/autotap/pkg/browser/adapters/chrome"
	"github.com/odvcencio/autotap/pkg/browser/browsertest"
)

func newRuntime(t *testing.T) *chrome.Runtime {
	t.Helper()
	cfg := chrome.DefaultConfig()
	cfg.ExecPath = browsertest.FindBrowser(t)
	cfg.NoSandbox = true
	cfg.Metrics = browser.NewMetrics()

	rt, err := chrome.NewRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start chrome: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestViewClicksPage(t *testing.T) {
	browsertest.RunLoop(t, newRuntime(t))
}

func TestPageScriptModes(t *testing.T) {
	browsertest.RunPageScript(t, newRuntime(t))
}

func TestPageScriptHighlight(t *testing.T) {
	browsertest.RunHighlight(t, newRuntime(t))
}

func TestSessionEvaluateException(t *testing.T) {
	browsertest.RunEvaluateException(t, newRuntime(t))
}
