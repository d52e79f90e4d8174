// Package browsertest runs the same page-level checks against any
// browser.Runtime, so every adapter is held to one behavior.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/autotap/pkg/autoclick"
	"github.com/odvcencio/autotap/pkg/autotap"
	"github.com/odvcencio/autotap/pkg/browser"
)

// ClickPage has three 100x100 targets: a at (0,0), b at (150,0), c at
// (0,150). Every click or dblclick that reaches the document is appended to
// window.log as "<id>" or "dbl:<id>"; events dispatched on the document
// itself are logged as "document".
const ClickPage = `<!doctype html>
<html><head><script>
window.log = [];
function record(e) {
  var name = e.target === document ? 'document' : (e.target.id || e.target.tagName);
  window.log.push((e.type === 'dblclick' ? 'dbl:' : '') + name);
}
document.addEventListener('click', record);
document.addEventListener('dblclick', record);
</script></head>
<body style="margin:0">
<div id="a" style="position:absolute;left:0;top:0;width:100px;height:100px"></div>
<div id="b" style="position:absolute;left:150px;top:0;width:100px;height:100px"></div>
<div id="c" style="position:absolute;left:0;top:150px;width:100px;height:100px"></div>
</body></html>`

var (
	pointA   = autoclick.Point{X: 50, Y: 50}
	pointB   = autoclick.Point{X: 200, Y: 50}
	pointC   = autoclick.Point{X: 50, Y: 200}
	offPage  = autoclick.Point{X: -50, Y: -50}
	viewport = browser.Viewport{Width: 400, Height: 300}
)

// FindBrowser returns AUTOTAP_EXEC_PATH or the first Chrome or Chromium on
// PATH. It skips the test when there is none, or in short mode.
func FindBrowser(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if path := os.Getenv("AUTOTAP_EXEC_PATH"); path != "" {
		return path
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome or Chromium found; set AUTOTAP_EXEC_PATH")
	return ""
}

// ServePage starts a server for ClickPage, closed with the test.
func ServePage(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, ClickPage)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// OpenView opens ClickPage in a view on rt.
func OpenView(t *testing.T, rt browser.Runtime, cfg autoclick.Config) *autotap.View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	view, err := autotap.NewView(ctx, browser.NewManager(rt), viewport, ServePage(t), autotap.WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	t.Cleanup(func() { _ = view.Close() })
	return view
}

// Eval evaluates expr and decodes its value into dst.
func Eval(t *testing.T, sess browser.BrowserSession, expr string, dst any) {
	t.Helper()
	raw, err := sess.Evaluate(context.Background(), expr)
	if err != nil {
		t.Fatalf("evaluate %q: %v", expr, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode %q result %s: %v", expr, raw, err)
	}
}

func renderScript(t *testing.T, cfg autoclick.Config) string {
	t.Helper()
	script, err := autoclick.NewDispatch(cfg).Script()
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	return script
}

func readLog(t *testing.T, sess browser.BrowserSession) []string {
	t.Helper()
	var log []string
	Eval(t, sess, "window.log", &log)
	return log
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RunPageScript checks the events the page script fires for each mode, one
// dispatch at a time.
func RunPageScript(t *testing.T, rt browser.Runtime) {
	view := OpenView(t, rt, autoclick.DefaultConfig())
	sess := view.Session()

	var installed bool
	Eval(t, sess, "typeof window.autoClick === 'function'", &installed)
	if !installed {
		t.Fatal("click script was not installed in the page")
	}

	tests := []struct {
		name   string
		mode   autoclick.ClickMode
		points []autoclick.Point
		want   []string
	}{
		{"single clicks the first point", autoclick.ModeSingle, []autoclick.Point{pointA, pointB}, []string{"a"}},
		{"double sends dblclick to the first point", autoclick.ModeDouble, []autoclick.Point{pointB, pointA}, []string{"dbl:b"}},
		{"multi clicks every point in order", autoclick.ModeMulti, []autoclick.Point{pointC, pointA, pointB}, []string{"c", "a", "b"}},
		{"no element falls back to the document", autoclick.ModeMulti, []autoclick.Point{offPage}, []string{"document"}},
		{"empty points click nothing", autoclick.ModeMulti, nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reset []string
			Eval(t, sess, "window.log = []", &reset)

			script := renderScript(t, autoclick.Config{Points: tt.points, Mode: tt.mode})
			if _, err := sess.Evaluate(context.Background(), script); err != nil {
				t.Fatalf("evaluate %s: %v", script, err)
			}
			if got := readLog(t, sess); !equal(got, tt.want) {
				t.Errorf("log = %q, want %q", got, tt.want)
			}
		})
	}
}

// RunHighlight checks that a highlighted click draws one marker per point
// and that the markers are gone shortly after 200ms.
func RunHighlight(t *testing.T, rt browser.Runtime) {
	view := OpenView(t, rt, autoclick.DefaultConfig())
	sess := view.Session()

	const countMarkers = `Array.from(document.querySelectorAll('div')).filter(function (d) { return d.style.pointerEvents === 'none'; }).length`
	script := renderScript(t, autoclick.Config{
		Points:    []autoclick.Point{pointA, pointB},
		Mode:      autoclick.ModeMulti,
		Highlight: true,
	})

	var shown int
	Eval(t, sess, "("+strings.TrimSuffix(script, ";")+", "+countMarkers+")", &shown)
	if shown != 2 {
		t.Fatalf("markers right after dispatch = %d, want 2", shown)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		var left int
		Eval(t, sess, countMarkers, &left)
		if left == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%d markers still present after 3s", left)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// RunLoop drives the real click loop: 50ms ticks for 200ms in multi mode
// give four dispatches of two clicks each and no bridge failures.
func RunLoop(t *testing.T, rt browser.Runtime) {
	view := OpenView(t, rt, autoclick.Config{
		Interval: 50 * time.Millisecond,
		Duration: 200 * time.Millisecond,
		Points:   []autoclick.Point{pointA, pointB},
		Mode:     autoclick.ModeMulti,
	})

	if err := view.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for view.Running() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if view.Running() {
		t.Fatal("loop did not expire")
	}
	view.Wait()

	want := []string{"a", "b", "a", "b", "a", "b", "a", "b"}
	if got := readLog(t, view.Session()); !equal(got, want) {
		t.Errorf("log = %q, want %q", got, want)
	}
	if snap := view.Metrics().Snapshot(); snap.BridgeFailures != 0 || snap.BridgeSuccesses != 4 {
		t.Errorf("bridge successes/failures = %d/%d, want 4/0", snap.BridgeSuccesses, snap.BridgeFailures)
	}
}

// RunEvaluateException checks that a throwing script surfaces as an
// "exception" ScriptError and that a closed session refuses to evaluate.
func RunEvaluateException(t *testing.T, rt browser.Runtime) {
	ctx := context.Background()
	cfg := browser.DefaultSessionConfig()
	cfg.SessionID = "exception"
	sess, err := rt.NewSession(ctx, cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	if err := sess.Navigate(ctx, "about:blank"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	_, err = sess.Evaluate(ctx, "autoClick([], 'click', false)")
	var scriptErr *browser.ScriptError
	if !errors.As(err, &scriptErr) || scriptErr.Code != "exception" {
		t.Fatalf("expected exception ScriptError without the click script, got %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := sess.Evaluate(ctx, "1"); err == nil {
		t.Fatal("evaluate after close should fail")
	}
}
