package main

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odvcencio/autotap/pkg/autoclick"
	"github.com/odvcencio/autotap/pkg/browser"
	"github.com/odvcencio/autotap/pkg/browser/browsermock"
	"github.com/odvcencio/autotap/pkg/config"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
	"github.com/odvcencio/autotap/pkg/telemetry"
)

func stubConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	orig := loadConfigFn
	loadConfigFn = func(string) (*config.Config, error) {
		c := *cfg
		return &c, nil
	}
	t.Cleanup(func() { loadConfigFn = orig })
}

func stubRuntime(t *testing.T, rt browser.Runtime) {
	t.Helper()
	orig := newRuntimeFn
	newRuntimeFn = func(context.Context, config.BrowserConfig, *browser.Metrics) (browser.Runtime, error) {
		return rt, nil
	}
	t.Cleanup(func() { newRuntimeFn = orig })
}

func TestParseRunFlagsOverridesConfig(t *testing.T) {
	base := config.DefaultConfig()
	base.URL = "https://from-config.example"
	base.Clicks.Points = []config.PointConfig{{X: 9, Y: 9}}
	stubConfig(t, base)

	cfg, opts, err := parseRunFlags([]string{
		"--interval", "0.5",
		"--mode", "multi",
		"--point", "1,2",
		"--point", "3,4",
		"--headless=false",
		"--stay",
		"https://from-arg.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://from-arg.example", cfg.URL)
	assert.Equal(t, 0.5, cfg.Clicks.Interval)
	assert.Equal(t, 60.0, cfg.Clicks.Duration, "unset flags keep the file value")
	assert.Equal(t, "multi", cfg.Clicks.Mode)
	assert.Equal(t, []config.PointConfig{{X: 1, Y: 2}, {X: 3, Y: 4}}, cfg.Clicks.Points)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, opts.stay)
}

func TestParseRunFlagsKeepsConfigWhenUnset(t *testing.T) {
	base := config.DefaultConfig()
	base.URL = "https://from-config.example"
	base.Clicks.Highlight = true
	base.Clicks.Points = []config.PointConfig{{X: 9, Y: 9}}
	stubConfig(t, base)

	cfg, _, err := parseRunFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "https://from-config.example", cfg.URL)
	assert.True(t, cfg.Clicks.Highlight)
	assert.Len(t, cfg.Clicks.Points, 1)
}

func TestParseRunFlagsErrors(t *testing.T) {
	base := config.DefaultConfig()
	stubConfig(t, base)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing url", nil, exitCodeUsage},
		{"bad flag", []string{"--nope"}, exitCodeUsage},
		{"extra args", []string{"a", "b"}, exitCodeUsage},
		{"invalid interval", []string{"--url", "https://x", "--interval", "0"}, exitCodeConfig},
		{"no-start without addr", []string{"--url", "https://x", "--no-start"}, exitCodeUsage},
		{"watch without config", []string{"--url", "https://x", "--watch"}, exitCodeUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseRunFlags(tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.code, exitCodeForError(err))
		})
	}
}

func expectView(rt *browsermock.MockRuntime, sess *browsermock.MockBrowserSession, url string) {
	rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(sess, nil)
	sess.EXPECT().ID().Return("session-1").AnyTimes()
	sess.EXPECT().InstallScript(gomock.Any(), autoclick.PageScript()).Return(nil)
	sess.EXPECT().Navigate(gomock.Any(), url).Return(nil)
}

func TestRunSessionClicksUntilExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	sess := browsermock.NewMockBrowserSession(ctrl)
	stubRuntime(t, rt)

	expectView(rt, sess, "https://example.com")
	var calls atomic.Int32
	sess.EXPECT().Evaluate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, script string) (json.RawMessage, error) {
			calls.Add(1)
			assert.Equal(t, `autoClick([{"x":5,"y":5}],"click",false);`, script)
			return nil, nil
		}).AnyTimes()
	sess.EXPECT().Close().Return(nil)
	rt.EXPECT().Close().Return(nil)

	cfg := config.DefaultConfig()
	cfg.URL = "https://example.com"
	cfg.Logging.Dir = t.TempDir()
	cfg.Clicks.Interval = 0.01
	cfg.Clicks.Duration = 0.035
	cfg.Clicks.Points = []config.PointConfig{{X: 5, Y: 5}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out bytes.Buffer
	require.NoError(t, runSession(ctx, cfg, runOptions{}, &out))

	assert.EqualValues(t, 3, calls.Load())
	assert.Contains(t, out.String(), "3 dispatches, 0 failed")
	require.NoError(t, ctx.Err(), "session should end on expiry, not on the test deadline")
}

func TestRunSessionStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	sess := browsermock.NewMockBrowserSession(ctrl)
	stubRuntime(t, rt)

	expectView(rt, sess, "https://example.com")
	sess.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	sess.EXPECT().Close().Return(nil)
	rt.EXPECT().Close().Return(nil)

	cfg := config.DefaultConfig()
	cfg.URL = "https://example.com"
	cfg.Logging.Dir = t.TempDir()
	cfg.Clicks.Interval = 0.01

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	var out bytes.Buffer
	require.NoError(t, runSession(ctx, cfg, runOptions{stay: true}, &out))
	assert.Contains(t, out.String(), "autotap: clicking https://example.com")
}

func TestOpenViewRetriesTransientFailures(t *testing.T) {
	orig := openBackoff
	openBackoff = time.Millisecond
	t.Cleanup(func() { openBackoff = orig })

	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	sess := browsermock.NewMockBrowserSession(ctrl)

	gomock.InOrder(
		rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(nil, browser.ErrOperationTimeout),
		rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(sess, nil),
	)
	sess.EXPECT().ID().Return("session-1").AnyTimes()
	sess.EXPECT().InstallScript(gomock.Any(), gomock.Any()).Return(nil)
	sess.EXPECT().Navigate(gomock.Any(), gomock.Any()).Return(nil)

	cfg := config.DefaultConfig()
	cfg.URL = "https://example.com"
	view, err := openView(context.Background(), rt, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, view)
}

func TestOpenViewGivesUpOnPermanentFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	rt := browsermock.NewMockRuntime(ctrl)
	sess := browsermock.NewMockBrowserSession(ctrl)

	navErr := apperrors.New(apperrors.ErrCodeBrowserNavigate, "net::ERR_NAME_NOT_RESOLVED")
	rt.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(sess, nil).Times(1)
	sess.EXPECT().InstallScript(gomock.Any(), gomock.Any()).Return(nil)
	sess.EXPECT().Navigate(gomock.Any(), gomock.Any()).Return(navErr)
	sess.EXPECT().Close().Return(nil)

	cfg := config.DefaultConfig()
	cfg.URL = "https://nowhere.invalid"
	_, err := openView(context.Background(), rt, cfg, nil)
	require.ErrorIs(t, err, navErr)
	assert.Equal(t, exitCodeBrowser, exitCodeForError(err))
}

func TestWaitForExpiry(t *testing.T) {
	events := make(chan telemetry.Event, 2)
	events <- telemetry.Event{Type: telemetry.EventLoopStopped}
	events <- telemetry.Event{Type: telemetry.EventLoopExpired}
	assert.ErrorIs(t, waitForExpiry(context.Background(), events, false), errLoopFinished)

	ctx, cancel := context.WithCancel(context.Background())
	stayEvents := make(chan telemetry.Event, 1)
	stayEvents <- telemetry.Event{Type: telemetry.EventLoopExpired}
	time.AfterFunc(20*time.Millisecond, cancel)
	assert.NoError(t, waitForExpiry(ctx, stayEvents, true))
}
