package rod

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/autotap/pkg/browser"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{RemoteURL: " http://127.0.0.1:9222 ", Headless: true}.withDefaults()

	assert.Equal(t, "http://127.0.0.1:9222", cfg.RemoteURL)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.OperationTimeout)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Bin: "/bin/chrome", RemoteURL: "ws://x"}.Validate())
	assert.Error(t, Config{OperationTimeout: -1}.Validate())
}

func TestSessionClosedOperations(t *testing.T) {
	s := &Session{id: "s"}
	assert.ErrorIs(t, s.Navigate(context.Background(), "about:blank"), browser.ErrSessionClosed)
	assert.ErrorIs(t, s.InstallScript(context.Background(), browser.UserScript{}), browser.ErrSessionClosed)
	_, err := s.Evaluate(context.Background(), "1")
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
}
