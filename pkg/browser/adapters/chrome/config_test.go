package chrome

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/odvcencio/autotap/pkg/browser"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{ExecPath: "  /usr/bin/chromium  ", Headless: false}.withDefaults()

	assert.Equal(t, "/usr/bin/chromium", cfg.ExecPath)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.OperationTimeout)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"remote ws", Config{RemoteURL: "ws://127.0.0.1:9222/devtools/browser/abc"}, false},
		{"remote http", Config{RemoteURL: "http://127.0.0.1:9222"}, false},
		{"remote bad scheme", Config{RemoteURL: "ftp://example.com"}, true},
		{"remote and exec", Config{RemoteURL: "ws://x", ExecPath: "/bin/chrome"}, true},
		{"negative timeout", Config{OperationTimeout: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionClosedOperations(t *testing.T) {
	s := &Session{id: "s", closed: true}
	assert.ErrorIs(t, s.Navigate(context.Background(), "about:blank"), browser.ErrSessionClosed)
	_, err := s.Evaluate(context.Background(), "1")
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
	assert.NoError(t, s.Close())
}
