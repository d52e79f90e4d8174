package chrome

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/odvcencio/autotap/pkg/browser"
)

// Config controls how the Chrome adapter starts or attaches to a browser.
type Config struct {
	// ExecPath overrides the Chrome/Chromium binary. Empty lets chromedp search.
	ExecPath string
	// RemoteURL attaches to an already running browser's DevTools endpoint
	// instead of launching one.
	RemoteURL        string
	Headless         bool
	NoSandbox        bool
	UserDataDir      string
	OperationTimeout time.Duration

	Metrics *browser.Metrics
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Headless:         true,
		OperationTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	defaults.Headless = c.Headless
	defaults.NoSandbox = c.NoSandbox
	defaults.Metrics = c.Metrics
	if strings.TrimSpace(c.ExecPath) != "" {
		defaults.ExecPath = strings.TrimSpace(c.ExecPath)
	}
	if strings.TrimSpace(c.RemoteURL) != "" {
		defaults.RemoteURL = strings.TrimSpace(c.RemoteURL)
	}
	if strings.TrimSpace(c.UserDataDir) != "" {
		defaults.UserDataDir = c.UserDataDir
	}
	if c.OperationTimeout != 0 {
		defaults.OperationTimeout = c.OperationTimeout
	}
	return defaults
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	if c.OperationTimeout < 0 {
		return errors.New("operation_timeout must be zero or positive")
	}
	if c.RemoteURL != "" {
		u, err := url.Parse(c.RemoteURL)
		if err != nil {
			return errors.New("remote_url is not a valid URL")
		}
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return errors.New("remote_url must use ws, wss, http or https")
		}
		if c.ExecPath != "" {
			return errors.New("exec_path and remote_url are mutually exclusive")
		}
	}
	return nil
}
