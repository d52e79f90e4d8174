package rod

import (
	"errors"
	"strings"
	"time"

	"github.com/odvcencio/autotap/pkg/browser"
)

// Config controls how the rod adapter starts or attaches to a browser.
type Config struct {
	// Bin overrides the browser binary. Empty lets the launcher find or
	// download one.
	Bin string
	// RemoteURL attaches to a running browser. Both the DevTools HTTP
	// endpoint and a ws:// URL are accepted.
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
	defaults.Bin = strings.TrimSpace(c.Bin)
	defaults.RemoteURL = strings.TrimSpace(c.RemoteURL)
	defaults.UserDataDir = strings.TrimSpace(c.UserDataDir)
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
	if c.RemoteURL != "" && c.Bin != "" {
		return errors.New("exec_path and remote_url are mutually exclusive")
	}
	return nil
}
