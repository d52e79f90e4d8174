package browser

import (
	"context"
	"encoding/json"
)

//go:generate mockgen -destination=browsermock/mock_browser.go -package=browsermock . Runtime,BrowserSession

// Runtime manages browser sessions.
type Runtime interface {
	NewSession(ctx context.Context, cfg SessionConfig) (BrowserSession, error)
	Close() error
}

// BrowserSession is the port implemented by browser runtime adapters: one
// page that can load a URL, carry user scripts and evaluate script.
type BrowserSession interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	InstallScript(ctx context.Context, script UserScript) error
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
	Close() error
}
