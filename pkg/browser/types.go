package browser

import "time"

// Viewport defines the browser viewport size. It is the display region the
// page is laid out in; click coordinates are CSS pixels inside it.
type Viewport struct {
	Width             int     `json:"width" yaml:"width"`
	Height            int     `json:"height" yaml:"height"`
	DeviceScaleFactor float64 `json:"device_scale_factor,omitempty" yaml:"device_scale_factor"`
}

// InjectionTime selects when a user script runs in a new document.
type InjectionTime string

const (
	// InjectAtDocumentStart runs the script before any page script.
	InjectAtDocumentStart InjectionTime = "document_start"
	// InjectAtDocumentEnd runs the script once the document has been parsed.
	InjectAtDocumentEnd InjectionTime = "document_end"
)

// UserScript is a script installed once and evaluated in every new document
// the session loads.
type UserScript struct {
	Source        string        `json:"source"`
	InjectAt      InjectionTime `json:"inject_at"`
	MainFrameOnly bool          `json:"main_frame_only"`
}

// SessionConfig configures a browser session.
type SessionConfig struct {
	SessionID        string        `json:"session_id"`
	Viewport         Viewport      `json:"viewport"`
	UserAgent        string        `json:"user_agent,omitempty"`
	OperationTimeout time.Duration `json:"operation_timeout,omitempty"`
}

// DefaultSessionConfig returns the recommended session defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Viewport: Viewport{
			Width:             1280,
			Height:            720,
			DeviceScaleFactor: 1.0,
		},
		OperationTimeout: 30 * time.Second,
	}
}

// Normalize fills zero fields of cfg from DefaultSessionConfig.
func (cfg SessionConfig) Normalize() SessionConfig {
	merged := DefaultSessionConfig()
	merged.SessionID = cfg.SessionID
	if cfg.Viewport.Width != 0 {
		merged.Viewport.Width = cfg.Viewport.Width
	}
	if cfg.Viewport.Height != 0 {
		merged.Viewport.Height = cfg.Viewport.Height
	}
	if cfg.Viewport.DeviceScaleFactor != 0 {
		merged.Viewport.DeviceScaleFactor = cfg.Viewport.DeviceScaleFactor
	}
	if cfg.UserAgent != "" {
		merged.UserAgent = cfg.UserAgent
	}
	if cfg.OperationTimeout > 0 {
		merged.OperationTimeout = cfg.OperationTimeout
	}
	return merged
}
