package config

import (
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/odvcencio/autotap/pkg/errors"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Strings override when non-empty;
// numbers, booleans and lists override only when the key is present in raw,
// so an explicit zero or false wins over a default.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.URL != "" {
		base.URL = override.URL
	}

	if fieldSet(raw, "clicks", "interval") {
		base.Clicks.Interval = override.Clicks.Interval
	}
	if fieldSet(raw, "clicks", "duration") {
		base.Clicks.Duration = override.Clicks.Duration
	}
	if override.Clicks.Mode != "" {
		base.Clicks.Mode = override.Clicks.Mode
	}
	if fieldSet(raw, "clicks", "highlight") {
		base.Clicks.Highlight = override.Clicks.Highlight
	}
	if fieldSet(raw, "clicks", "points") {
		base.Clicks.Points = append([]PointConfig{}, override.Clicks.Points...)
	}

	if override.Browser.Driver != "" {
		base.Browser.Driver = override.Browser.Driver
	}
	if fieldSet(raw, "browser", "headless") {
		base.Browser.Headless = override.Browser.Headless
	}
	if fieldSet(raw, "browser", "no_sandbox") {
		base.Browser.NoSandbox = override.Browser.NoSandbox
	}
	if override.Browser.ExecPath != "" {
		base.Browser.ExecPath = override.Browser.ExecPath
	}
	if override.Browser.RemoteURL != "" {
		base.Browser.RemoteURL = override.Browser.RemoteURL
	}
	if override.Browser.UserAgent != "" {
		base.Browser.UserAgent = override.Browser.UserAgent
	}
	if fieldSet(raw, "browser", "viewport", "width") {
		base.Browser.Viewport.Width = override.Browser.Viewport.Width
	}
	if fieldSet(raw, "browser", "viewport", "height") {
		base.Browser.Viewport.Height = override.Browser.Viewport.Height
	}
	if fieldSet(raw, "browser", "viewport", "device_scale_factor") {
		base.Browser.Viewport.DeviceScaleFactor = override.Browser.Viewport.DeviceScaleFactor
	}
	if override.Browser.OperationTimeout != 0 {
		base.Browser.OperationTimeout = override.Browser.OperationTimeout
	}

	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.Token != "" {
		base.Server.Token = override.Server.Token
	}
}

func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
