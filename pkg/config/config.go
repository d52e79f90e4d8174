package config

import (
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/autotap/pkg/autoclick"
	"github.com/odvcencio/autotap/pkg/browser"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
	"github.com/odvcencio/autotap/pkg/logging"
)

const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

// Config represents the complete autotap configuration
type Config struct {
	URL     string        `yaml:"url"`
	Clicks  ClicksConfig  `yaml:"clicks"`
	Browser BrowserConfig `yaml:"browser"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// ClicksConfig configures the click loop. Interval and duration are seconds.
type ClicksConfig struct {
	Interval  float64       `yaml:"interval"`
	Duration  float64       `yaml:"duration"`
	Mode      string        `yaml:"mode"`
	Highlight bool          `yaml:"highlight"`
	Points    []PointConfig `yaml:"points"`
}

// PointConfig is one click site in CSS pixels.
type PointConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// BrowserConfig selects and configures the browser driver.
type BrowserConfig struct {
	Driver           string           `yaml:"driver"`
	Headless         bool             `yaml:"headless"`
	NoSandbox        bool             `yaml:"no_sandbox"`
	ExecPath         string           `yaml:"exec_path"`
	RemoteURL        string           `yaml:"remote_url"`
	UserAgent        string           `yaml:"user_agent"`
	Viewport         browser.Viewport `yaml:"viewport"`
	OperationTimeout time.Duration    `yaml:"operation_timeout"`
}

// LoggingConfig configures the JSONL event logs.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// ServerConfig configures the control and metrics HTTP server. An empty Addr
// disables it. Token is required to bind a non-loopback address.
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Clicks: ClicksConfig{
			Interval: 1,
			Duration: 60,
			Mode:     "single",
			Points:   []PointConfig{},
		},
		Browser: BrowserConfig{
			Driver:   DriverChromedp,
			Headless: true,
			Viewport: browser.Viewport{
				Width:             1280,
				Height:            720,
				DeviceScaleFactor: 1.0,
			},
			OperationTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Dir:   filepath.Join("~", ".autotap", "logs"),
			Level: string(logging.LevelInfo),
		},
	}
}

// Load loads configuration from default locations with proper precedence:
// defaults, then ~/.autotap/config.yaml, then ./.autotap/config.yaml, then
// the environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".autotap", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, wrapLoadError(err, "loading user config")
		}
	}

	projectConfigPath := filepath.Join(".", ".autotap", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, wrapLoadError(err, "loading project config")
	}

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, wrapLoadError(err, fmt.Sprintf("loading config from %s", path))
	}

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func wrapLoadError(err error, message string) error {
	if apperrors.IsCode(err, apperrors.ErrCodeConfigParse) {
		return err
	}
	return apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, message)
}

// applyEnvOverrides applies environment variable overrides. Values from
// ~/.autotap/config.env are used when the variable is not set.
func applyEnvOverrides(cfg *Config, configEnv map[string]string) {
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return configEnv[key]
	}

	if v := lookup("AUTOTAP_URL"); v != "" {
		cfg.URL = v
	}
	if v := lookup("AUTOTAP_DRIVER"); v != "" {
		cfg.Browser.Driver = strings.ToLower(v)
	}
	if val, ok := parseBool(lookup("AUTOTAP_HEADLESS")); ok {
		cfg.Browser.Headless = val
	}
	if v := lookup("AUTOTAP_REMOTE_URL"); v != "" {
		cfg.Browser.RemoteURL = v
	}
	if v := lookup("AUTOTAP_EXEC_PATH"); v != "" {
		cfg.Browser.ExecPath = v
	}
	if v := lookup("AUTOTAP_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := lookup("AUTOTAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := lookup("AUTOTAP_METRICS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := lookup("AUTOTAP_SERVER_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
}

func parseBool(val string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...))
	}

	if !validSeconds(c.Clicks.Interval) {
		return invalid("clicks.interval must be a positive number of seconds up to %.0f, got %v", MaxSeconds, c.Clicks.Interval)
	}
	if !validSeconds(c.Clicks.Duration) {
		return invalid("clicks.duration must be a positive number of seconds up to %.0f, got %v", MaxSeconds, c.Clicks.Duration)
	}
	if _, err := autoclick.ParseClickMode(c.Clicks.Mode); err != nil {
		return invalid("clicks.mode: %v (use single, multi or double)", err)
	}
	for i, p := range c.Clicks.Points {
		if !p.point().Finite() {
			return apperrors.New(apperrors.ErrCodeConfigInvalid,
				fmt.Sprintf("clicks.points[%d] must have finite coordinates, got (%v, %v)", i, p.X, p.Y)).
				WithContext("point", i)
		}
	}

	switch c.Browser.Driver {
	case DriverChromedp, DriverRod:
	default:
		return invalid("browser.driver must be %q or %q, got %q", DriverChromedp, DriverRod, c.Browser.Driver)
	}
	if c.Browser.RemoteURL != "" && c.Browser.ExecPath != "" {
		return invalid("browser.exec_path and browser.remote_url are mutually exclusive")
	}
	if c.Browser.Viewport.Width < 0 || c.Browser.Viewport.Height < 0 {
		return invalid("browser.viewport dimensions must not be negative")
	}
	if c.Browser.Viewport.DeviceScaleFactor < 0 {
		return invalid("browser.viewport.device_scale_factor must not be negative")
	}
	if c.Browser.OperationTimeout < 0 {
		return invalid("browser.operation_timeout must not be negative")
	}

	switch logging.Level(c.Logging.Level) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return invalid("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	if addr := strings.TrimSpace(c.Server.Addr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return invalid("server.addr must be host:port, got %q", addr)
		}
	}
	return nil
}

// ToAutoclick converts the click settings to a loop configuration.
func (c ClicksConfig) ToAutoclick() (autoclick.Config, error) {
	mode, err := autoclick.ParseClickMode(c.Mode)
	if err != nil {
		return autoclick.Config{}, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "clicks.mode")
	}
	if !validSeconds(c.Interval) || !validSeconds(c.Duration) {
		return autoclick.Config{}, apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("clicks timing out of range: interval %v, duration %v", c.Interval, c.Duration))
	}
	points := make([]autoclick.Point, 0, len(c.Points))
	for _, p := range c.Points {
		points = append(points, p.point())
	}
	if err := autoclick.ValidatePoints(points); err != nil {
		return autoclick.Config{}, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "clicks.points")
	}
	return autoclick.Config{
		Interval:  seconds(c.Interval),
		Duration:  seconds(c.Duration),
		Points:    points,
		Highlight: c.Highlight,
		Mode:      mode,
	}, nil
}

// MaxSeconds is the longest interval or duration a time.Duration can hold.
const MaxSeconds = float64(math.MaxInt64 / int64(time.Second))

func validSeconds(s float64) bool {
	return s > 0 && s <= MaxSeconds
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (p PointConfig) point() autoclick.Point {
	return autoclick.Point{X: p.X, Y: p.Y}
}

// SessionConfig returns the browser session settings for a view.
func (b BrowserConfig) SessionConfig() browser.SessionConfig {
	cfg := browser.DefaultSessionConfig()
	cfg.Viewport = b.Viewport
	cfg.UserAgent = b.UserAgent
	cfg.OperationTimeout = b.OperationTimeout
	return cfg.Normalize()
}

// LogDir returns the logging directory with ~ expanded.
func (l LoggingConfig) LogDir() string {
	return expandHomeDir(l.Dir)
}

func loadConfigEnvVars() map[string]string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil
	}

	path := filepath.Join(home, ".autotap", "config.env")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	vars := make(map[string]string)
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		line = strings.TrimSpace(line)
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		vars[key] = value
	}
	return vars
}
