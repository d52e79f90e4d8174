package autoclick

import (
	"fmt"
	"math"
	"time"
)

// Point is a click site in the page's CSS pixel space. Points outside the
// viewport are passed through unchanged.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether both coordinates are real numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// ValidatePoints rejects NaN and infinite coordinates.
func ValidatePoints(points []Point) error {
	for i, p := range points {
		if !p.Finite() {
			return fmt.Errorf("point %d (%v, %v) is not a finite coordinate", i, p.X, p.Y)
		}
	}
	return nil
}

// Config is the click loop configuration.
type Config struct {
	Interval  time.Duration `json:"interval"`
	Duration  time.Duration `json:"duration"`
	Points    []Point       `json:"points"`
	Highlight bool          `json:"highlight"`
	Mode      ClickMode     `json:"mode"`
}

// DefaultConfig returns the configuration a new controller starts with.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Duration: 60 * time.Second,
		Points:   []Point{},
		Mode:     ModeSingle,
	}
}

// Clone returns a copy that shares no memory with c.
func (c Config) Clone() Config {
	c.Points = clonePoints(c.Points)
	return c
}

func clonePoints(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

// LoopState is a snapshot of the loop. RunID names one start-to-stop cycle
// and is empty while idle.
type LoopState struct {
	Running bool          `json:"running"`
	Elapsed time.Duration `json:"elapsed"`
	RunID   string        `json:"run_id,omitempty"`
}
