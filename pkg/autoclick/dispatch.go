package autoclick

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FunctionName is the global the page script defines.
const FunctionName = "autoClick"

// Dispatch is the payload of one tick: the points to click, the mode and
// whether to draw highlights.
type Dispatch struct {
	Points    []Point
	Mode      ClickMode
	Highlight bool
}

// NewDispatch selects the points a tick should click. Single and double
// modes use only the first point; multi uses all of them. With no points the
// dispatch carries an empty list.
func NewDispatch(cfg Config) Dispatch {
	points := []Point{}
	switch cfg.Mode {
	case ModeMulti:
		points = clonePoints(cfg.Points)
	default:
		if len(cfg.Points) > 0 {
			points = []Point{cfg.Points[0]}
		}
	}
	return Dispatch{Points: points, Mode: cfg.Mode, Highlight: cfg.Highlight}
}

// Script renders the call evaluated in the page, e.g.
//
//	autoClick([{"x":10,"y":20}],"click",false);
//
// It fails when a point cannot be written as JSON, such as NaN.
func (d Dispatch) Script() (string, error) {
	points := d.Points
	if points == nil {
		points = []Point{}
	}
	if err := ValidatePoints(points); err != nil {
		return "", err
	}
	pointsJSON, err := json.Marshal(points)
	if err != nil {
		return "", fmt.Errorf("encode points: %w", err)
	}
	modeJSON, err := json.Marshal(d.Mode.String())
	if err != nil {
		return "", fmt.Errorf("encode mode: %w", err)
	}

	var b strings.Builder
	b.WriteString(FunctionName)
	b.WriteByte('(')
	b.Write(pointsJSON)
	b.WriteByte(',')
	b.Write(modeJSON)
	b.WriteByte(',')
	b.WriteString(strconv.FormatBool(d.Highlight))
	b.WriteString(");")
	return b.String(), nil
}
