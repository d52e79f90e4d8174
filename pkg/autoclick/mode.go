package autoclick

import (
	"fmt"
	"strings"
)

// ClickMode selects how a tick turns the configured points into events.
type ClickMode int

const (
	// ModeSingle clicks the first point once per tick.
	ModeSingle ClickMode = iota
	// ModeMulti clicks every point, in order, once per tick.
	ModeMulti
	// ModeDouble double-clicks the first point once per tick.
	ModeDouble
)

// String returns the mode name understood by the page script.
func (m ClickMode) String() string {
	switch m {
	case ModeSingle:
		return "click"
	case ModeMulti:
		return "multiclick"
	case ModeDouble:
		return "doubleclick"
	default:
		return fmt.Sprintf("ClickMode(%d)", int(m))
	}
}

// ParseClickMode accepts either the page-script names (click, multiclick,
// doubleclick) or the short names (single, multi, double).
func ParseClickMode(s string) (ClickMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "click":
		return ModeSingle, nil
	case "multi", "multiclick":
		return ModeMulti, nil
	case "double", "doubleclick":
		return ModeDouble, nil
	}
	return ModeSingle, fmt.Errorf("unknown click mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m ClickMode) MarshalText() ([]byte, error) {
	switch m {
	case ModeSingle, ModeMulti, ModeDouble:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("invalid click mode %d", int(m))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ClickMode) UnmarshalText(text []byte) error {
	mode, err := ParseClickMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
