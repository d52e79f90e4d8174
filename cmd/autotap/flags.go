package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/autotap/pkg/config"
)

// pointListValue collects repeatable "x,y" flags.
type pointListValue struct {
	target *[]config.PointConfig
}

func (p *pointListValue) String() string {
	if p == nil || p.target == nil {
		return ""
	}
	parts := make([]string, 0, len(*p.target))
	for _, pt := range *p.target {
		parts = append(parts, fmt.Sprintf("%g,%g", pt.X, pt.Y))
	}
	return strings.Join(parts, " ")
}

func (p *pointListValue) Set(value string) error {
	if p.target == nil {
		return fmt.Errorf("no target slice configured")
	}
	pt, err := parsePoint(value)
	if err != nil {
		return err
	}
	*p.target = append(*p.target, pt)
	return nil
}

func parsePoint(value string) (config.PointConfig, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(value), ",")
	if !ok {
		return config.PointConfig{}, fmt.Errorf("point %q must be x,y", value)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return config.PointConfig{}, fmt.Errorf("point %q: bad x: %w", value, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return config.PointConfig{}, fmt.Errorf("point %q: bad y: %w", value, err)
	}
	return config.PointConfig{X: x, Y: y}, nil
}
