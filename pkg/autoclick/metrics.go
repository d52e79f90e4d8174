package autoclick

import "sync/atomic"

// Metrics counts loop activity.
type Metrics struct {
	RunsStarted      atomic.Int64
	RunsStopped      atomic.Int64
	Expiries         atomic.Int64
	Ticks            atomic.Int64
	Dispatches       atomic.Int64
	DispatchedPoints atomic.Int64
	BridgeSuccesses  atomic.Int64
	BridgeFailures   atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		RunsStarted:      m.RunsStarted.Load(),
		RunsStopped:      m.RunsStopped.Load(),
		Expiries:         m.Expiries.Load(),
		Ticks:            m.Ticks.Load(),
		Dispatches:       m.Dispatches.Load(),
		DispatchedPoints: m.DispatchedPoints.Load(),
		BridgeSuccesses:  m.BridgeSuccesses.Load(),
		BridgeFailures:   m.BridgeFailures.Load(),
	}
}

// MetricsSnapshot is a point-in-time copy of loop metrics.
type MetricsSnapshot struct {
	RunsStarted      int64 `json:"runs_started"`
	RunsStopped      int64 `json:"runs_stopped"`
	Expiries         int64 `json:"expiries"`
	Ticks            int64 `json:"ticks"`
	Dispatches       int64 `json:"dispatches"`
	DispatchedPoints int64 `json:"dispatched_points"`
	BridgeSuccesses  int64 `json:"bridge_successes"`
	BridgeFailures   int64 `json:"bridge_failures"`
}
