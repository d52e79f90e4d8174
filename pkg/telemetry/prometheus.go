package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "autotap"

// PromExporter mirrors hub events into Prometheus collectors.
type PromExporter struct {
	registry *prometheus.Registry

	loopsStarted     prometheus.Counter
	loopsStopped     prometheus.Counter
	loopsExpired     prometheus.Counter
	loopRunning      prometheus.Gauge
	dispatches       prometheus.Counter
	dispatchedPoints prometheus.Counter
	clickFailures    prometheus.Counter
	sessionsActive   prometheus.Gauge
	navigations      prometheus.Counter
	evaluateLatency  prometheus.Histogram
	configReloads    prometheus.Counter
}

// NewPromExporter registers the autotap collectors on reg. A nil registry
// gets a fresh one.
func NewPromExporter(reg *prometheus.Registry) *PromExporter {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &PromExporter{
		registry: reg,
		loopsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "loops_started_total",
			Help:      "Click loops started.",
		}),
		loopsStopped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "loops_stopped_total",
			Help:      "Click loops stopped, for any reason.",
		}),
		loopsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "loops_expired_total",
			Help:      "Click loops that ran out of duration.",
		}),
		loopRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "loop_running",
			Help:      "1 while a click loop is running.",
		}),
		dispatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dispatches_total",
			Help:      "Click dispatches submitted to the page.",
		}),
		dispatchedPoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dispatched_points_total",
			Help:      "Coordinates carried by submitted dispatches.",
		}),
		clickFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dispatch_failures_total",
			Help:      "Dispatches whose page script reported an error.",
		}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "browser_sessions_active",
			Help:      "Open browser sessions.",
		}),
		navigations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "browser_navigations_total",
			Help:      "Page loads requested.",
		}),
		evaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "browser_evaluate_seconds",
			Help:      "Latency of script evaluations in the page.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		configReloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "config_reloads_total",
			Help:      "Configuration files applied after a change on disk.",
		}),
	}
}

// TrackHub exports hub's dropped-delivery count. Call it once per hub.
func (e *PromExporter) TrackHub(hub *Hub) {
	if hub == nil {
		return
	}
	promauto.With(e.registry).NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "telemetry_dropped_events_total",
		Help:      "Telemetry events not delivered to a subscriber that fell behind.",
	}, func() float64 { return float64(hub.Dropped()) })
}

// Registry returns the registry the collectors live on.
func (e *PromExporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *PromExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Observe folds a single event into the collectors.
func (e *PromExporter) Observe(event Event) {
	switch event.Type {
	case EventLoopStarted:
		e.loopsStarted.Inc()
		e.loopRunning.Set(1)
	case EventLoopStopped:
		e.loopsStopped.Inc()
		e.loopRunning.Set(0)
	case EventLoopExpired:
		e.loopsExpired.Inc()
	case EventClickDispatched:
		e.dispatches.Inc()
		e.dispatchedPoints.Add(float64(intData(event.Data, "points")))
	case EventClickFailed:
		e.clickFailures.Inc()
	case EventBrowserSessionCreated:
		e.sessionsActive.Inc()
	case EventBrowserSessionClosed:
		e.sessionsActive.Dec()
	case EventBrowserNavigate:
		e.navigations.Inc()
	case EventBrowserEvaluate, EventBrowserEvaluateFailed:
		e.evaluateLatency.Observe(float64(intData(event.Data, "latency_ms")) / 1000)
	case EventConfigReloaded:
		e.configReloads.Inc()
	}
}

// Run consumes events until ctx is done or the channel closes. Callers
// subscribe before starting work so no early event is missed.
func (e *PromExporter) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			e.Observe(event)
		}
	}
}

func intData(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}
