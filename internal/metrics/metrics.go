// Package metrics exposes Prometheus metrics for navigation sessions and the
// layout simulator. A nil *Registry is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for one process.
type Registry struct {
	TicksTotal           prometheus.Counter
	ReconciliationsTotal *prometheus.CounterVec
	SettlesTotal         prometheus.Counter
	EvictionsTotal       prometheus.Counter
	NavigationOpsTotal   *prometheus.CounterVec
	VisibleNodes         prometheus.Gauge
	TrackedNodes         prometheus.Gauge
	TicksToSettle        prometheus.Histogram
	SessionsOpen         prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a registry with every metric registered, plus the Go runtime
// and process collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Registry{
		TicksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "castnav_layout_ticks_total",
			Help: "Total number of simulation ticks",
		}),
		ReconciliationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "castnav_layout_reconciliations_total",
			Help: "Total number of simulator reconciliations by kind",
		}, []string{"kind"}),
		SettlesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "castnav_layout_settles_total",
			Help: "Total number of simulation runs that came to rest",
		}),
		EvictionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "castnav_layout_evictions_total",
			Help: "Total number of simulation entries dropped",
		}),
		NavigationOpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "castnav_navigation_operations_total",
			Help: "Total number of navigation operations by operation and result",
		}, []string{"op", "result"}),
		VisibleNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "castnav_visible_nodes",
			Help: "Number of visible nodes in the most recently updated session",
		}),
		TrackedNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "castnav_tracked_nodes",
			Help: "Number of simulation entries in the most recently updated session",
		}),
		TicksToSettle: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "castnav_layout_ticks_to_settle",
			Help:    "Number of ticks a run needed to settle",
			Buckets: []float64{10, 30, 60, 120, 240, 480},
		}),
		SessionsOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "castnav_sessions_open",
			Help: "Number of open navigation sessions",
		}),
		registry: reg,
	}
}

// Gatherer returns the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler serving the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordTick counts one simulation tick.
func (r *Registry) RecordTick() {
	if r == nil {
		return
	}
	r.TicksTotal.Inc()
}

// RecordReconcile counts a reconciliation and updates the node gauges.
func (r *Registry) RecordReconcile(kind string, visible, tracked int) {
	if r == nil {
		return
	}
	r.ReconciliationsTotal.WithLabelValues(kind).Inc()
	r.VisibleNodes.Set(float64(visible))
	r.TrackedNodes.Set(float64(tracked))
}

// RecordSettle records a run that settled after ticks ticks.
func (r *Registry) RecordSettle(ticks int) {
	if r == nil {
		return
	}
	r.SettlesTotal.Inc()
	r.TicksToSettle.Observe(float64(ticks))
}

// RecordEvictions adds n dropped simulation entries.
func (r *Registry) RecordEvictions(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.EvictionsTotal.Add(float64(n))
}

// RecordNavigation counts a navigation operation. A nil err is "ok".
func (r *Registry) RecordNavigation(op string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.NavigationOpsTotal.WithLabelValues(op, result).Inc()
}

// SessionOpened and SessionClosed track the open session gauge.
func (r *Registry) SessionOpened() {
	if r == nil {
		return
	}
	r.SessionsOpen.Inc()
}

func (r *Registry) SessionClosed() {
	if r == nil {
		return
	}
	r.SessionsOpen.Dec()
}
