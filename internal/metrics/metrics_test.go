package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestNew(t *testing.T) {
	r := New()
	if r.TicksTotal == nil || r.ReconciliationsTotal == nil || r.TicksToSettle == nil {
		t.Fatal("metrics not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestRecord(t *testing.T) {
	r := New()

	r.RecordTick()
	r.RecordTick()
	if got := counterValue(t, r.TicksTotal); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}

	r.RecordReconcile("reheat", 5, 7)
	c, err := r.ReconciliationsTotal.GetMetricWithLabelValues("reheat")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	if got := counterValue(t, c); got != 1 {
		t.Errorf("reheat reconciliations = %v, want 1", got)
	}
	if got := gaugeValue(t, r.VisibleNodes); got != 5 {
		t.Errorf("visible = %v, want 5", got)
	}
	if got := gaugeValue(t, r.TrackedNodes); got != 7 {
		t.Errorf("tracked = %v, want 7", got)
	}

	r.RecordEvictions(3)
	r.RecordEvictions(0)
	if got := counterValue(t, r.EvictionsTotal); got != 3 {
		t.Errorf("evictions = %v, want 3", got)
	}

	r.RecordNavigation("focus", nil)
	r.RecordNavigation("focus", errors.New("boom"))
	r.RecordNavigation("focus", errors.New("boom"))
	bad, _ := r.NavigationOpsTotal.GetMetricWithLabelValues("focus", "error")
	if got := counterValue(t, bad); got != 2 {
		t.Errorf("focus errors = %v, want 2", got)
	}

	r.RecordSettle(42)
	if got := counterValue(t, r.SettlesTotal); got != 1 {
		t.Errorf("settles = %v, want 1", got)
	}

	r.SessionOpened()
	r.SessionOpened()
	r.SessionClosed()
	if got := gaugeValue(t, r.SessionsOpen); got != 1 {
		t.Errorf("sessions = %v, want 1", got)
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	r.RecordTick()
	r.RecordReconcile("initial", 1, 1)
	r.RecordSettle(1)
	r.RecordEvictions(1)
	r.RecordNavigation("back", nil)
	r.SessionOpened()
	r.SessionClosed()
}

func TestHandler(t *testing.T) {
	r := New()
	r.RecordTick()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "castnav_layout_ticks_total 1") {
		t.Errorf("handler output missing tick counter:\n%s", body)
	}
}
