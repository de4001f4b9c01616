package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveStep(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("NewRunCollector: %v", err)
	}

	c.ObserveStep(20*time.Millisecond, 5, 3, 18.25)
	c.ObserveStep(10*time.Millisecond, 5, 1, 17.5)
	c.ObserveRecord()

	if got := testutil.ToFloat64(c.Steps); got != 2 {
		t.Fatalf("steps = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.NodeEvaluations.WithLabelValues("day")); got != 4 {
		t.Fatalf("day evaluations = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.NodeEvaluations.WithLabelValues("night")); got != 6 {
		t.Fatalf("night evaluations = %v, want 6", got)
	}
	if got := testutil.ToFloat64(c.DaytimeNodes); got != 1 {
		t.Fatalf("daytime gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.MaxWaterTemperature); got != 17.5 {
		t.Fatalf("max temperature gauge = %v, want 17.5", got)
	}
	if got := testutil.ToFloat64(c.Records); got != 1 {
		t.Fatalf("records = %v, want 1", got)
	}
	if n := histogramSampleCount(t, reg, "heatsource_step_duration_seconds"); n != 2 {
		t.Fatalf("step duration sample_count = %d, want 2", n)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *RunCollector
	c.ObserveStep(time.Second, 1, 1, 10)
	c.ObserveRecord()
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRunCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	second.ObserveStep(time.Millisecond, 1, 0, 12)
	if got := testutil.ToFloat64(first.Steps); got != 1 {
		t.Fatalf("shared steps counter = %v, want 1", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewRunCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.ObserveStep(time.Millisecond, 2, 2, 21.5)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"heatsource_steps_total",
		"heatsource_node_evaluations_total",
		"heatsource_step_duration_seconds",
		"heatsource_daytime_nodes",
		"heatsource_max_water_temperature_celsius 21.5",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	families, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_HISTOGRAM {
			continue
		}
		for _, m := range mf.GetMetric() {
			return m.GetHistogram().GetSampleCount()
		}
	}
	return 0
}
