// Package observability carries the Prometheus metrics and OpenTelemetry
// tracing used by a model run.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunCollector bundles the Prometheus metrics of the run loop.
type RunCollector struct {
	gatherer prometheus.Gatherer

	Steps           prometheus.Counter
	NodeEvaluations *prometheus.CounterVec
	StepDuration    prometheus.Histogram
	Records         prometheus.Counter

	DaytimeNodes        prometheus.Gauge
	MaxWaterTemperature prometheus.Gauge
}

// NewRunCollector registers run metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heatsource_steps_total",
		Help: "Number of completed model timesteps.",
	}), "heatsource_steps_total")
	if err != nil {
		return nil, err
	}

	evals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "heatsource_node_evaluations_total",
		Help: "Heat flux evaluations, labeled by whether the sun was above the horizon.",
	}, []string{"period"})
	evals, err = registerCounterVec(reg, evals, "heatsource_node_evaluations_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "heatsource_step_duration_seconds",
		Help:    "Wall time spent on one model timestep.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "heatsource_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	records, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heatsource_records_total",
		Help: "Number of output rows recorded.",
	}), "heatsource_records_total")
	if err != nil {
		return nil, err
	}

	daytime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "heatsource_daytime_nodes",
		Help: "Nodes with the sun above the horizon at the last step.",
	}), "heatsource_daytime_nodes")
	if err != nil {
		return nil, err
	}
	maxTemp, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "heatsource_max_water_temperature_celsius",
		Help: "Highest node water temperature at the last step.",
	}), "heatsource_max_water_temperature_celsius")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:            gatherer,
		Steps:               steps,
		NodeEvaluations:     evals,
		StepDuration:        duration,
		Records:             records,
		DaytimeNodes:        daytime,
		MaxWaterTemperature: maxTemp,
	}, nil
}

// ObserveStep records one completed timestep. It is safe on a nil collector.
func (c *RunCollector) ObserveStep(elapsed time.Duration, nodes, daytime int, maxTemp float64) {
	if c == nil {
		return
	}
	c.Steps.Inc()
	c.StepDuration.Observe(elapsed.Seconds())
	c.NodeEvaluations.WithLabelValues("day").Add(float64(daytime))
	c.NodeEvaluations.WithLabelValues("night").Add(float64(nodes - daytime))
	c.DaytimeNodes.Set(float64(daytime))
	c.MaxWaterTemperature.Set(maxTemp)
}

// ObserveRecord counts one output row.
func (c *RunCollector) ObserveRecord() {
	if c == nil {
		return
	}
	c.Records.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RunCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
