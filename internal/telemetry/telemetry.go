// Package telemetry counts solver work across the integrations of one
// command and writes the counters in the Prometheus text format, suitable
// for the node exporter textfile collector.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/fermsim/internal/dynamo"
)

type Collector struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	steps       *prometheus.CounterVec
	jacobians   *prometheus.CounterVec
	switches    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fermsim_integrations_total",
				Help: "Integrations run, by mode, final method and outcome",
			},
			[]string{"mode", "method", "outcome"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fermsim_rhs_evaluations_total",
				Help: "Right-hand side evaluations",
			},
			[]string{"mode", "method"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fermsim_steps_total",
				Help: "Solver steps, accepted or rejected",
			},
			[]string{"mode", "method", "result"},
		),
		jacobians: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fermsim_jacobian_evaluations_total",
				Help: "Finite-difference Jacobian evaluations",
			},
			[]string{"mode", "method"},
		),
		switches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fermsim_method_switches_total",
				Help: "Switches between the non-stiff and the stiff method",
			},
			[]string{"mode"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fermsim_integration_duration_seconds",
				Help:    "Wall time of one integration",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"mode"},
		),
	}
	c.registry.MustRegister(c.runs, c.evaluations, c.steps, c.jacobians, c.switches, c.duration)
	return c
}

// Record adds the statistics of one integration.
func (c *Collector) Record(mode, method string, stats dynamo.Stats, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.runs.WithLabelValues(mode, method, outcome).Inc()
	c.evaluations.WithLabelValues(mode, method).Add(float64(stats.Evaluations))
	c.steps.WithLabelValues(mode, method, "accepted").Add(float64(stats.Accepted))
	c.steps.WithLabelValues(mode, method, "rejected").Add(float64(stats.Rejected))
	c.jacobians.WithLabelValues(mode, method).Add(float64(stats.Jacobians))
	c.switches.WithLabelValues(mode).Add(float64(stats.Switches))
	c.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// WriteTextfile atomically writes every counter to path.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
