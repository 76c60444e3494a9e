// Package metrics exposes Prometheus instruments for engine operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeInvalid    = "invalid"
	OutcomeNotFound   = "not_found"
	OutcomeBackendErr = "error"
)

// Collector groups the engine's instruments.
// A nil *Collector is valid and records nothing.
type Collector struct {
	Operations      *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	ActionsWritten  *prometheus.CounterVec
	ActionsReturned *prometheus.CounterVec
}

// New registers the instruments on reg. A nil reg uses a private registry
// that nothing scrapes.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Collector{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "actionstore_operations_total",
			Help: "Engine operations by name and outcome.",
		}, []string{"backend", "op", "outcome"}),

		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actionstore_operation_duration_seconds",
			Help:    "Engine operation latency including validation and backend calls.",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"backend", "op"}),

		ActionsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "actionstore_actions_written_total",
			Help: "Actions persisted through CreateAction and CreateManyActions.",
		}, []string{"backend"}),

		ActionsReturned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "actionstore_actions_returned_total",
			Help: "Actions returned by find operations.",
		}, []string{"backend"}),
	}
}

// Observe records one completed operation.
func (c *Collector) Observe(backend, op, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Operations.WithLabelValues(backend, op, outcome).Inc()
	c.Duration.WithLabelValues(backend, op).Observe(elapsed.Seconds())
}

// Written counts persisted actions.
func (c *Collector) Written(backend string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ActionsWritten.WithLabelValues(backend).Add(float64(n))
}

// Returned counts actions handed back by finds.
func (c *Collector) Returned(backend string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ActionsReturned.WithLabelValues(backend).Add(float64(n))
}
