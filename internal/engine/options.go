package engine

import (
	"github.com/roach88/actionstore/internal/logging"
	"github.com/roach88/actionstore/internal/metrics"
)

// DefaultConcurrency bounds per-item serialize/deserialize work in batches.
const DefaultConcurrency = 8

type config struct {
	sink        logging.Sink
	sinkSet     bool
	level       logging.Level
	concurrency int
	metrics     *metrics.Collector
	name        string
}

func defaultConfig() config {
	return config{
		level:       logging.DefaultLevel,
		concurrency: DefaultConcurrency,
	}
}

// Option configures an Engine.
type Option func(*config)

// WithSink sets the log sink. Without this option the engine logs to a
// console sink on stderr; WithSink(nil) disables logging.
func WithSink(sink logging.Sink) Option {
	return func(c *config) {
		c.sink = sink
		c.sinkSet = true
	}
}

// WithLogLevel sets the log threshold.
//
// Default: logging.LevelWarn
func WithLogLevel(level logging.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithConcurrency bounds how many items of a batch are serialized or
// deserialized at once. Values below 1 mean 1.
//
// Default: 8 (DefaultConcurrency)
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = max(n, 1)
	}
}

// WithMetrics records operation counts and latencies on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithName sets the backend label used in logs and metrics. By default it
// comes from the backend's Name method, or "custom".
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}
