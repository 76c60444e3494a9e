package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Observe("memory", "create_action", OutcomeOK, 3*time.Millisecond)
	c.Observe("memory", "create_action", OutcomeOK, time.Millisecond)
	c.Observe("memory", "create_action", OutcomeInvalid, time.Millisecond)
	c.Written("memory", 2)
	c.Returned("memory", 5)
	c.Returned("memory", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Operations.WithLabelValues("memory", "create_action", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("memory", "create_action", OutcomeInvalid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ActionsWritten.WithLabelValues("memory")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.ActionsReturned.WithLabelValues("memory")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.Duration))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Observe("memory", "find", OutcomeOK, time.Second)
		c.Written("memory", 1)
		c.Returned("memory", 1)
	})
}

func TestNewWithoutRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
