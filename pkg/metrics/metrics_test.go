package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveRequest("/api/simulate/cpu")
	c.ObserveRequest("/api/simulate/cpu")
	c.ObserveRequest("/api/logs")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Requests.WithLabelValues("/api/simulate/cpu")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Requests.WithLabelValues("/api/logs")))

	expected := `
# HELP http_requests_total Total HTTP requests
# TYPE http_requests_total counter
http_requests_total{path="/api/logs"} 1
http_requests_total{path="/api/simulate/cpu"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"))
}

func TestCollectors_TaskLifecycle(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.TaskStarted("memory")
	c.TaskStarted("memory")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.TasksRunning.WithLabelValues("memory")))

	c.TaskFinished("memory", "completed")
	c.TaskFinished("memory", "canceled")
	assert.Equal(t, 0.0, testutil.ToFloat64(c.TasksRunning.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TasksTotal.WithLabelValues("memory", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TasksTotal.WithLabelValues("memory", "canceled")))
}

func TestCollectors_Signals(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.SetCustomMetric("latency", "ms", 12.5)
	c.AddLogLines("WARN", 3)
	c.AddLogLines("WARN", 0)
	c.ObserveSpan("error")

	assert.Equal(t, 12.5, testutil.ToFloat64(c.CustomMetric.WithLabelValues("latency", "ms")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.LogLines.WithLabelValues("WARN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Spans.WithLabelValues("error")))
}

func TestCollectors_NilSafe(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveRequest("/x")
		c.TaskStarted("cpu")
		c.TaskFinished("cpu", "failed")
		c.SetCustomMetric("a", "b", 1)
		c.AddLogLines("INFO", 1)
		c.ObserveSpan("success")
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
