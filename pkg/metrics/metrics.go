package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the Prometheus series exported by loadsimd.
// A nil *Collectors is valid and records nothing.
type Collectors struct {
	// Requests counts calls to the simulation and signal endpoints.
	Requests *prometheus.CounterVec

	// TasksRunning tracks the number of running workloads per kind.
	TasksRunning *prometheus.GaugeVec

	// TasksTotal counts finished workloads per kind and final state.
	TasksTotal *prometheus.CounterVec

	// CustomMetric holds the last value emitted through /api/metrics.
	CustomMetric *prometheus.GaugeVec

	// LogLines counts synthetic log lines per level.
	LogLines *prometheus.CounterVec

	// Spans counts synthetic trace spans per status.
	Spans *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
// Registration panics on duplicates, like prometheus.MustRegister.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"path"},
		),
		TasksRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loadsim_tasks_running",
				Help: "Number of simulation tasks currently running",
			},
			[]string{"kind"},
		),
		TasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadsim_tasks_total",
				Help: "Total simulation tasks finished, by final state",
			},
			[]string{"kind", "state"},
		),
		CustomMetric: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loadsim_custom_metric",
				Help: "Last value emitted for a custom metric",
			},
			[]string{"name", "unit"},
		),
		LogLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadsim_log_lines_total",
				Help: "Total synthetic log lines emitted",
			},
			[]string{"level"},
		),
		Spans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadsim_spans_total",
				Help: "Total synthetic trace spans generated",
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(c.Requests, c.TasksRunning, c.TasksTotal, c.CustomMetric, c.LogLines, c.Spans)
	}
	return c
}

func (c *Collectors) ObserveRequest(path string) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(path).Inc()
}

func (c *Collectors) TaskStarted(kind string) {
	if c == nil {
		return
	}
	c.TasksRunning.WithLabelValues(kind).Inc()
}

func (c *Collectors) TaskFinished(kind, state string) {
	if c == nil {
		return
	}
	c.TasksRunning.WithLabelValues(kind).Dec()
	c.TasksTotal.WithLabelValues(kind, state).Inc()
}

func (c *Collectors) SetCustomMetric(name, unit string, value float64) {
	if c == nil {
		return
	}
	c.CustomMetric.WithLabelValues(name, unit).Set(value)
}

func (c *Collectors) AddLogLines(level string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.LogLines.WithLabelValues(level).Add(float64(n))
}

func (c *Collectors) ObserveSpan(status string) {
	if c == nil {
		return
	}
	c.Spans.WithLabelValues(status).Inc()
}
