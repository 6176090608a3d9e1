package signals

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rmax-ai/loadsim/pkg/metrics"
)

type MetricResult struct {
	Message string  `json:"message"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
}

// MetricEmitter records custom metric values on Prometheus and OpenTelemetry
// and logs them.
type MetricEmitter struct {
	logger  *slog.Logger
	sink    Sink
	metrics *metrics.Collectors
	gauge   metric.Float64Gauge
}

// NewMetricEmitter creates the OpenTelemetry gauge on meter.
func NewMetricEmitter(logger *slog.Logger, meter metric.Meter, sink Sink, m *metrics.Collectors) (*MetricEmitter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &MetricEmitter{logger: logger, sink: sink, metrics: m}
	if meter != nil {
		g, err := meter.Float64Gauge("loadsim.custom_metric",
			metric.WithDescription("Custom metric values emitted through the API"))
		if err != nil {
			return nil, fmt.Errorf("failed to create custom metric gauge: %w", err)
		}
		e.gauge = g
	}
	return e, nil
}

func (e *MetricEmitter) Emit(ctx context.Context, name string, value float64, unit string) MetricResult {
	v := FormatFloat(value)
	e.logger.InfoContext(ctx, fmt.Sprintf("Emitting metric: %s = %s %s", name, v, unit))

	e.metrics.SetCustomMetric(name, unit, value)
	if e.gauge != nil {
		e.gauge.Record(ctx, value, metric.WithAttributes(
			attribute.String("metric.name", name),
			attribute.String("metric.unit", unit),
		))
	}

	e.logger.InfoContext(ctx, fmt.Sprintf("METRIC: %s = %s %s", name, v, unit))

	publish(ctx, e.sink, e.logger, KindMetric, map[string]any{
		"name":  name,
		"value": value,
		"unit":  unit,
	})

	return MetricResult{
		Message: fmt.Sprintf("Metric emitted: %s", name),
		Value:   value,
		Unit:    unit,
	}
}

// FormatFloat renders f the way the demo UI expects: integral values keep a
// trailing ".0" (50 -> "50.0").
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.ContainsAny(s, ".IN") {
		return s
	}
	return s + ".0"
}
