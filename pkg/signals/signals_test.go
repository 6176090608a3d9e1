package signals

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rmax-ai/loadsim/pkg/metrics"
	"github.com/rmax-ai/loadsim/pkg/tasks"
)

type memSink struct {
	mu      sync.Mutex
	signals []Signal
	err     error
}

func (m *memSink) Publish(_ context.Context, s Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, s)
	return m.err
}

type logLine struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func readLines(t *testing.T, buf *bytes.Buffer) []logLine {
	t.Helper()
	var out []logLine
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var l logLine
		require.NoError(t, json.Unmarshal([]byte(raw), &l))
		out = append(out, l)
	}
	return out
}

func TestLogGenerator_Generate(t *testing.T) {
	var buf bytes.Buffer
	sink := &memSink{}
	m := metrics.New(prometheus.NewRegistry())
	g := NewLogGenerator(newJSONLogger(&buf), sink, m)

	res, err := g.Generate(context.Background(), "warn", "disk almost full", 3)
	require.NoError(t, err)
	assert.Equal(t, LogResult{Message: "Generated 3 log(s) at WARN level", Level: "WARN", Count: 3}, res)

	lines := readLines(t, &buf)
	require.Len(t, lines, 3)
	for i, l := range lines {
		assert.Equal(t, "WARN", l.Level)
		assert.Equal(t, "disk almost full - "+string(rune('1'+i)), l.Msg)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.LogLines.WithLabelValues("WARN")))
	require.Len(t, sink.signals, 1)
	assert.Equal(t, KindLog, sink.signals[0].Kind)
}

func TestLogGenerator_Levels(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{"info", "INFO"},
		{"Error", "ERROR"},
		{"WARN", "WARN"},
	} {
		var buf bytes.Buffer
		g := NewLogGenerator(newJSONLogger(&buf), nil, nil)
		res, err := g.Generate(context.Background(), tt.in, "m", 1)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Level)
		lines := readLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, tt.want, lines[0].Level)
	}
}

func TestLogGenerator_InvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	sink := &memSink{}
	g := NewLogGenerator(newJSONLogger(&buf), sink, nil)

	for _, level := range []string{"DEBUG", "warning", ""} {
		_, err := g.Generate(context.Background(), level, "m", 5)
		assert.ErrorIs(t, err, ErrInvalidLevel)
	}
	assert.Empty(t, buf.String())
	assert.Empty(t, sink.signals)
	assert.Equal(t, "Invalid log level", ErrInvalidLevel.Error())
}

func TestLogGenerator_NonPositiveCount(t *testing.T) {
	var buf bytes.Buffer
	g := NewLogGenerator(newJSONLogger(&buf), nil, nil)

	res, err := g.Generate(context.Background(), "INFO", "m", -2)
	require.NoError(t, err)
	assert.Equal(t, -2, res.Count)
	assert.Empty(t, buf.String())
}

func TestMetricEmitter_Emit(t *testing.T) {
	var buf bytes.Buffer
	sink := &memSink{err: errors.New("sink down")}
	m := metrics.New(prometheus.NewRegistry())
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	e, err := NewMetricEmitter(newJSONLogger(&buf), meter, sink, m)
	require.NoError(t, err)

	res := e.Emit(context.Background(), "queue_depth", 42, "Count")
	assert.Equal(t, MetricResult{Message: "Metric emitted: queue_depth", Value: 42, Unit: "Count"}, res)

	lines := readLines(t, &buf)
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "Emitting metric: queue_depth = 42.0 Count", lines[0].Msg)
	assert.Equal(t, "METRIC: queue_depth = 42.0 Count", lines[1].Msg)
	// the failing sink is logged, not returned
	assert.Equal(t, "signal_publish_failed", lines[len(lines)-1].Msg)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.CustomMetric.WithLabelValues("queue_depth", "Count")))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	got := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "loadsim.custom_metric", got.Name)
	gauge, ok := got.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 42.0, gauge.DataPoints[0].Value)
}

func TestMetricEmitter_WithoutMeter(t *testing.T) {
	e, err := NewMetricEmitter(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), nil, nil, nil)
	require.NoError(t, err)
	res := e.Emit(context.Background(), "custom_metric", 0, "Count")
	assert.Equal(t, 0.0, res.Value)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "50.0", FormatFloat(50))
	assert.Equal(t, "0.0", FormatFloat(0))
	assert.Equal(t, "12.5", FormatFloat(12.5))
	assert.Equal(t, "-3.0", FormatFloat(-3))
}

func newTestTraceSimulator(t *testing.T, draws []float64) (*TraceSimulator, *tracetest.SpanRecorder, *memSink) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	sink := &memSink{}
	s := NewTraceSimulator(tp.Tracer("test"), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), sink, nil)

	i := 0
	s.rand = func() float64 {
		v := draws[i%len(draws)]
		i++
		return v
	}
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s, rec, sink
}

func TestTraceSimulator_LinearChain(t *testing.T) {
	// duration draw, error draw per span
	s, rec, sink := newTestTraceSimulator(t, []float64{0.5, 0.9, 0.0, 0.05, 1.0 - 1e-9, 0.5})

	res, err := s.Generate(context.Background(), 3, 0.1)
	require.NoError(t, err)
	assert.Equal(t, "Trace generated with 3 services", res.Message)
	require.Len(t, res.Spans, 3)

	assert.Nil(t, res.Spans[0].ParentID)
	for i, sp := range res.Spans {
		assert.Equal(t, res.TraceID, sp.TraceID)
		assert.Equal(t, "service-"+string(rune('0'+i)), sp.Service)
		assert.GreaterOrEqual(t, sp.Duration, 0.1)
		assert.Less(t, sp.Duration, 2.0)
		if i > 0 {
			require.NotNil(t, sp.ParentID)
			assert.Equal(t, res.Spans[i-1].SpanID, *sp.ParentID)
		}
	}
	assert.Equal(t, SpanSuccess, res.Spans[0].Status)
	assert.Equal(t, SpanError, res.Spans[1].Status)
	assert.Equal(t, SpanSuccess, res.Spans[2].Status)

	ended := rec.Ended()
	require.Len(t, ended, 3)
	for i, sp := range ended {
		assert.Equal(t, res.Spans[i].SpanID, sp.SpanContext().SpanID().String())
		if i > 0 {
			assert.Equal(t, ended[i-1].SpanContext().SpanID(), sp.Parent().SpanID())
		}
		got := sp.EndTime().Sub(sp.StartTime()).Seconds()
		assert.InDelta(t, res.Spans[i].Duration, got, 0.001)
	}
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.False(t, ended[0].Parent().IsValid())

	require.Len(t, sink.signals, 1)
	assert.Equal(t, KindTrace, sink.signals[0].Kind)
	assert.Equal(t, 1, sink.signals[0].Fields["errors"])
}

func TestTraceSimulator_ErrorRateBounds(t *testing.T) {
	s, _, _ := newTestTraceSimulator(t, []float64{0.3, 0.7})

	res, err := s.Generate(context.Background(), 5, 0)
	require.NoError(t, err)
	for _, sp := range res.Spans {
		assert.Equal(t, SpanSuccess, sp.Status)
	}

	res, err = s.Generate(context.Background(), 5, 1)
	require.NoError(t, err)
	for _, sp := range res.Spans {
		assert.Equal(t, SpanError, sp.Status)
	}
}

func TestTraceSimulator_ZeroServices(t *testing.T) {
	s, rec, _ := newTestTraceSimulator(t, []float64{0.5})

	for _, n := range []int{0, -3} {
		res, err := s.Generate(context.Background(), n, 0.1)
		require.NoError(t, err)
		assert.Empty(t, res.Spans)
		assert.NotNil(t, res.Spans)
		assert.Len(t, res.TraceID, 32)
	}
	assert.Empty(t, rec.Ended())
}

func TestTraceSimulator_TooManyServices(t *testing.T) {
	s, rec, sink := newTestTraceSimulator(t, []float64{0.5})

	for _, n := range []int{MaxServices + 1, math.MaxInt32} {
		_, err := s.Generate(context.Background(), n, 0.1)
		assert.ErrorIs(t, err, ErrTooManyServices)
	}
	assert.Empty(t, rec.Ended())
	assert.Empty(t, sink.signals)

	res, err := s.Generate(context.Background(), MaxServices, 0)
	require.NoError(t, err)
	assert.Len(t, res.Spans, MaxServices)
}

func TestTraceSimulator_Canceled(t *testing.T) {
	s, _, _ := newTestTraceSimulator(t, []float64{0.5})
	s.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Generate(ctx, 3, 0.1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTraceSimulator_Blocks(t *testing.T) {
	s, _, _ := newTestTraceSimulator(t, []float64{0.0})
	s.sleep = sleepCtx

	start := time.Now()
	_, err := s.Generate(context.Background(), 2, 0)
	require.NoError(t, err)
	// two spans of 0.1s each, scaled by 0.1
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestTaskNotifier(t *testing.T) {
	sink := &memSink{}
	n := TaskNotifier{Sink: sink}

	n.TaskFinished(context.Background(), tasks.Task{ID: "t1", Kind: "cpu", State: tasks.StateFailed, Error: "boom"})

	require.Len(t, sink.signals, 1)
	sig := sink.signals[0]
	assert.Equal(t, KindTask, sig.Kind)
	assert.Equal(t, "t1", sig.Fields["id"])
	assert.Equal(t, "failed", sig.Fields["state"])
	assert.Equal(t, "boom", sig.Fields["error"])
	assert.False(t, sig.At.IsZero())
}

func TestNopSink(t *testing.T) {
	assert.NoError(t, NopSink{}.Publish(context.Background(), Signal{}))
}
