package signals

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	mrand "math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/rmax-ai/loadsim/pkg/metrics"
)

const (
	SpanSuccess = "success"
	SpanError   = "error"

	minSpanSeconds = 0.1
	maxSpanSeconds = 2.0

	// processingScale is the fraction of a span's duration the request
	// actually sleeps.
	processingScale = 0.1

	// MaxServices bounds the length of one generated chain.
	MaxServices = 1000
)

// ErrTooManyServices is returned when a trace would exceed MaxServices spans.
var ErrTooManyServices = fmt.Errorf("services must not exceed %d", MaxServices)

type Span struct {
	TraceID  string  `json:"traceId"`
	SpanID   string  `json:"spanId"`
	ParentID *string `json:"parentId"`
	Service  string  `json:"service"`
	Duration float64 `json:"duration"`
	Status   string  `json:"status"`
}

type TraceResult struct {
	Message string `json:"message"`
	TraceID string `json:"traceId"`
	Spans   []Span `json:"spans"`
}

// TraceSimulator builds a linear chain of spans, one per simulated service.
type TraceSimulator struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	sink    Sink
	metrics *metrics.Collectors

	rand  func() float64
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewTraceSimulator(tracer trace.Tracer, logger *slog.Logger, sink Sink, m *metrics.Collectors) *TraceSimulator {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = sdktrace.NewTracerProvider().Tracer("loadsim")
	}
	return &TraceSimulator{
		tracer:  tracer,
		logger:  logger,
		sink:    sink,
		metrics: m,
		rand:    mrand.Float64,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Generate creates services spans. Span i is the child of span i-1, and each
// span fails with probability errorRate. The call blocks for roughly a tenth
// of the summed span durations.
func (s *TraceSimulator) Generate(ctx context.Context, services int, errorRate float64) (TraceResult, error) {
	if services > MaxServices {
		return TraceResult{}, ErrTooManyServices
	}
	spans := []Span{}
	traceID := ""

	parentCtx := ctx
	var parentID *string
	start := s.now()
	for i := 0; i < services; i++ {
		service := fmt.Sprintf("service-%d", i)
		duration := minSpanSeconds + s.rand()*(maxSpanSeconds-minSpanSeconds)
		failed := s.rand() < errorRate

		opts := []trace.SpanStartOption{
			trace.WithTimestamp(start),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("service.name", service),
				attribute.Int("loadsim.span.index", i),
			),
		}
		if i == 0 {
			opts = append(opts, trace.WithNewRoot())
		}
		spanCtx, span := s.tracer.Start(parentCtx, service+".process", opts...)

		status := SpanSuccess
		if failed {
			status = SpanError
			span.SetStatus(codes.Error, "simulated failure")
		}
		span.End(trace.WithTimestamp(start.Add(time.Duration(duration * float64(time.Second)))))
		s.metrics.ObserveSpan(status)

		sc := span.SpanContext()
		if traceID == "" {
			traceID = sc.TraceID().String()
		}
		spanID := sc.SpanID().String()
		spans = append(spans, Span{
			TraceID:  traceID,
			SpanID:   spanID,
			ParentID: parentID,
			Service:  service,
			Duration: duration,
			Status:   status,
		})
		parentID = &spanID
		parentCtx = spanCtx

		if err := s.sleep(ctx, time.Duration(duration*processingScale*float64(time.Second))); err != nil {
			return TraceResult{}, err
		}
		start = s.now()
	}

	if traceID == "" {
		traceID = randomTraceID()
	}

	s.logger.InfoContext(ctx, fmt.Sprintf("Generated trace %s with %d services", traceID, services))

	errCount := 0
	for _, sp := range spans {
		if sp.Status == SpanError {
			errCount++
		}
	}
	publish(ctx, s.sink, s.logger, KindTrace, map[string]any{
		"traceId":  traceID,
		"services": services,
		"errors":   errCount,
	})

	return TraceResult{
		Message: fmt.Sprintf("Trace generated with %d services", services),
		TraceID: traceID,
		Spans:   spans,
	}, nil
}

func randomTraceID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
