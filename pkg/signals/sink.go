package signals

import (
	"context"
	"log/slog"
	"time"

	"github.com/rmax-ai/loadsim/pkg/tasks"
)

// Signal kinds published to a Sink.
const (
	KindLog    = "log"
	KindMetric = "metric"
	KindTrace  = "trace"
	KindTask   = "task"
)

// Signal is the envelope every generator publishes.
type Signal struct {
	Kind   string         `json:"kind"`
	At     time.Time      `json:"at"`
	Fields map[string]any `json:"fields"`
}

// Sink receives a copy of every generated signal.
type Sink interface {
	Publish(ctx context.Context, s Signal) error
}

// Reader returns the most recent signals, newest first.
type Reader interface {
	Recent(ctx context.Context, n int) ([]Signal, error)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Publish(context.Context, Signal) error { return nil }

func publish(ctx context.Context, sink Sink, logger *slog.Logger, kind string, fields map[string]any) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, Signal{Kind: kind, At: time.Now().UTC(), Fields: fields}); err != nil {
		logger.Warn("signal_publish_failed", "kind", kind, "error", err)
	}
}

// TaskNotifier publishes a task signal whenever a registry task finishes.
type TaskNotifier struct {
	Sink   Sink
	Logger *slog.Logger
}

func (n TaskNotifier) TaskFinished(ctx context.Context, t tasks.Task) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fields := map[string]any{
		"id":              t.ID,
		"kind":            t.Kind,
		"percentage":      t.Percentage,
		"durationSeconds": t.DurationSeconds,
		"state":           string(t.State),
	}
	if t.Error != "" {
		fields["error"] = t.Error
	}
	publish(ctx, n.Sink, logger, KindTask, fields)
}
