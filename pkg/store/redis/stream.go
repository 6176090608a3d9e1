package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/loadsim/pkg/signals"
)

const (
	DefaultStream = "loadsim:signals"
	DefaultMaxLen = 10000
)

// StreamSink appends every signal to a capped Redis stream.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamSink creates a sink writing to stream. Empty stream and
// non-positive maxLen use the defaults.
func NewStreamSink(client *redis.Client, stream string, maxLen int64) *StreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Stream() string { return s.stream }

func (s *StreamSink) Publish(ctx context.Context, sig signals.Signal) error {
	fields, err := json.Marshal(sig.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal signal fields: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":   sig.Kind,
			"at":     sig.At.UTC().Format(time.RFC3339Nano),
			"fields": string(fields),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append signal to %s: %w", s.stream, err)
	}
	return nil
}

// Recent returns up to n signals, newest first.
func (s *StreamSink) Recent(ctx context.Context, n int) ([]signals.Signal, error) {
	if n <= 0 {
		return []signals.Signal{}, nil
	}

	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read signals from %s: %w", s.stream, err)
	}

	out := make([]signals.Signal, 0, len(msgs))
	for _, msg := range msgs {
		sig, err := decode(msg)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		out = append(out, sig)
	}
	return out, nil
}

func decode(msg redis.XMessage) (signals.Signal, error) {
	var sig signals.Signal

	kind, _ := msg.Values["kind"].(string)
	sig.Kind = kind

	if at, ok := msg.Values["at"].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return sig, fmt.Errorf("invalid timestamp: %w", err)
		}
		sig.At = t
	}

	sig.Fields = map[string]any{}
	if raw, ok := msg.Values["fields"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &sig.Fields); err != nil {
			return sig, fmt.Errorf("invalid fields: %w", err)
		}
	}
	return sig, nil
}

// Ping checks the connection.
func (s *StreamSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
