package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "json", "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "v", line["k"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "text", "debug")
	require.NoError(t, err)

	logger.Debug("starting", "addr", ":5000")
	assert.Contains(t, buf.String(), "starting")
	assert.Contains(t, buf.String(), ":5000")
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(&bytes.Buffer{}, "xml", "info")
	assert.Error(t, err)

	_, err = NewLogger(&bytes.Buffer{}, "json", "loud")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestSetup_None(t *testing.T) {
	p, err := Setup(context.Background(), Config{Exporter: ExporterNone, ServiceVersion: "test"})
	require.NoError(t, err)

	_, span := p.Tracer().Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid(), "spans carry real ids without an exporter")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_Stdout(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup(context.Background(), Config{Exporter: ExporterStdout, Writer: &buf})
	require.NoError(t, err)

	_, span := p.Tracer().Start(context.Background(), "stdout-op")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "stdout-op")
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestSplitEndpoint(t *testing.T) {
	host, insecure, err := splitEndpoint("http://collector:4318")
	require.NoError(t, err)
	assert.Equal(t, "collector:4318", host)
	assert.True(t, insecure)

	host, insecure, err = splitEndpoint("https://otel.example.com")
	require.NoError(t, err)
	assert.Equal(t, "otel.example.com", host)
	assert.False(t, insecure)

	host, _, err = splitEndpoint("")
	require.NoError(t, err)
	assert.Equal(t, "localhost:4318", host)

	host, insecure, err = splitEndpoint("collector:4318")
	require.NoError(t, err)
	assert.Equal(t, "collector:4318", host)
	assert.True(t, insecure)
}
