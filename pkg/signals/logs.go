package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rmax-ai/loadsim/pkg/metrics"
)

// ErrInvalidLevel is returned for a level outside INFO, WARN and ERROR.
var ErrInvalidLevel = errors.New("Invalid log level")

var logLevels = map[string]slog.Level{
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

type LogResult struct {
	Message string `json:"message"`
	Level   string `json:"level"`
	Count   int    `json:"count"`
}

// LogGenerator writes synthetic log lines to its logger.
type LogGenerator struct {
	logger  *slog.Logger
	sink    Sink
	metrics *metrics.Collectors
}

func NewLogGenerator(logger *slog.Logger, sink Sink, m *metrics.Collectors) *LogGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGenerator{logger: logger, sink: sink, metrics: m}
}

// Generate emits count lines "<message> - <i>" at level. The level is
// matched case-insensitively; an unknown level emits nothing.
func (g *LogGenerator) Generate(ctx context.Context, level, message string, count int) (LogResult, error) {
	level = strings.ToUpper(level)
	lvl, ok := logLevels[level]
	if !ok {
		return LogResult{}, ErrInvalidLevel
	}

	for i := 1; i <= count; i++ {
		g.logger.Log(ctx, lvl, fmt.Sprintf("%s - %d", message, i))
	}
	g.metrics.AddLogLines(level, count)

	publish(ctx, g.sink, g.logger, KindLog, map[string]any{
		"level":   level,
		"message": message,
		"count":   count,
	})

	return LogResult{
		Message: fmt.Sprintf("Generated %d log(s) at %s level", count, level),
		Level:   level,
		Count:   count,
	}, nil
}
