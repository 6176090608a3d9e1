package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rmax-ai/loadsim/pkg/signals"
	"github.com/rmax-ai/loadsim/pkg/simulation"
	"github.com/rmax-ai/loadsim/pkg/tasks"
)

const maxBodyBytes = 1 << 20

// simulationNoun is the word used in the "Starting ..." and "Error in ..." log lines.
func simulationNoun(kind simulation.Kind) string {
	if kind == simulation.KindCPU {
		return "CPU"
	}
	return string(kind)
}

// handleSimulate returns the handler for POST /api/simulate/{kind}.
// The workload is launched on the registry and the response is sent without
// waiting for it.
func (s *Server) handleSimulate(kind simulation.Kind) http.HandlerFunc {
	noun := simulationNoun(kind)
	prefix := fmt.Sprintf("Error in %s simulation", noun)

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
			return
		}
		s.opts.Collectors.ObserveRequest(r.URL.Path)

		var req SimulationRequest
		if err := decodeBody(w, r, &req); err != nil {
			s.fail(w, r, prefix, err)
			return
		}

		percentage := numberOr(req.Percentage, DefaultPercentage)
		duration := stringOr(req.Duration, DefaultDuration)

		seconds, err := simulation.ParseDuration(duration)
		if err != nil {
			s.fail(w, r, prefix, err)
			return
		}

		workload, ok := s.workloads[kind]
		if !ok {
			s.fail(w, r, prefix, fmt.Errorf("no %s workload configured", kind))
			return
		}

		status := simulation.Classify(percentage)
		s.logger.Info(fmt.Sprintf("Starting %s simulation: %s%% for %s (%ds)", noun, signals.FormatFloat(percentage), duration, seconds),
			"trace_id", getTraceID(r.Context()))

		task, err := s.opts.Registry.Launch(tasks.Spec{
			Kind:            string(kind),
			Label:           kind.Label(),
			Percentage:      percentage,
			DurationSeconds: seconds,
			Status:          string(status),
		}, func(ctx context.Context, taskID string) error {
			return workload.Run(ctx, simulation.Params{
				TaskID:     taskID,
				Percentage: percentage,
				Duration:   time.Duration(seconds) * time.Second,
			})
		})
		switch {
		case errors.Is(err, tasks.ErrTooManyTasks):
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		case errors.Is(err, tasks.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			s.fail(w, r, prefix, err)
			return
		}

		writeJSON(w, http.StatusOK, SimulationResponse{
			Message:  fmt.Sprintf("%s simulation started: %s%% for %s", kind.Label(), signals.FormatFloat(percentage), duration),
			Status:   string(status),
			Duration: seconds,
			TaskID:   task.ID,
		})
	}
}

// decodeBody reads a JSON object into v. An empty or null body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(data, v)
}

// fail logs "<prefix>: <err>" and answers 500 with the error text.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, prefix string, err error) {
	s.logger.Error(fmt.Sprintf("%s: %v", prefix, err), "trace_id", getTraceID(r.Context()), "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, err.Error())
}
