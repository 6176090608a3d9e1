package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rmax-ai/loadsim/pkg/signals"
)

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 1000
)

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	s.opts.Collectors.ObserveRequest(r.URL.Path)

	var req LogRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, "Error generating logs", err)
		return
	}

	res, err := s.opts.Logs.Generate(r.Context(),
		stringOr(req.Level, DefaultLogLevel),
		stringOr(req.Message, DefaultLogMessage),
		integerOr(req.Count, DefaultLogCount),
	)
	if errors.Is(err, signals.ErrInvalidLevel) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.fail(w, r, "Error generating logs", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	s.opts.Collectors.ObserveRequest(r.URL.Path)

	var req MetricRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, "Error emitting metric", err)
		return
	}

	res := s.opts.Metrics.Emit(r.Context(),
		stringOr(req.Name, DefaultMetricName),
		numberOr(req.Value, 0),
		stringOr(req.Unit, DefaultMetricUnit),
	)
	writeJSON(w, http.StatusOK, res)
}

// handleTraces blocks for the simulated processing time of every span.
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	s.opts.Collectors.ObserveRequest(r.URL.Path)

	var req TraceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, "Error generating trace", err)
		return
	}

	res, err := s.opts.Traces.Generate(r.Context(),
		integerOr(req.Services, DefaultServices),
		numberOr(req.ErrorRate, DefaultErrorRate),
	)
	if err != nil {
		s.fail(w, r, "Error generating trace", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSignals lists the newest signals recorded by the sink.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	if s.opts.Signals == nil {
		writeError(w, http.StatusNotFound, "signals_disabled")
		return
	}

	limit := defaultSignalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = min(n, maxSignalLimit)
	}

	list, err := s.opts.Signals.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("signals_read_failed", "error", err, "trace_id", getTraceID(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_server_error")
		return
	}
	if list == nil {
		list = []signals.Signal{}
	}
	writeJSON(w, http.StatusOK, SignalListResponse{Signals: list})
}
