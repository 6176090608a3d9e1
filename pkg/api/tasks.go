package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rmax-ai/loadsim/pkg/reports"
	"github.com/rmax-ai/loadsim/pkg/tasks"
)

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{
		Tasks:   s.opts.Registry.List(),
		Running: s.opts.Registry.Running(),
	})
}

// handleTask serves GET and DELETE /api/tasks/{id}.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := s.opts.Registry.Get(id)
		if errors.Is(err, tasks.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task_not_found")
			return
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodDelete:
		if _, err := s.opts.Registry.Cancel(id); errors.Is(err, tasks.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task_not_found")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.opts.CancelWait)
		defer cancel()
		task, err := s.opts.Registry.Wait(ctx, id)
		if errors.Is(err, tasks.ErrNotFound) {
			// evicted between cancel and wait
			writeError(w, http.StatusNotFound, "task_not_found")
			return
		}
		s.logger.Info("task_cancel_requested", "task_id", id, "state", task.State, "trace_id", getTraceID(r.Context()))
		writeJSON(w, http.StatusOK, task)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

// handleHistory exports the task-run journal.
//
// Query parameters: format (csv|json, default csv), report (runs|summary,
// default runs), kind, state, limit, from and to (RFC3339).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	if s.opts.History == nil {
		writeError(w, http.StatusNotFound, "history_disabled")
		return
	}

	q := r.URL.Query()

	format := reports.ReportFormat(strings.ToLower(q.Get("format")))
	if format == "" {
		format = reports.ReportFormatCSV
	}
	reportType := reports.ReportType(strings.ToLower(q.Get("report")))
	if reportType == "" {
		reportType = reports.ReportTypeRuns
	}

	gen, err := reports.NewReportGenerator(reportType, format, s.opts.History)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := reports.ReportParams{
		Kind:  q.Get("kind"),
		State: q.Get("state"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		params.Limit = n
	}
	if params.Start, err = parseTimeParam(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from")
		return
	}
	if params.End, err = parseTimeParam(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to")
		return
	}

	body, err := gen.Generate(r.Context(), params)
	if err != nil {
		s.logger.Error("history_export_failed", "error", err, "trace_id", getTraceID(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_server_error")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format == reports.ReportFormatCSV {
		w.Header().Set("Content-Disposition", `attachment; filename="loadsim-`+string(reportType)+`.csv"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("history_write_failed", "error", err)
	}
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
