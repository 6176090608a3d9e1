package api

import (
	"io"
	"net/http"

	"github.com/rmax-ai/loadsim/pkg/scenario"
)

// handleScenario runs a posted scenario (YAML or JSON) to completion and
// returns its report.
func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	if s.opts.ScenarioRunner == nil {
		writeError(w, http.StatusNotFound, "scenarios_disabled")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sc, err := scenario.Parse(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.opts.ScenarioRunner.Run(r.Context(), sc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
