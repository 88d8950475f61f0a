package observe

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// handleStatus responds to GET /status with the FSM's current state, run
// identity, uptime and, if an application is loaded, its worker's latest
// statistics snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.currentStatus())
}

// handleRunSummary responds to GET /runs/{id}/summary.yaml with the
// recorded RunSummary for the given run id, or 404 if no summary has been
// written for it yet (either the run is still in progress, or the id is
// unknown).
func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	runID, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "run id must be an integer", http.StatusBadRequest)
		return
	}
	summary, ok := s.summary.Get(runID)
	if !ok {
		http.Error(w, "no summary recorded for this run", http.StatusNotFound)
		return
	}
	data, err := yaml.Marshal(summary)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}
