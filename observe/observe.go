// Package observe exposes a run-control FSM over HTTP: a small read-only
// status endpoint and a per-run summary export, serving the same observer
// events the GUI would otherwise be the only subscriber to.
package observe

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lucabaldini/baldaquin/event"
	"github.com/lucabaldini/baldaquin/runctrl"
)

// FSM is the subset of runctrl.FSM the server reads from.
type FSM interface {
	State() runctrl.State
	RunID() int
	TestStandID() int
	Uptime() float64
	RunUUID() string
	DataPath() string
	Application() runctrl.UserApplication
}

// Server is a read-only HTTP status surface for an FSM: a second,
// non-GUI observer sitting alongside whatever dashboard subscribes to
// the same run-control events.
type Server struct {
	fsm     FSM
	summary *SummaryStore
}

// NewServer returns a Server reading live state from fsm and run summaries
// from store.
func NewServer(fsm FSM, store *SummaryStore) *Server {
	return &Server{fsm: fsm, summary: store}
}

// Router builds the chi.Router exposing the server's endpoints:
//
//	GET /status               – current state, run id, uptime, stats
//	GET /runs/{id}/summary.yaml – yaml-encoded summary of a completed run
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Get("/runs/{id}/summary.yaml", s.handleRunSummary)
	return r
}

// StatusResponse is the JSON body returned by GET /status, and the shape a
// Client decodes a response into.
type StatusResponse struct {
	State       string            `json:"state"`
	RunID       int               `json:"run_id"`
	TestStandID int               `json:"test_stand_id"`
	AppName     string            `json:"app_name,omitempty"`
	Uptime      float64           `json:"uptime_seconds"`
	RunUUID     string            `json:"run_uuid,omitempty"`
	DataPath    string            `json:"data_path,omitempty"`
	Stats       *event.Statistics `json:"stats,omitempty"`
}

func (s *Server) currentStatus() StatusResponse {
	resp := StatusResponse{
		State:       s.fsm.State().String(),
		RunID:       s.fsm.RunID(),
		TestStandID: s.fsm.TestStandID(),
		Uptime:      s.fsm.Uptime(),
		RunUUID:     s.fsm.RunUUID(),
		DataPath:    s.fsm.DataPath(),
	}
	if app := s.fsm.Application(); app != nil {
		resp.AppName = app.Name()
		if w := app.Worker(); w != nil {
			snap := w.Statistics().Snapshot()
			resp.Stats = &snap
		}
	}
	return resp
}

// RunSummary is the per-run record exported as GET /runs/{id}/summary.yaml,
// written by a user application's PostStop hook via (*SummaryStore).Put.
type RunSummary struct {
	TestStandID  int       `yaml:"test_stand_id"`
	RunID        int       `yaml:"run_id"`
	RunUUID      string    `yaml:"run_uuid"`
	AppName      string    `yaml:"app_name"`
	DataPath     string    `yaml:"data_path"`
	StartedAt    time.Time `yaml:"started_at"`
	StoppedAt    time.Time `yaml:"stopped_at"`
	PacketsRead  int64     `yaml:"packets_read"`
	PacketsWritten int64   `yaml:"packets_written"`
	BytesWritten int64     `yaml:"bytes_written"`
}
