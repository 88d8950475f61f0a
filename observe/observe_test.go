package observe_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucabaldini/baldaquin/observe"
	"github.com/lucabaldini/baldaquin/runctrl"
)

type fakeFSM struct {
	state   runctrl.State
	runID   int
	tsid    int
	uptime  float64
	runUUID string
	path    string
}

func (f *fakeFSM) State() runctrl.State                    { return f.state }
func (f *fakeFSM) RunID() int                               { return f.runID }
func (f *fakeFSM) TestStandID() int                         { return f.tsid }
func (f *fakeFSM) Uptime() float64                          { return f.uptime }
func (f *fakeFSM) RunUUID() string                          { return f.runUUID }
func (f *fakeFSM) DataPath() string                          { return f.path }
func (f *fakeFSM) Application() runctrl.UserApplication      { return nil }

func TestHandleStatus(t *testing.T) {
	fsm := &fakeFSM{state: runctrl.Running, runID: 3, tsid: 101, uptime: 12.5, runUUID: "abc", path: "/data/x.dat"}
	srv := observe.NewServer(fsm, observe.NewSummaryStore())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "RUNNING", body["state"])
	require.Equal(t, float64(3), body["run_id"])
}

func TestHandleRunSummaryNotFound(t *testing.T) {
	fsm := &fakeFSM{state: runctrl.Reset}
	srv := observe.NewServer(fsm, observe.NewSummaryStore())

	req := httptest.NewRequest(http.MethodGet, "/runs/7/summary.yaml", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRunSummaryFound(t *testing.T) {
	fsm := &fakeFSM{state: runctrl.Stopped}
	store := observe.NewSummaryStore()
	store.Put(observe.RunSummary{RunID: 5, AppName: "demo", PacketsWritten: 42})
	srv := observe.NewServer(fsm, store)

	req := httptest.NewRequest(http.MethodGet, "/runs/5/summary.yaml", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "app_name: demo")
}
