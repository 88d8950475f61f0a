package runctrl

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucabaldini/baldaquin/app"
	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/log"
	"github.com/lucabaldini/baldaquin/pkt"
	"github.com/lucabaldini/baldaquin/timeline"
)

// defaultStatsInterval is the stats/flush tick period named in §4.7.
const defaultStatsInterval = 750 * time.Millisecond

// defaultJoinTimeout is the worker-join timeout JoinTimeout reports to a
// user application's StopRun/Pause hooks, per §5's "max(source_timeout,
// sampling_interval)" guidance; the FSM itself never joins the worker.
// Callers with a slower source timeout should override it with
// WithJoinTimeout.
const defaultJoinTimeout = 5 * time.Second

// FSM is the run-control finite state machine: the sole coordinator of
// worker startup/shutdown, sink lifecycle, run/test-stand numbering,
// output directory layout and statistics emission described in §4.7. Its
// four verbs (SetReset, SetStopped, SetRunning, SetPaused) plus
// LoadUserApplication are the only entry points any driver uses, per §6.
type FSM struct {
	mu sync.Mutex

	root string
	clk  *timeline.Timeline

	state          State
	testStandID    int
	runID          int
	startTimestamp timeline.Timestamp
	stopTimestamp  timeline.Timestamp
	haveStop       bool

	app UserApplication

	runUUID  string
	dataDir  string
	dataPath string
	logPath  string

	prevOutputter log.Outputter
	fileOutputter *log.FileOutputter

	statsInterval time.Duration
	joinTimeout   time.Duration
	statsStop     chan struct{}
	statsDone     chan struct{}

	obsMu     sync.Mutex
	observers []chan Event
}

// UserApplication is app.UserApplication, re-exported so callers need not
// import both packages to hold a handle to the FSM's loaded application.
type UserApplication = app.UserApplication

// Option configures an FSM at construction time.
type Option func(*FSM)

// WithStatsInterval overrides the default 750ms statistics tick period.
func WithStatsInterval(d time.Duration) Option {
	return func(f *FSM) { f.statsInterval = d }
}

// WithJoinTimeout overrides the default worker-join timeout reported by
// JoinTimeout.
func WithJoinTimeout(d time.Duration) Option {
	return func(f *FSM) { f.joinTimeout = d }
}

// WithClock overrides the FSM's timeline, for deterministic tests.
func WithClock(clk *timeline.Timeline) Option {
	return func(f *FSM) { f.clk = clk }
}

// New returns an FSM rooted at root (config/ and data/ live under it),
// in state RESET, with no application loaded. test_stand.cfg (created with
// the default test stand id 101) and run.cfg (created with run id 0) are
// read immediately.
func New(root string, opts ...Option) (*FSM, error) {
	tsid, err := readIntConfig(testStandConfigPath(root), defaultTestStandID)
	if err != nil {
		return nil, err
	}
	rid, err := readIntConfig(runConfigPath(root), defaultRunID)
	if err != nil {
		return nil, err
	}
	f := &FSM{
		root:          root,
		clk:           timeline.NewUTC(),
		state:         Reset,
		testStandID:   tsid,
		runID:         rid,
		statsInterval: defaultStatsInterval,
		joinTimeout:   defaultJoinTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// State returns the FSM's current state.
func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// TestStandID returns the persistent per-host test stand identifier.
func (f *FSM) TestStandID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.testStandID
}

// RunID returns the most recently assigned run identifier, as persisted in
// run.cfg (0 before the first run under this root).
func (f *FSM) RunID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runID
}

// Uptime returns the number of seconds since start_timestamp if RUNNING,
// or since start_timestamp up to the frozen stop_timestamp otherwise.
func (f *FSM) Uptime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uptimeLocked()
}

func (f *FSM) uptimeLocked() float64 {
	if f.startTimestamp.UTC.IsZero() {
		return 0
	}
	if f.state == Running {
		return f.clk.Since(f.startTimestamp)
	}
	if f.haveStop {
		return f.stopTimestamp.UTC.Sub(f.startTimestamp.UTC).Seconds()
	}
	return 0
}

// JoinTimeout returns the worker-join timeout a user application's
// StopRun/Pause hooks should pass to event.Handler.Join, per §5's
// "caller then joins the worker with a timeout" guidance.
func (f *FSM) JoinTimeout() time.Duration {
	return f.joinTimeout
}

// RunUUID returns the correlation id tagging the current (or most
// recent) run's log lines, or "" before the first run.
func (f *FSM) RunUUID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runUUID
}

// DataPath returns the canonical sink's path for the current (or most
// recent) run, or "" before the first run.
func (f *FSM) DataPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dataPath
}

// Application returns the currently loaded user application, or nil.
func (f *FSM) Application() UserApplication {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.app
}

// LoadUserApplication binds a to the FSM. It is only valid in RESET, per
// §6's control surface contract.
func (f *FSM) LoadUserApplication(a UserApplication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Reset {
		return errors.E(errors.InvalidTransition, fmt.Sprintf("cannot load application outside RESET (currently %s)", f.state))
	}
	f.app = a
	f.emit(Event{Kind: UserApplicationLoaded, AppName: a.Name()})
	return nil
}

func (f *FSM) invalidTransition(to State) error {
	return errors.E(errors.InvalidTransition, fmt.Sprintf("%s -> %s", f.state, to))
}

func (f *FSM) setState(s State) {
	f.state = s
	f.emit(Event{Kind: StateChanged, State: s})
}

// SetReset drives the FSM from STOPPED to RESET, tearing the loaded
// application down.
func (f *FSM) SetReset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Stopped {
		return f.invalidTransition(Reset)
	}
	if f.app == nil {
		return errors.E(errors.AppNotLoaded)
	}
	if err := f.app.Teardown(); err != nil {
		return err
	}
	f.setState(Reset)
	return nil
}

// SetStopped drives the FSM into STOPPED from RESET, RUNNING or PAUSED,
// dispatching to the transition-specific action sequence in §4.7's table.
func (f *FSM) SetStopped() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case Reset:
		return f.resetToStopped()
	case Running:
		return f.runningToStopped()
	case Paused:
		return f.pausedToStopped()
	default:
		return f.invalidTransition(Stopped)
	}
}

func (f *FSM) resetToStopped() error {
	if f.app == nil {
		return errors.E(errors.AppNotLoaded)
	}
	if err := f.app.Setup(); err != nil {
		return err
	}
	f.setState(Stopped)
	return nil
}

// SetRunning drives the FSM into RUNNING from STOPPED (a fresh run,
// incrementing run_id) or from PAUSED (a resume on the same sinks).
func (f *FSM) SetRunning() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case Stopped:
		return f.stoppedToRunning()
	case Paused:
		return f.pausedToRunning()
	default:
		return f.invalidTransition(Running)
	}
}

// stoppedToRunning implements the STOPPED->RUNNING row of §4.7's table.
// It deviates from the table's literal hook order in one respect,
// recorded as an Open Question decision in DESIGN.md: the canonical sink
// is wired before PreStart runs, not after, so that PreStart's
// AddCustomSink calls never race the FirstSinkMustBeCanonical invariant
// against an empty sink list.
func (f *FSM) stoppedToRunning() error {
	if f.app == nil {
		return errors.E(errors.AppNotLoaded)
	}
	worker := f.app.Worker()
	if worker == nil {
		return errors.E(errors.Invalid, "user application has no worker")
	}
	// Every fresh run starts from an empty sink list: a prior run's
	// sinks, if any, belong to that run's output directory and must not
	// receive this run's packets. Its statistics likewise start from zero.
	worker.Buffer.Disconnect()
	worker.Statistics().Reset()

	prevRunID, prevRunUUID := f.runID, f.runUUID
	prevDataDir, prevDataPath, prevLogPath := f.dataDir, f.dataPath, f.logPath

	newRunID := f.runID + 1
	if err := writeIntConfig(runConfigPath(f.root), newRunID); err != nil {
		return err
	}

	dir := runDir(f.root, f.testStandID, newRunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	runUUID := uuid.NewString()
	logPath := filepath.Join(dir, logFileName(f.testStandID, newRunID))
	outputter, err := log.NewFileOutputterWithFields(logPath, log.Debug, map[string]string{"run_uuid": runUUID})
	if err != nil {
		return err
	}
	prevOutputter := log.SetOutputter(outputter)

	dataPath := filepath.Join(dir, dataFileName(f.testStandID, newRunID))

	// Commit the new run's identity before invoking any hook, so that
	// PreStart/StartRun observe the same RunID/DataPath a PostStop on
	// this same run will read back later through the RunControl view.
	f.runID = newRunID
	f.runUUID = runUUID
	f.dataDir = dir
	f.dataPath = dataPath
	f.logPath = logPath
	f.startTimestamp = f.clk.Timestamp()
	f.stopTimestamp = timeline.Timestamp{}
	f.haveStop = false

	rollback := func() {
		log.SetOutputter(prevOutputter)
		_ = outputter.Close()
		f.runID, f.runUUID = prevRunID, prevRunUUID
		f.dataDir, f.dataPath, f.logPath = prevDataDir, prevDataPath, prevLogPath
	}

	if err := f.app.Configure(); err != nil {
		rollback()
		return err
	}

	if err := worker.SetCanonicalSink(dataPath); err != nil {
		rollback()
		return err
	}

	if err := f.app.PreStart(runControlView{f}); err != nil {
		rollback()
		return err
	}

	if err := f.app.StartRun(); err != nil {
		rollback()
		return err
	}

	f.prevOutputter = prevOutputter
	f.fileOutputter = outputter

	f.startStatsTimer()
	f.emit(Event{Kind: RunIDChanged, RunID: f.runID})
	f.emit(Event{Kind: OutputFileSet, Path: dataPath})
	f.setState(Running)
	return nil
}

func (f *FSM) pausedToRunning() error {
	if err := f.app.Resume(); err != nil {
		return err
	}
	f.startStatsTimer()
	f.setState(Running)
	return nil
}

// runningToStopped implements RUNNING->STOPPED. Per §5, a
// WorkerJoinTimeout reported by StopRun is not treated as an aborting
// transition failure: the FSM logs it and still advances to STOPPED with
// the partial data file kept, since §5 explicitly calls for a forced hard
// stop rather than leaving the run stuck in RUNNING forever.
func (f *FSM) runningToStopped() error {
	f.stopStatsTimer()
	stopErr := f.app.StopRun()
	if stopErr != nil && !errors.Is(errors.WorkerJoinTimeout, stopErr) {
		return stopErr
	}
	if stopErr != nil {
		log.Error.Printf("runctrl: %v, forcing hard stop", stopErr)
	}
	f.stopTimestamp = f.clk.Timestamp()
	f.haveStop = true
	f.finalStatsTick()
	f.closeRunLog()
	if err := f.app.PostStop(runControlView{f}); err != nil {
		log.Error.Printf("runctrl: post_stop: %v", err)
	}
	f.setState(Stopped)
	return nil
}

func (f *FSM) pausedToStopped() error {
	// §4.7 names the hook "user_application.stop()" here, distinct from
	// "stop_run()" used on RUNNING->STOPPED; §9 flags this table as
	// carrying "near-duplicate" hook names from an evolving design.
	// StopRun is the only final-close-out hook UserApplication exposes,
	// so it is reused here (DESIGN.md Open Question decision).
	if err := f.app.StopRun(); err != nil && !errors.Is(errors.WorkerJoinTimeout, err) {
		return err
	}
	f.stopTimestamp = f.clk.Timestamp()
	f.haveStop = true
	f.closeRunLog()
	f.setState(Stopped)
	return nil
}

// SetPaused drives the FSM from RUNNING to PAUSED.
func (f *FSM) SetPaused() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Running {
		return f.invalidTransition(Paused)
	}
	f.stopStatsTimer()
	if err := f.app.Pause(); err != nil {
		f.startStatsTimer()
		return err
	}
	f.setState(Paused)
	return nil
}

func (f *FSM) closeRunLog() {
	if f.fileOutputter == nil {
		return
	}
	log.SetOutputter(f.prevOutputter)
	if err := f.fileOutputter.Close(); err != nil {
		log.Error.Printf("runctrl: closing run log: %v", err)
	}
	f.fileOutputter = nil
}

// AddCustomSink implements app.RunControl: it is the only FSM capability
// that a user application's PreStart/PostStop hooks can use to change
// anything (the rest of RunControl is read-only run identity), per §4.6. It
// forwards to the loaded application's worker, which attaches the
// projection sink as a later (non-canonical) sink on its buffer.
func (f *FSM) AddCustomSink(path string, projection func(pkt.Packet) []byte, header []byte) error {
	if f.app == nil {
		return errors.E(errors.AppNotLoaded)
	}
	worker := f.app.Worker()
	if worker == nil {
		return errors.E(errors.Invalid, "user application has no worker")
	}
	return worker.AddCustomSink(path, projection, header)
}

// runControlView implements app.RunControl by reading f's fields directly,
// without taking f.mu: it is only ever constructed and handed to a hook
// from within a transition method that already holds f.mu for the
// duration of the call, so re-locking here would deadlock the calling
// goroutine against itself.
type runControlView struct{ f *FSM }

func (v runControlView) AddCustomSink(path string, projection func(pkt.Packet) []byte, header []byte) error {
	return v.f.AddCustomSink(path, projection, header)
}
func (v runControlView) RunID() int         { return v.f.runID }
func (v runControlView) TestStandID() int   { return v.f.testStandID }
func (v runControlView) RunUUID() string    { return v.f.runUUID }
func (v runControlView) DataPath() string   { return v.f.dataPath }
