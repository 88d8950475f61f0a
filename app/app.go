package app

import (
	"github.com/lucabaldini/baldaquin/event"
	"github.com/lucabaldini/baldaquin/pkt"
)

// RunControl is the subset of the run-control FSM a user application's
// hooks are allowed to touch: adding sinks before the worker starts, and
// reading the identity of the run currently being opened or closed (for a
// PostStop hook that wants to tag an exported summary with its run id, for
// instance). The sink list is frozen once the worker is running.
type RunControl interface {
	AddCustomSink(path string, projection func(pkt.Packet) []byte, header []byte) error

	// RunID, TestStandID, RunUUID and DataPath describe the run PreStart
	// is about to open or PostStop just closed.
	RunID() int
	TestStandID() int
	RunUUID() string
	DataPath() string
}

// UserApplication is the contract a concrete DAQ application implements.
// Its lifecycle hooks are invoked by the run-control FSM in the order
// given in §4.7's transition table; hooks that do nothing for a given
// application may be left as no-ops.
type UserApplication interface {
	// Name is the application's human-readable name, used in the default
	// per-application config file name.
	Name() string
	// Configuration returns the application's configuration schema,
	// populated with defaults.
	Configuration() *Configuration
	// Worker returns the event handler the application instantiated.
	// The run-control FSM uses it only to wire the canonical sink before
	// PreStart and custom sinks requested through RunControl; starting,
	// stopping and joining the acquisition loop stay the application's
	// own responsibility, performed from StartRun/StopRun/Pause/Resume.
	Worker() *event.Handler

	// Setup runs on every RESET→STOPPED transition.
	Setup() error
	// Teardown runs on STOPPED→RESET, undoing Setup.
	Teardown() error
	// Configure applies the current configuration to the worker/source;
	// called on every STOPPED→RUNNING transition.
	Configure() error
	// PreStart runs just before the acquisition thread starts, typically
	// to add projection sinks via rc.
	PreStart(rc RunControl) error
	// StartRun launches the worker.
	StartRun() error
	// StopRun stops the worker, joins it, and flushes.
	StopRun() error
	// Pause stops the worker and flushes, keeping sinks open.
	Pause() error
	// Resume restarts the worker on the same sinks.
	Resume() error
	// PostStop runs after the worker thread has joined, typically to
	// post-process the just-written file.
	PostStop(rc RunControl) error

	// ProcessPacket decodes raw bytes into a packet instance; invoked by
	// the worker for every packet read from the source.
	ProcessPacket(data []byte) (pkt.Packet, error)
}

// Base provides no-op implementations of every UserApplication hook
// except Name/Configuration/Worker/ProcessPacket, so a concrete
// application can embed Base and override only the hooks it needs.
type Base struct {
	AppName   string
	AppConfig *Configuration
	AppWorker *event.Handler
}

func (b *Base) Name() string                  { return b.AppName }
func (b *Base) Configuration() *Configuration { return b.AppConfig }
func (b *Base) Worker() *event.Handler        { return b.AppWorker }
func (b *Base) Setup() error                  { return nil }
func (b *Base) Teardown() error                { return nil }
func (b *Base) Configure() error              { return nil }
func (b *Base) PreStart(rc RunControl) error  { return nil }
func (b *Base) StartRun() error               { return nil }
func (b *Base) StopRun() error                { return nil }
func (b *Base) Pause() error                  { return nil }
func (b *Base) Resume() error                 { return nil }
func (b *Base) PostStop(rc RunControl) error  { return nil }
