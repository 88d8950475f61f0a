package runctrl

import (
	"github.com/lucabaldini/baldaquin/event"
)

// EventKind classifies an observer Event, one per UI-independent signal
// named in §4.7: state_changed, run_id_changed, user_application_loaded,
// uptime_updated, event_handler_stats_updated, output_file_set.
type EventKind int

const (
	StateChanged EventKind = iota
	RunIDChanged
	UserApplicationLoaded
	UptimeUpdated
	EventHandlerStatsUpdated
	OutputFileSet
)

func (k EventKind) String() string {
	switch k {
	case StateChanged:
		return "state_changed"
	case RunIDChanged:
		return "run_id_changed"
	case UserApplicationLoaded:
		return "user_application_loaded"
	case UptimeUpdated:
		return "uptime_updated"
	case EventHandlerStatsUpdated:
		return "event_handler_stats_updated"
	case OutputFileSet:
		return "output_file_set"
	default:
		return "unknown"
	}
}

// Event is a single observer notification. Only the fields relevant to
// Kind are populated; the rest are zero.
type Event struct {
	Kind EventKind

	State   State
	RunID   int
	AppName string
	Uptime  float64
	Stats   event.Statistics
	Rate    float64
	Path    string
}

// subscriberBuffer is the per-subscriber channel depth. A slow or absent
// reader never blocks the FSM: emit drops the event rather than stalling
// a control-thread transition, generalizing the channel-driven broadcast
// idea behind grailbio-base's status.Reporter (a service channel serviced
// by a single goroutine) to a fan-out of independent subscribers, any
// one of which may be idle (the GUI is "one of many subscribers" per §9).
const subscriberBuffer = 32

// Subscribe returns a channel that receives every observer Event the FSM
// emits from this point on. The channel is never closed by the FSM; a
// subscriber that no longer cares should simply stop reading it (it will
// be garbage collected once the FSM drops its only reference on
// Unsubscribe).
func (f *FSM) Subscribe() <-chan Event {
	f.obsMu.Lock()
	defer f.obsMu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	f.observers = append(f.observers, ch)
	return ch
}

// Unsubscribe detaches a channel previously returned by Subscribe.
func (f *FSM) Unsubscribe(ch <-chan Event) {
	f.obsMu.Lock()
	defer f.obsMu.Unlock()
	for i, o := range f.observers {
		if o == ch {
			f.observers = append(f.observers[:i], f.observers[i+1:]...)
			return
		}
	}
}

// emit fans ev out to every current subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking.
func (f *FSM) emit(ev Event) {
	f.obsMu.Lock()
	defer f.obsMu.Unlock()
	for _, ch := range f.observers {
		select {
		case ch <- ev:
		default:
		}
	}
}
