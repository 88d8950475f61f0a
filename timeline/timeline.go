// Package timeline provides a clock abstraction used throughout baldaquin
// so that packet timestamps, log lines and run-control bookkeeping all read
// time through one seam. Production code uses the real wall clock; tests
// inject a fake one to get deterministic timestamps.
package timeline

import "time"

// A Timestamp is a single reading of a Timeline: the UTC instant, the same
// instant expressed in local time, and the number of seconds elapsed since
// the Timeline's origin.
type Timestamp struct {
	UTC     time.Time
	Local   time.Time
	Seconds float64
}

// UTCString renders the UTC instant in RFC3339 with microsecond precision.
func (t Timestamp) UTCString() string {
	return t.UTC.Format("2006-01-02T15:04:05.000000Z07:00")
}

// LocalString renders the local instant in RFC3339 with microsecond precision.
func (t Timestamp) LocalString() string {
	return t.Local.Format("2006-01-02T15:04:05.000000Z07:00")
}

// A Timeline is a continuous clock with a configurable origin: Seconds on a
// Timestamp it produces are measured relative to that origin rather than the
// Unix epoch. The zero value is not usable; construct one with New.
type Timeline struct {
	origin time.Time
	now    func() time.Time
}

// New returns a Timeline whose Seconds field is measured from origin. A
// zero origin is equivalent to the Unix epoch.
func New(origin time.Time) *Timeline {
	return &Timeline{origin: origin, now: time.Now}
}

// NewUTC returns a Timeline anchored at the Unix epoch, the default used
// throughout the core unless a run explicitly configures otherwise.
func NewUTC() *Timeline {
	return New(time.Unix(0, 0).UTC())
}

// WithClock overrides the Timeline's notion of "now", for use in tests that
// need deterministic timestamps. It returns the Timeline for chaining.
func (t *Timeline) WithClock(now func() time.Time) *Timeline {
	t.now = now
	return t
}

// Timestamp returns a reading of the timeline at the current instant.
func (t *Timeline) Timestamp() Timestamp {
	utc := t.now().UTC()
	local := utc.Local()
	return Timestamp{
		UTC:     utc,
		Local:   local,
		Seconds: utc.Sub(t.origin).Seconds(),
	}
}

// Since returns the number of seconds elapsed between t's current reading
// and the provided prior Timestamp.
func (t *Timeline) Since(prior Timestamp) float64 {
	return t.now().UTC().Sub(prior.UTC).Seconds()
}
