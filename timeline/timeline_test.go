package timeline_test

import (
	"testing"
	"time"

	"github.com/lucabaldini/baldaquin/timeline"
)

func TestTimestampSecondsFromOrigin(t *testing.T) {
	origin := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := time.Date(2020, 1, 1, 0, 0, 10, 0, time.UTC)
	tl := timeline.New(origin).WithClock(func() time.Time { return fake })
	ts := tl.Timestamp()
	if ts.Seconds != 10 {
		t.Fatalf("expected 10 seconds from origin, got %v", ts.Seconds)
	}
}

func TestSince(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	current := start
	tl := timeline.NewUTC().WithClock(func() time.Time { return current })
	first := tl.Timestamp()
	current = current.Add(5 * time.Second)
	if got := tl.Since(first); got != 5 {
		t.Fatalf("expected 5s elapsed, got %v", got)
	}
}
