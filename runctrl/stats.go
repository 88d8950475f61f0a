package runctrl

import (
	"time"

	"github.com/lucabaldini/baldaquin/event"
	"github.com/lucabaldini/baldaquin/log"
)

// startStatsTimer launches the periodic tick described in §4.7: every
// statsInterval while RUNNING, flush the buffer (the implementer
// tie-break recorded in SPEC_FULL.md/DESIGN.md: inline flush from the
// acquisition thread on every flush-needed Put, plus this timer as a
// safety net for low-rate sources that never reach flush_size) and emit
// an event_handler_stats_updated observer event with the instantaneous
// rate. The goroutine touches no FSM field protected by f.mu, so
// stopStatsTimer can safely be called while f.mu is held.
func (f *FSM) startStatsTimer() {
	worker := f.app.Worker()
	start := f.startTimestamp
	clk := f.clk
	interval := f.statsInterval

	stop := make(chan struct{})
	done := make(chan struct{})
	f.statsStop = stop
	f.statsDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				f.emitStats(worker, clk.Since(start))
			}
		}
	}()
}

// stopStatsTimer halts the stats ticker started by startStatsTimer and
// waits for its goroutine to exit, so that no tick can fire after the
// transition that called it returns.
func (f *FSM) stopStatsTimer() {
	if f.statsStop == nil {
		return
	}
	close(f.statsStop)
	<-f.statsDone
	f.statsStop = nil
	f.statsDone = nil
}

// emitStats flushes worker's buffer and emits the uptime/stats observer
// events for the given uptime reading.
func (f *FSM) emitStats(worker *event.Handler, uptime float64) {
	if _, _, err := worker.FlushBuffer(); err != nil {
		log.Error.Printf("runctrl: stats-timer flush: %v", err)
	}
	stats := worker.Statistics().Snapshot()
	var rate float64
	if uptime > 0 {
		rate = float64(stats.PacketsProcessed) / uptime
	}
	f.emit(Event{Kind: UptimeUpdated, Uptime: uptime})
	f.emit(Event{Kind: EventHandlerStatsUpdated, Stats: stats, Rate: rate})
}

// finalStatsTick fires a single-shot stats tick using the frozen
// stop_timestamp, per §4.7's "the final tick ... may be fired single-shot
// to capture a late packet burst".
func (f *FSM) finalStatsTick() {
	worker := f.app.Worker()
	if worker == nil {
		return
	}
	uptime := f.stopTimestamp.UTC.Sub(f.startTimestamp.UTC).Seconds()
	f.emitStats(worker, uptime)
}
