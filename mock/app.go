package mock

import (
	"context"
	"os"
	"time"

	"github.com/lucabaldini/baldaquin/app"
	"github.com/lucabaldini/baldaquin/buf"
	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/event"
	"github.com/lucabaldini/baldaquin/observe"
	"github.com/lucabaldini/baldaquin/pkt"
	"github.com/lucabaldini/baldaquin/retry"
)

// defaultJoinTimeout bounds how long StopRun waits for the worker to join
// after a cooperative stop request.
const defaultJoinTimeout = 2 * time.Second

// joinSlice is the size of each individual Join attempt StopRun makes while
// retrying: the source's own read timeout can make a single join attempt
// race the tail end of a ReadPacket call, so a short slice backed off a few
// times is more forgiving than one long wait.
const joinSlice = 200 * time.Millisecond

// App is a complete, if trivial, UserApplication: it reads pre-seeded
// packets from a Source, decodes them with the fixed 7-byte samplePacket
// layout, and on PostStop counts the packets actually written to the
// canonical sink, publishing the tally through an observe.SummaryStore when
// one is attached.
type App struct {
	app.Base

	Summary *observe.SummaryStore

	source      *Source
	joinTimeout time.Duration

	lastPacketCount int
}

// New returns an App named name, with a FIFO buffer of the given
// dimensions feeding its worker, ready to be loaded into a runctrl.FSM.
func New(name string, maxSize, flushSize int, flushInterval time.Duration) (*App, error) {
	buffer, err := buf.NewFIFO(maxSize, flushSize, flushInterval)
	if err != nil {
		return nil, err
	}
	a := &App{joinTimeout: defaultJoinTimeout}
	a.AppName = name
	a.AppConfig = app.NewConfiguration(name)
	a.AppWorker = event.New(buffer, nil, decodeSamplePacket, nil)
	return a, nil
}

// ProcessPacket decodes raw bytes read from the source using the fixed
// samplePacket layout.
func (a *App) ProcessPacket(data []byte) (pkt.Packet, error) {
	return decodeSamplePacket(data)
}

// Seed installs a Source emitting count packets for the next run. It must
// be called before the STOPPED->RUNNING transition that will consume it.
func (a *App) Seed(count int) {
	a.source = NewSource(count)
}

// LastPacketCount returns the number of packets PostStop counted back from
// the canonical sink file for the run that just ended.
func (a *App) LastPacketCount() int {
	return a.lastPacketCount
}

// StartRun wires the seeded source to the worker and launches the
// acquisition loop.
func (a *App) StartRun() error {
	if a.source == nil {
		return errors.E(errors.Invalid, "mock: no source seeded for this run, call Seed first")
	}
	a.AppWorker.Source = a.source
	go func() {
		if err := a.AppWorker.Run(); err != nil {
			_ = err // the run loop's terminal error is expected to be io.EOF once Stop fires
		}
	}()
	return nil
}

// StopRun requests cooperative cancellation, unblocks the fake source, and
// joins the worker, retrying the join in short slices with exponential
// backoff over the app's overall join timeout rather than failing on the
// very first slice that races the source's teardown.
func (a *App) StopRun() error {
	a.AppWorker.Stop()
	a.source.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), a.joinTimeout)
	defer cancel()
	policy := retry.Jitter(retry.Backoff(joinSlice/4, joinSlice, 2), 0.2)
	for attempt := 0; ; attempt++ {
		err := a.AppWorker.Join(joinSlice)
		if err == nil {
			return nil
		}
		if !errors.Is(errors.WorkerJoinTimeout, err) {
			return err
		}
		if waitErr := retry.Wait(ctx, policy, attempt); waitErr != nil {
			return err
		}
	}
}

// PostStop reads the just-closed data file back and counts exactly how many
// whole 7-byte samplePacket records it holds, recording the tally and, if a
// SummaryStore is attached, publishing it there for observe's HTTP surface.
func (a *App) PostStop(rc app.RunControl) error {
	path := rc.DataPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	size := sampleDescriptor.Size()
	if len(data)%size != 0 {
		return errors.E(errors.SizeMismatch, "mock: data file length is not a whole number of packets")
	}
	a.lastPacketCount = len(data) / size

	if a.Summary != nil {
		stats := a.AppWorker.Statistics().Snapshot()
		a.Summary.Put(observe.RunSummary{
			TestStandID:    rc.TestStandID(),
			RunID:          rc.RunID(),
			RunUUID:        rc.RunUUID(),
			AppName:        a.Name(),
			DataPath:       path,
			PacketsRead:    stats.PacketsRead,
			PacketsWritten: stats.PacketsWritten,
			BytesWritten:   stats.BytesWritten,
		})
	}
	a.source = nil
	return nil
}
