package mock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lucabaldini/baldaquin/mock"
	"github.com/lucabaldini/baldaquin/observe"
	"github.com/lucabaldini/baldaquin/runctrl"
)

// TestFullRun exercises the complete RESET->STOPPED->RUNNING->STOPPED
// lifecycle against a fake source: run_id increments, the run's output
// folder and canonical sink file appear, N pre-seeded packets flow through
// the worker, and post_stop reads the file back and counts exactly N
// packets.
func TestFullRun(t *testing.T) {
	const packetCount = 25

	root := t.TempDir()
	fsm, err := runctrl.New(root, runctrl.WithStatsInterval(10*time.Millisecond))
	require.NoError(t, err)

	summary := observe.NewSummaryStore()
	a, err := mock.New("mock-daq", 1000, 500, time.Minute)
	require.NoError(t, err)
	a.Summary = summary

	require.NoError(t, fsm.LoadUserApplication(a))
	require.Equal(t, runctrl.Reset, fsm.State())

	require.NoError(t, fsm.SetStopped())
	require.Equal(t, runctrl.Stopped, fsm.State())
	require.Equal(t, 0, fsm.RunID())

	a.Seed(packetCount)
	require.NoError(t, fsm.SetRunning())
	require.Equal(t, runctrl.Running, fsm.State())
	require.Equal(t, 1, fsm.RunID())
	require.FileExists(t, fsm.DataPath())

	require.Eventually(t, func() bool {
		return a.AppWorker.Statistics().Snapshot().PacketsProcessed >= packetCount
	}, time.Second, time.Millisecond)

	require.NoError(t, fsm.SetStopped())
	require.Equal(t, runctrl.Stopped, fsm.State())
	require.Equal(t, packetCount, a.LastPacketCount())

	recorded, ok := summary.Get(fsm.RunID())
	require.True(t, ok)
	require.Equal(t, "mock-daq", recorded.AppName)
	require.Equal(t, int64(packetCount), recorded.PacketsWritten)

	require.NoError(t, fsm.SetReset())
	require.Equal(t, runctrl.Reset, fsm.State())
}

// TestRunIDAdvancesAcrossRuns drives two successive runs through the same
// application and checks run_id increments each time and the second run's
// folder and file names reflect it.
func TestRunIDAdvancesAcrossRuns(t *testing.T) {
	root := t.TempDir()
	fsm, err := runctrl.New(root)
	require.NoError(t, err)

	a, err := mock.New("mock-daq", 1000, 500, time.Minute)
	require.NoError(t, err)
	require.NoError(t, fsm.LoadUserApplication(a))
	require.NoError(t, fsm.SetStopped())

	a.Seed(5)
	require.NoError(t, fsm.SetRunning())
	require.Equal(t, 1, fsm.RunID())
	require.Eventually(t, func() bool {
		return a.AppWorker.Statistics().Snapshot().PacketsProcessed >= 5
	}, time.Second, time.Millisecond)
	require.NoError(t, fsm.SetStopped())
	require.Equal(t, 5, a.LastPacketCount())

	a.Seed(3)
	require.NoError(t, fsm.SetRunning())
	require.Equal(t, 2, fsm.RunID())
	require.Eventually(t, func() bool {
		return a.AppWorker.Statistics().Snapshot().PacketsProcessed >= 3
	}, time.Second, time.Millisecond)
	require.NoError(t, fsm.SetStopped())
	require.Equal(t, 3, a.LastPacketCount())
}
