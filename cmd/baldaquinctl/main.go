// Command baldaquinctl drives the mock demo application through one
// complete run-control cycle from the shell: reset, start a run against a
// fake source, wait for it to finish, stop, and print the run's summary.
// Pass --http-addr to additionally expose the run-control HTTP status
// surface for the duration of the run.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/lucabaldini/baldaquin/log"
	"github.com/lucabaldini/baldaquin/mock"
	"github.com/lucabaldini/baldaquin/must"
	"github.com/lucabaldini/baldaquin/observe"
	"github.com/lucabaldini/baldaquin/runctrl"
)

func main() {
	must.Func = log.Fatal
	must.Nilf(run(os.Args[1:]), "baldaquinctl")
}

func run(args []string) error {
	flags := flag.NewFlagSet("baldaquinctl", flag.ContinueOnError)
	root := flags.String("root", "baldaquin-data", "project root directory (config/ and data/ live under it)")
	packets := flags.Int("packets", 100, "number of fake packets the demo source emits before the run stops")
	statsInterval := flags.Duration("stats-interval", 500*time.Millisecond, "statistics/flush tick period while running")
	addr := flags.String("http-addr", "", "if set, serve the observe HTTP status surface on this address for the run's duration")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	fsm, err := runctrl.New(*root, runctrl.WithStatsInterval(*statsInterval))
	if err != nil {
		return fmt.Errorf("initializing run control: %w", err)
	}

	summary := observe.NewSummaryStore()
	app, err := mock.New("baldaquinctl-demo", 1000, 200, time.Minute)
	if err != nil {
		return fmt.Errorf("building demo application: %w", err)
	}
	app.Summary = summary
	if err := fsm.LoadUserApplication(app); err != nil {
		return err
	}

	var srv *http.Server
	if *addr != "" {
		srv = &http.Server{Addr: *addr, Handler: observe.NewServer(fsm, summary).Router()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error.Printf("baldaquinctl: http server: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		fmt.Printf("serving run-control status on http://%s/status\n", *addr)
	}

	if err := fsm.SetStopped(); err != nil {
		return fmt.Errorf("reset -> stopped: %w", err)
	}

	app.Seed(*packets)
	if err := fsm.SetRunning(); err != nil {
		return fmt.Errorf("stopped -> running: %w", err)
	}
	fmt.Printf("run %04d_%06d started, writing to %s\n", fsm.TestStandID(), fsm.RunID(), fsm.DataPath())

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt)
	waitForPackets(app, *packets, interrupted)

	if err := fsm.SetStopped(); err != nil {
		return fmt.Errorf("running -> stopped: %w", err)
	}
	fmt.Printf("run stopped, %d packets recorded\n", app.LastPacketCount())

	return fsm.SetReset()
}

func waitForPackets(app *mock.App, target int, interrupted <-chan os.Signal) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-interrupted:
			return
		case <-ticker.C:
			if int(app.AppWorker.Statistics().Snapshot().PacketsProcessed) >= target {
				return
			}
		}
	}
}
