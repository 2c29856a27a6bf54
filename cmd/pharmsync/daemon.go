package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hopitalsage/pharmsync/internal/cursor"
	"github.com/hopitalsage/pharmsync/internal/daemon"
	"github.com/hopitalsage/pharmsync/internal/dashboard"
	"github.com/hopitalsage/pharmsync/internal/logging"
	syncengine "github.com/hopitalsage/pharmsync/internal/sync"
)

var (
	daemonIntervalFlag  time.Duration
	daemonDebounceFlag  time.Duration
	daemonDashboardFlag bool
	daemonPortFlag      int
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep the local and central stores in step continuously",
	Long: `Run the sync engine as a long-lived background process.

The daemon syncs immediately on startup, then again whenever the local
store settles after writes, and on a fixed interval to pick up central
changes. With --dashboard it also serves run reports over WebSocket for
live monitoring.

Stop with Ctrl+C; an in-flight run's committed batches are kept and the
next start resumes from the last completed run's cursors.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := mustConfig()
		e := openEnv(ctx, cfg)
		defer e.Close()

		logger := logging.New(cfg.Log, "[daemon] ")

		var dash *dashboard.Server
		if daemonDashboardFlag {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   daemonPortFlag,
				Logger: logging.New(cfg.Log, "[dashboard] "),
			})
			if err := dash.Start(); err != nil {
				fail("starting dashboard: %v", err)
			}
			defer dash.Stop()
			fmt.Printf("Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n", daemonPortFlag, daemonPortFlag)
		}

		// Cursors reload per run so an aborted run leaves no trace in the
		// next one beyond its committed batches.
		run := func(runCtx context.Context) (*syncengine.Report, error) {
			if dash != nil {
				dash.NotifyRunStarted(e.pharmacy.ID)
			}
			cursors, err := cursor.Open(cfg.StateFile)
			if err != nil {
				return nil, err
			}
			engine := syncengine.New(e.local, e.remote, cursors, e.pharmacy, &syncengine.Config{
				BatchSize: cfg.BatchSize,
				Verbose:   verbose,
				Logger:    logging.New(cfg.Log, "[sync] "),
			})
			return engine.Run(runCtx)
		}

		dcfg := daemon.DefaultConfig()
		dcfg.Logger = logger
		if daemonIntervalFlag > 0 {
			dcfg.Interval = daemonIntervalFlag
		}
		if daemonDebounceFlag > 0 {
			dcfg.DebounceInterval = daemonDebounceFlag
		}
		if dash != nil {
			dcfg.OnReport = dash.NotifyRunComplete
			dcfg.OnError = func(err error) { dash.NotifyRunFailed(e.pharmacy.ID, err) }
		}

		d, err := daemon.New(run, cfg.LocalPath, dcfg)
		if err != nil {
			fail("%v", err)
		}

		fmt.Printf("Syncing %s every %v; watching %s\n", e.pharmacy.Name, dcfg.Interval, cfg.LocalPath)
		if err := d.Start(ctx); err != nil {
			fail("%v", err)
		}
	},
}

func init() {
	daemonCmd.Flags().DurationVar(&daemonIntervalFlag, "interval", 0, "periodic sync interval (default 5m)")
	daemonCmd.Flags().DurationVar(&daemonDebounceFlag, "debounce", 0, "settle time after local writes (default 2s)")
	daemonCmd.Flags().BoolVar(&daemonDashboardFlag, "dashboard", false, "serve run reports over WebSocket")
	daemonCmd.Flags().IntVar(&daemonPortFlag, "port", 8080, "dashboard port")
	rootCmd.AddCommand(daemonCmd)
}
