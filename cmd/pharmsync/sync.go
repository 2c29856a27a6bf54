package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/hopitalsage/pharmsync/internal/logging"
	syncengine "github.com/hopitalsage/pharmsync/internal/sync"
	"github.com/hopitalsage/pharmsync/internal/ui"
)

var (
	syncSinceFlag string
	syncBatchFlag int
	syncJSONFlag  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full synchronization pass",
	Long: `Run one full synchronization pass against the central store.

The pass pushes local changes up, then pulls central changes down, in
dependency order, resuming from the per-entity cursors of the previous
run. Committed batches survive an interrupted pass; cursors only advance
when the whole pass succeeds.

Use --since to widen the scan window, for example after repairing data by
hand:
  pharmsync sync --since "3 days ago"
  pharmsync sync --since 2026-08-01T00:00:00Z`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg := mustConfig()
		e := openEnv(ctx, cfg)
		defer e.Close()

		engineCfg := &syncengine.Config{
			BatchSize: cfg.BatchSize,
			Verbose:   verbose,
			Logger:    logging.New(cfg.Log, "[sync] "),
		}
		if syncBatchFlag > 0 {
			engineCfg.BatchSize = syncBatchFlag
		}
		if syncSinceFlag != "" {
			since, err := parseSince(syncSinceFlag)
			if err != nil {
				fail("%v", err)
			}
			engineCfg.Since = since
		}

		engine := syncengine.New(e.local, e.remote, e.cursors, e.pharmacy, engineCfg)
		report, err := engine.Run(ctx)
		if err != nil {
			fail("sync failed: %v", err)
		}

		if syncJSONFlag {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				fail("%v", err)
			}
			return
		}

		fmt.Printf("%s Sync complete in %v for %s\n",
			ui.RenderPass("✓"), report.Duration.Round(time.Millisecond), e.pharmacy.Name)
		fmt.Printf("   Pushed: %d created, %d updated, %d unchanged\n",
			report.Push.Creates, report.Push.Updates, report.Push.NoOps)
		fmt.Printf("   Pulled: %d created, %d updated, %d unchanged\n",
			report.Pull.Creates, report.Pull.Updates, report.Pull.NoOps)
		if report.UsersPreloaded > 0 {
			fmt.Printf("   %s\n", ui.RenderDim(fmt.Sprintf("Preloaded %d user accounts", report.UsersPreloaded)))
		}
	},
}

// parseSince accepts RFC 3339 or natural language ("yesterday", "3 days
// ago").
func parseSince(text string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t.UTC(), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(text, time.Now())
	if err != nil || r == nil {
		return time.Time{}, fmt.Errorf("cannot parse --since %q; use RFC 3339 or e.g. \"3 days ago\"", text)
	}
	return r.Time.UTC(), nil
}

func init() {
	syncCmd.Flags().StringVar(&syncSinceFlag, "since", "", "widen the scan window down to this time")
	syncCmd.Flags().IntVar(&syncBatchFlag, "batch-size", 0, "override the configured batch size")
	syncCmd.Flags().BoolVar(&syncJSONFlag, "json", false, "print the run report as JSON")
	rootCmd.AddCommand(syncCmd)
}
