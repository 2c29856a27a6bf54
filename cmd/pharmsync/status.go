package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hopitalsage/pharmsync/internal/registry"
	"github.com/hopitalsage/pharmsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tenant identity, store contents and sync cursors",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg := mustConfig()
		e := openEnv(ctx, cfg)
		defer e.Close()

		fmt.Println(ui.RenderHeader("Site"))
		fmt.Printf("  Pharmacy:     %s (%s)\n", e.pharmacy.Name, e.pharmacy.ID)
		fmt.Printf("  Local store:  %s\n", cfg.LocalPath)
		fmt.Printf("  Central:      %s\n", cfg.RemoteURL)
		fmt.Printf("  Sync state:   %s\n", cfg.StateFile)

		fmt.Println()
		fmt.Println(ui.RenderHeader("Records (local / central)"))
		for _, d := range registry.All() {
			local, err := e.local.Count(ctx, d.Table)
			if err != nil {
				fail("counting local %s: %v", d.Table, err)
			}
			remote, err := e.remote.Count(ctx, d.Table)
			if err != nil {
				fail("counting central %s: %v", d.Table, err)
			}
			if local == 0 && remote == 0 {
				continue
			}
			marker := ui.RenderPass("✓")
			if local != remote {
				marker = ui.RenderWarn("~")
			}
			fmt.Printf("  %s %-20s %6d / %d\n", marker, d.Name, local, remote)
		}

		entries := e.cursors.All()
		fmt.Println()
		fmt.Println(ui.RenderHeader("Cursors"))
		if len(entries) == 0 {
			fmt.Printf("  %s\n", ui.RenderDim("never synced"))
			return
		}
		for _, entry := range entries {
			fmt.Printf("  %-40s %s\n", entry.Key, ui.RenderDim(entry.Time.Format(time.RFC3339)))
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
