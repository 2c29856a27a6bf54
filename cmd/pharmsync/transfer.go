package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hopitalsage/pharmsync/internal/store"
	"github.com/hopitalsage/pharmsync/internal/tenant"
	"github.com/hopitalsage/pharmsync/internal/transfer"
	"github.com/hopitalsage/pharmsync/internal/ui"
)

var exportAllFlag bool

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the local store as a JSONL archive",
	Long: `Write this site's data as a JSONL archive, one record per line, in
referential order. Without a file argument the archive goes to stdout.

By default only this pharmacy's tenant-scoped records are exported, plus
all global reference data; --all exports every tenant in the store.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg := mustConfig()

		local, err := store.OpenLocal(cfg.LocalPath)
		if err != nil {
			fail("opening local store: %v", err)
		}
		defer local.Close()

		tenantID := ""
		if !exportAllFlag {
			tc, err := tenant.LoadConfig(cfg.TenantFile)
			if err != nil {
				fail("%v\nUse --all to export without a tenant identity.", err)
			}
			tenantID = tc.PharmacyID
		}

		out := os.Stdout
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Create(args[0])
			if err != nil {
				fail("%v", err)
			}
			defer f.Close()
			out = f
		}

		res, err := transfer.Export(ctx, local, tenantID, out)
		if err != nil {
			fail("%v", err)
		}

		fmt.Fprintf(os.Stderr, "%s Exported %d records\n", ui.RenderPass("✓"), res.Lines)
		printEntityCounts(res)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replay a JSONL archive into the local store",
	Long: `Replay a JSONL archive produced by export into the local store.

The archive is applied in one transaction with the engine's conflict
rule: an existing record is only overwritten by a strictly newer copy, so
importing an old archive never clobbers fresher data.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg := mustConfig()

		local, err := store.OpenLocal(cfg.LocalPath)
		if err != nil {
			fail("opening local store: %v", err)
		}
		defer local.Close()
		if err := local.InitSchema(ctx); err != nil {
			fail("initializing schema: %v", err)
		}

		in := os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				fail("%v", err)
			}
			defer f.Close()
			in = f
		}

		res, err := transfer.Import(ctx, local, in)
		if err != nil {
			fail("%v", err)
		}

		fmt.Fprintf(os.Stderr, "%s Imported %d records\n", ui.RenderPass("✓"), res.Lines)
		printEntityCounts(res)
	},
}

func printEntityCounts(res *transfer.Result) {
	entities := make([]string, 0, len(res.ByEntity))
	for name := range res.ByEntity {
		entities = append(entities, name)
	}
	sort.Strings(entities)
	for _, name := range entities {
		fmt.Fprintf(os.Stderr, "   %s\n", ui.RenderDim(fmt.Sprintf("%-20s %d", name, res.ByEntity[name])))
	}
}

func init() {
	exportCmd.Flags().BoolVar(&exportAllFlag, "all", false, "export every tenant, not just this site's")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
