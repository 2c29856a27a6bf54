package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hopitalsage/pharmsync/internal/seed"
	"github.com/hopitalsage/pharmsync/internal/store"
	"github.com/hopitalsage/pharmsync/internal/tenant"
	"github.com/hopitalsage/pharmsync/internal/ui"
)

var (
	seedManufacturersFlag int
	seedProductsFlag      int
	seedCustomersFlag     int
	seedSalesFlag         int
	seedRandFlag          int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the local store with demo data",
	Long: `Fill the local store with a randomized but realistic demo dataset:
manufacturers, products, stock, customers and sales, all scoped to this
site's pharmacy. Meant for trying out the sync pipeline, never for
production stores.`,
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

		opts := seed.DefaultOptions()
		opts.Manufacturers = seedManufacturersFlag
		opts.Products = seedProductsFlag
		opts.Customers = seedCustomersFlag
		opts.Sales = seedSalesFlag
		opts.Seed = seedRandFlag

		// Reuse this site's identity when it is already configured, so the
		// demo data syncs as this tenant.
		if tc, err := tenant.LoadConfig(cfg.TenantFile); err == nil {
			opts.PharmacyID = tc.PharmacyID
			if p, err := tenant.Resolve(ctx, local, tc.PharmacyID); err == nil {
				fail("pharmacy %s already has data in this store; seed only empty stores", p.Name)
			}
		}

		sum, err := seed.Populate(ctx, local, opts)
		if err != nil {
			fail("%v", err)
		}

		fmt.Printf("%s Seeded %s\n", ui.RenderPass("✓"), cfg.LocalPath)
		fmt.Printf("   Pharmacy:      %s\n", sum.PharmacyID)
		fmt.Printf("   Manufacturers: %d\n", sum.Manufacturers)
		fmt.Printf("   Products:      %d (with stock)\n", sum.Products)
		fmt.Printf("   Customers:     %d\n", sum.Customers)
		fmt.Printf("   Sales:         %d (%d lines)\n", sum.Sales, sum.SaleLines)
	},
}

func init() {
	defaults := seed.DefaultOptions()
	seedCmd.Flags().IntVar(&seedManufacturersFlag, "manufacturers", defaults.Manufacturers, "manufacturers to generate")
	seedCmd.Flags().IntVar(&seedProductsFlag, "products", defaults.Products, "products to generate")
	seedCmd.Flags().IntVar(&seedCustomersFlag, "customers", defaults.Customers, "customers to generate")
	seedCmd.Flags().IntVar(&seedSalesFlag, "sales", defaults.Sales, "sales to generate")
	seedCmd.Flags().Int64Var(&seedRandFlag, "seed", 0, "random seed for reproducible datasets")
	rootCmd.AddCommand(seedCmd)
}
