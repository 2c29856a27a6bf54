// Command pharmsync keeps a pharmacy's local store and the shared central
// store in step. See the sync subcommand for the engine itself; init,
// status, daemon, seed, export and import cover the surrounding workflow.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hopitalsage/pharmsync/internal/config"
	"github.com/hopitalsage/pharmsync/internal/cursor"
	"github.com/hopitalsage/pharmsync/internal/store"
	"github.com/hopitalsage/pharmsync/internal/tenant"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pharmsync",
	Short: "Bidirectional sync between a pharmacy's local store and the central store",
	Long: `pharmsync moves pharmacy data both ways between the embedded local
store and the shared central store.

Global reference data (manufacturers, products, exchange rates) moves for
everyone; operational data (stock, sales, customers, exams) moves only for
the pharmacy this site is configured as. Records are matched by primary
key and a record is never overwritten by an older copy.

Typical workflow:
  pharmsync init       # one-time site setup
  pharmsync sync       # one synchronization pass
  pharmsync daemon     # keep syncing in the background
  pharmsync status     # cursors and store contents`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default .pharmsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func mustConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fail("%v", err)
	}
	return cfg
}

// env is everything an online command needs: both stores open, cursors
// loaded, tenant resolved.
type env struct {
	cfg      *config.Config
	local    *store.Store
	remote   *store.Store
	cursors  *cursor.Store
	pharmacy *tenant.Pharmacy
}

func openEnv(ctx context.Context, cfg *config.Config) *env {
	local, err := store.OpenLocal(cfg.LocalPath)
	if err != nil {
		fail("opening local store: %v", err)
	}

	remote, err := store.OpenRemote(cfg.RemoteURL, cfg.RemoteAuthToken)
	if err != nil {
		local.Close()
		fail("opening central store: %v", err)
	}

	cursors, err := cursor.Open(cfg.StateFile)
	if err != nil {
		local.Close()
		remote.Close()
		fail("loading sync state: %v", err)
	}

	tc, err := tenant.LoadConfig(cfg.TenantFile)
	if err != nil {
		local.Close()
		remote.Close()
		fail("%v\nRun 'pharmsync init' to configure this site.", err)
	}
	pharmacy, err := tenant.Resolve(ctx, local, tc.PharmacyID)
	if err != nil {
		local.Close()
		remote.Close()
		fail("%v", err)
	}

	return &env{cfg: cfg, local: local, remote: remote, cursors: cursors, pharmacy: pharmacy}
}

func (e *env) Close() {
	if e.local != nil {
		e.local.Close()
	}
	if e.remote != nil {
		e.remote.Close()
	}
}
