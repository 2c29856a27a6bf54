package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hopitalsage/pharmsync/internal/store"
	"github.com/hopitalsage/pharmsync/internal/ui"
)

var (
	initIDFlag     string
	initNameFlag   string
	initRemoteFlag string
	initTokenFlag  string
	initYesFlag    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Configure this site: tenant identity, stores and schema",
	Long: `Configure this machine as one pharmacy site.

Init writes the tenant identity artifact and the configuration file,
creates the local store with its schema, and registers the pharmacy row
locally. Run it once per site; rerunning is safe and keeps existing data.

Without flags an interactive form collects the details. With --yes all
values come from flags, for scripted provisioning.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg := mustConfig()

		id := initIDFlag
		name := initNameFlag
		remoteURL := initRemoteFlag
		token := initTokenFlag

		if !initYesFlag {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Pharmacy UUID").
						Description("Leave empty to generate a new identity").
						Value(&id).
						Validate(func(s string) error {
							if s == "" {
								return nil
							}
							if _, err := uuid.Parse(s); err != nil {
								return fmt.Errorf("not a UUID")
							}
							return nil
						}),
					huh.NewInput().
						Title("Pharmacy name").
						Value(&name).
						Validate(func(s string) error {
							if s == "" {
								return fmt.Errorf("name is required")
							}
							return nil
						}),
					huh.NewInput().
						Title("Central store URL").
						Description("libsql:// URL, or a file path for a shared file store").
						Value(&remoteURL),
					huh.NewInput().
						Title("Central store auth token").
						EchoMode(huh.EchoModePassword).
						Value(&token),
				),
			)
			if err := form.Run(); err != nil {
				fail("%v", err)
			}
		}

		if id == "" {
			id = uuid.NewString()
		} else if _, err := uuid.Parse(id); err != nil {
			fail("pharmacy id %q is not a UUID", id)
		}
		if name == "" {
			fail("a pharmacy name is required")
		}

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			fail("creating %s: %v", cfg.DataDir, err)
		}

		// Tenant identity artifact.
		artifact, err := json.MarshalIndent(map[string]string{"pharmacy_id": id}, "", "  ")
		if err != nil {
			fail("%v", err)
		}
		if err := os.WriteFile(cfg.TenantFile, append(artifact, '\n'), 0o644); err != nil {
			fail("writing %s: %v", cfg.TenantFile, err)
		}

		if remoteURL != "" {
			cfg.RemoteURL = remoteURL
			cfg.RemoteAuthToken = token
			if err := writeConfigFile(cfg.DataDir, remoteURL, token); err != nil {
				fail("%v", err)
			}
		}

		local, err := store.OpenLocal(cfg.LocalPath)
		if err != nil {
			fail("opening local store: %v", err)
		}
		defer local.Close()
		if err := local.InitSchema(ctx); err != nil {
			fail("initializing schema: %v", err)
		}

		// Register the pharmacy locally; an existing row wins.
		now := store.FormatTime(time.Now().UTC())
		if _, err := local.DB().ExecContext(ctx,
			`INSERT INTO pharmacies (id, name, address, phone, tax_id, updated_at)
			 VALUES (?, ?, '', '', '', ?) ON CONFLICT(id) DO NOTHING`,
			id, name, now); err != nil {
			fail("registering pharmacy: %v", err)
		}

		fmt.Printf("%s Site configured as %s\n", ui.RenderPass("✓"), name)
		fmt.Printf("   Pharmacy id: %s\n", id)
		fmt.Printf("   Local store: %s\n", cfg.LocalPath)
		if remoteURL != "" {
			fmt.Printf("   Central:     %s\n", remoteURL)
		} else {
			fmt.Printf("   %s\n", ui.RenderWarn("No central store configured; set remote.url before syncing"))
		}
	},
}

func writeConfigFile(dataDir, remoteURL, token string) error {
	path := filepath.Join(dataDir, "config.yaml")
	content := fmt.Sprintf("remote:\n  url: %q\n", remoteURL)
	if token != "" {
		content += fmt.Sprintf("  auth_token: %q\n", token)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func init() {
	initCmd.Flags().StringVar(&initIDFlag, "id", "", "pharmacy UUID (default: generate)")
	initCmd.Flags().StringVar(&initNameFlag, "name", "", "pharmacy name")
	initCmd.Flags().StringVar(&initRemoteFlag, "remote", "", "central store URL")
	initCmd.Flags().StringVar(&initTokenFlag, "auth-token", "", "central store auth token")
	initCmd.Flags().BoolVarP(&initYesFlag, "yes", "y", false, "non-interactive; take all values from flags")
	rootCmd.AddCommand(initCmd)
}
