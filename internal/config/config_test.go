package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.LocalPath != filepath.Join(DefaultDataDir, "local.db") {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
	if cfg.StateFile != filepath.Join(DefaultDataDir, "last_sync.json") {
		t.Errorf("StateFile = %q", cfg.StateFile)
	}
	if cfg.TenantFile != filepath.Join(DefaultDataDir, "pharmacy.json") {
		t.Errorf("TenantFile = %q", cfg.TenantFile)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/pharmsync
local:
  path: /var/lib/pharmsync/site.db
remote:
  url: libsql://central-hopitalsage.turso.io
  auth_token: secret
sync:
  batch_size: 250
log:
  file: /var/log/pharmsync.log
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LocalPath != "/var/lib/pharmsync/site.db" {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
	if cfg.RemoteURL != "libsql://central-hopitalsage.turso.io" {
		t.Errorf("RemoteURL = %q", cfg.RemoteURL)
	}
	if cfg.RemoteAuthToken != "secret" {
		t.Errorf("RemoteAuthToken = %q", cfg.RemoteAuthToken)
	}
	if cfg.BatchSize != 250 {
		t.Errorf("BatchSize = %d, want 250", cfg.BatchSize)
	}
	if cfg.Log.File != "/var/log/pharmsync.log" {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
	// unset paths still default relative to data_dir
	if cfg.StateFile != filepath.Join("/var/lib/pharmsync", "last_sync.json") {
		t.Errorf("StateFile = %q", cfg.StateFile)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() with missing explicit file succeeded, want error")
	}
}
