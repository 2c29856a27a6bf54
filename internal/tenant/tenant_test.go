package tenant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hopitalsage/pharmsync/internal/store"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "pharmacy.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	id := uuid.NewString()
	cfg, err := LoadConfig(writeConfig(t, `{"pharmacy_id": "`+id+`"}`))
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.PharmacyID != id {
		t.Errorf("PharmacyID = %q, want %q", cfg.PharmacyID, id)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("LoadConfig() error = %v, want *ConfigurationError", err)
	}
}

func TestLoadConfig_MissingID(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{}`))
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("LoadConfig() error = %v, want *ConfigurationError", err)
	}
}

func TestLoadConfig_InvalidUUID(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"pharmacy_id": "not-a-uuid"}`))
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("LoadConfig() error = %v, want *ConfigurationError", err)
	}
}

func openLocal(t *testing.T) *store.Store {
	s, err := store.OpenLocal(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("OpenLocal() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return s
}

func TestResolve_Found(t *testing.T) {
	ctx := context.Background()
	local := openLocal(t)

	id := uuid.NewString()
	updated := store.FormatTime(time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))
	_, err := local.DB().ExecContext(ctx,
		`INSERT INTO pharmacies (id, name, address, phone, tax_id, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, "Pharmacie Centrale", "12 Avenue du Marché", "+243900000000", "RC-4411", updated)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	p, err := Resolve(ctx, local, id)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if p.Name != "Pharmacie Centrale" {
		t.Errorf("Name = %q, want %q", p.Name, "Pharmacie Centrale")
	}
	if p.ID != id {
		t.Errorf("ID = %q, want %q", p.ID, id)
	}
}

func TestResolve_NotFound(t *testing.T) {
	ctx := context.Background()
	local := openLocal(t)

	_, err := Resolve(ctx, local, uuid.NewString())
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("Resolve() error = %v, want *ResolutionError", err)
	}
}
