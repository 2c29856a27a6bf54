package transfer

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hopitalsage/pharmsync/internal/store"
)

func openStore(t *testing.T, name string) *store.Store {
	t.Helper()
	s, err := store.OpenLocal(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("OpenLocal() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return s
}

const tenantID = "0a0a0a0a-0000-4000-8000-000000000001"

var baseTime = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func seedTenant(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	stamp := store.FormatTime(baseTime)

	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := s.DB().ExecContext(ctx, query, args...); err != nil {
			t.Fatalf("exec failed: %v", err)
		}
	}

	exec(`INSERT INTO users (id, username, email, password_hash, is_active, is_staff, is_superuser, date_joined, last_login)
	      VALUES ('user-1', 'vendeuse1', 'v@example.cd', 'hash', 1, 0, 0, ?, NULL)`, stamp)
	exec(`INSERT INTO pharmacies (id, name, address, phone, tax_id, updated_at) VALUES (?, 'Pharmacie Lumière', 'a', 'p', 't', ?)`, tenantID, stamp)
	exec(`INSERT INTO stock_items (id, pharmacy_id, product_id, name, quantity, unit_price, alert_quantity, expires_at, updated_at)
	      VALUES ('item-1', ?, NULL, 'Quinine', 10, 1500, 2, NULL, ?)`, tenantID, stamp)
	exec(`INSERT INTO sales (id, pharmacy_id, customer_id, seller_id, total, currency, sold_at, updated_at)
	      VALUES ('sale-1', ?, NULL, 'user-1', 3000, 'CDF', ?, ?)`, tenantID, stamp, stamp)
	exec(`INSERT INTO sale_lines (id, sale_id, stock_item_id, quantity, unit_price, updated_at)
	      VALUES ('line-1', 'sale-1', 'item-1', 2, 1500, ?)`, stamp)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openStore(t, "src.db")
	dst := openStore(t, "dst.db")
	seedTenant(t, src)

	var buf bytes.Buffer
	exported, err := Export(ctx, src, tenantID, &buf)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if exported.Lines != 5 {
		t.Errorf("exported %d lines, want 5", exported.Lines)
	}
	if exported.ByEntity["User"] != 1 || exported.ByEntity["SaleLine"] != 1 {
		t.Errorf("per-entity counts = %v", exported.ByEntity)
	}

	imported, err := Import(ctx, dst, &buf)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if imported.Lines != 5 {
		t.Errorf("imported %d lines, want 5", imported.Lines)
	}

	for _, table := range []string{"users", "pharmacies", "stock_items", "sales", "sale_lines"} {
		n, err := dst.Count(ctx, table)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("%s rows = %d, want 1", table, n)
		}
	}
}

func TestExport_TenantFiltered(t *testing.T) {
	ctx := context.Background()
	src := openStore(t, "src.db")
	seedTenant(t, src)

	otherID := "0b0b0b0b-0000-4000-8000-000000000002"
	stamp := store.FormatTime(baseTime)
	if _, err := src.DB().ExecContext(ctx,
		`INSERT INTO pharmacies (id, name, address, phone, tax_id, updated_at) VALUES (?, 'Autre', 'a', 'p', 't', ?)`,
		otherID, stamp); err != nil {
		t.Fatal(err)
	}
	if _, err := src.DB().ExecContext(ctx,
		`INSERT INTO stock_items (id, pharmacy_id, product_id, name, quantity, unit_price, alert_quantity, expires_at, updated_at)
		 VALUES ('other-item', ?, NULL, 'Sirop', 1, 100, 1, NULL, ?)`,
		otherID, stamp); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	res, err := Export(ctx, src, tenantID, &buf)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if res.ByEntity["StockItem"] != 1 {
		t.Errorf("exported %d stock items, want only the tenant's 1", res.ByEntity["StockItem"])
	}
	if strings.Contains(buf.String(), "other-item") {
		t.Error("archive contains another tenant's record")
	}
	// Global entities are never tenant-filtered.
	if res.ByEntity["Pharmacy"] != 2 {
		t.Errorf("exported %d pharmacies, want 2", res.ByEntity["Pharmacy"])
	}
}

func TestImport_OnlyNewerOverwrites(t *testing.T) {
	ctx := context.Background()
	dst := openStore(t, "dst.db")
	seedTenant(t, dst)

	newer := store.FormatTime(baseTime.Add(time.Hour))
	older := store.FormatTime(baseTime.Add(-time.Hour))

	archive := `{"entity":"Pharmacy","record":{"id":"` + tenantID + `","name":"Renommée","address":"a","phone":"p","tax_id":"t","updated_at":"` + newer + `"}}
{"entity":"StockItem","record":{"id":"item-1","pharmacy_id":"` + tenantID + `","product_id":null,"name":"Vieux Nom","quantity":1,"unit_price":1,"alert_quantity":1,"expires_at":null,"updated_at":"` + older + `"}}
`
	if _, err := Import(ctx, dst, strings.NewReader(archive)); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	var name string
	if err := dst.DB().QueryRow(`SELECT name FROM pharmacies WHERE id = ?`, tenantID).Scan(&name); err != nil {
		t.Fatal(err)
	}
	if name != "Renommée" {
		t.Errorf("newer archive record did not overwrite: name = %q", name)
	}

	if err := dst.DB().QueryRow(`SELECT name FROM stock_items WHERE id = 'item-1'`).Scan(&name); err != nil {
		t.Fatal(err)
	}
	if name != "Quinine" {
		t.Errorf("older archive record overwrote fresher data: name = %q", name)
	}
}

// Entities without a change timestamp carry no ordering information, so an
// archive copy must never replace an existing row.
func TestImport_TimestamplessNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	dst := openStore(t, "dst.db")
	seedTenant(t, dst)

	if _, err := dst.DB().ExecContext(ctx, `INSERT INTO pharmacy_ads (id, pharmacy_id, title, body, starts_at, ends_at)
	      VALUES ('ad-1', ?, 'Promo locale', 'b', NULL, NULL)`, tenantID); err != nil {
		t.Fatalf("exec failed: %v", err)
	}

	archive := `{"entity":"PharmacyAd","record":{"id":"ad-1","pharmacy_id":"` + tenantID + `","title":"Promo archivée","body":"b","starts_at":null,"ends_at":null}}
`
	res, err := Import(ctx, dst, strings.NewReader(archive))
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Lines != 1 {
		t.Errorf("Lines = %d, want 1", res.Lines)
	}

	var title string
	if err := dst.DB().QueryRow(`SELECT title FROM pharmacy_ads WHERE id = 'ad-1'`).Scan(&title); err != nil {
		t.Fatal(err)
	}
	if title != "Promo locale" {
		t.Errorf("archive record replaced existing row: title = %q", title)
	}
}

func TestImport_UserLinesFillGapsOnly(t *testing.T) {
	ctx := context.Background()
	dst := openStore(t, "dst.db")
	seedTenant(t, dst)

	archive := `{"entity":"User","record":{"id":"user-1","username":"imposteur","email":"x","password_hash":"x","is_active":1,"is_staff":0,"is_superuser":0,"date_joined":"` + store.FormatTime(baseTime) + `","last_login":null}}
{"entity":"User","record":{"id":"user-2","username":"nouveau","email":"n@example.cd","password_hash":"h","is_active":1,"is_staff":0,"is_superuser":0,"date_joined":"` + store.FormatTime(baseTime) + `","last_login":null}}
`
	if _, err := Import(ctx, dst, strings.NewReader(archive)); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	var username string
	if err := dst.DB().QueryRow(`SELECT username FROM users WHERE id = 'user-1'`).Scan(&username); err != nil {
		t.Fatal(err)
	}
	if username != "vendeuse1" {
		t.Errorf("existing account overwritten: username = %q", username)
	}
	if err := dst.DB().QueryRow(`SELECT username FROM users WHERE id = 'user-2'`).Scan(&username); err != nil {
		t.Fatalf("missing account not created: %v", err)
	}
}

func TestImport_UnknownEntityAborts(t *testing.T) {
	ctx := context.Background()
	dst := openStore(t, "dst.db")

	archive := `{"entity":"Mystery","record":{"id":"x"}}`
	if _, err := Import(ctx, dst, strings.NewReader(archive)); err == nil {
		t.Fatal("Import() accepted an unknown entity")
	}

	// Nothing committed.
	n, err := dst.Count(ctx, "pharmacies")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("pharmacies = %d after failed import, want 0", n)
	}
}
