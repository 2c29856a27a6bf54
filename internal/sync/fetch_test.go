package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hopitalsage/pharmsync/internal/store"
)

func TestFetcher_KeysetPaginationCoversEveryRowOnce(t *testing.T) {
	ctx := context.Background()
	local, _ := openPair(t)

	insertPharmacy(t, local, tenantID, "Pharmacie Lumière", baseTime)
	for i := 0; i < 10; i++ {
		insertStockItem(t, local, fmt.Sprintf("item-%02d", i), tenantID, "Sirop", baseTime.Add(time.Duration(i)*time.Second))
	}

	f := &fetcher{
		src:       local,
		desc:      mustFind(t, "StockItem"),
		tenantID:  tenantID,
		useSince:  false,
		batchSize: 3,
	}

	seen := make(map[string]int)
	var pages []int
	for {
		batch, err := f.next(ctx)
		if err != nil {
			t.Fatalf("next() failed: %v", err)
		}
		if len(batch) == 0 {
			break
		}
		pages = append(pages, len(batch))
		for _, rec := range batch {
			seen[rec.pk(f.desc)]++
		}
	}

	if len(seen) != 10 {
		t.Errorf("scan covered %d distinct rows, want 10", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("row %s seen %d times, want exactly once", id, n)
		}
	}
	want := []int{3, 3, 3, 1}
	if len(pages) != len(want) {
		t.Fatalf("page sizes = %v, want %v", pages, want)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Fatalf("page sizes = %v, want %v", pages, want)
		}
	}
}

func TestFetcher_TenantPredicateExcludesOtherTenants(t *testing.T) {
	ctx := context.Background()
	local, _ := openPair(t)

	otherID := "0b0b0b0b-0000-4000-8000-000000000002"
	insertPharmacy(t, local, tenantID, "Pharmacie Lumière", baseTime)
	insertPharmacy(t, local, otherID, "Pharmacie du Fleuve", baseTime)
	insertStockItem(t, local, "mine-01", tenantID, "Sirop", baseTime)
	insertStockItem(t, local, "theirs-01", otherID, "Sirop", baseTime)

	f := &fetcher{src: local, desc: mustFind(t, "StockItem"), tenantID: tenantID, batchSize: 10}
	batch, err := f.next(ctx)
	if err != nil {
		t.Fatalf("next() failed: %v", err)
	}
	if len(batch) != 1 || batch[0].pk(f.desc) != "mine-01" {
		t.Errorf("got %d rows, want only mine-01", len(batch))
	}
}

// The tenant predicate follows the relation chain: sale lines carry no
// pharmacy column and are matched through their parent sale.
func TestFetcher_TenantPredicateThroughParentRelation(t *testing.T) {
	ctx := context.Background()
	local, _ := openPair(t)

	otherID := "0b0b0b0b-0000-4000-8000-000000000002"
	insertPharmacy(t, local, tenantID, "Pharmacie Lumière", baseTime)
	insertPharmacy(t, local, otherID, "Pharmacie du Fleuve", baseTime)
	sellerID := "1c1c1c1c-0000-4000-8000-000000000003"
	insertUser(t, local, sellerID, "vendeuse1", baseTime)
	insertSale(t, local, "sale-mine", tenantID, sellerID, baseTime)
	insertSale(t, local, "sale-theirs", otherID, sellerID, baseTime)
	for _, saleID := range []string{"sale-mine", "sale-theirs"} {
		mustExec(t, local,
			`INSERT INTO sale_lines (id, sale_id, stock_item_id, quantity, unit_price, updated_at)
			 VALUES (?, ?, NULL, 2, 1500, ?)`,
			"line-"+saleID, saleID, store.FormatTime(baseTime))
	}

	f := &fetcher{src: local, desc: mustFind(t, "SaleLine"), tenantID: tenantID, batchSize: 10}
	batch, err := f.next(ctx)
	if err != nil {
		t.Fatalf("next() failed: %v", err)
	}
	if len(batch) != 1 || batch[0].pk(f.desc) != "line-sale-mine" {
		t.Errorf("got %d rows, want only line-sale-mine", len(batch))
	}
}

func TestFetcher_SinceBoundIsExclusive(t *testing.T) {
	ctx := context.Background()
	local, _ := openPair(t)

	insertPharmacy(t, local, tenantID, "Pharmacie Lumière", baseTime)
	cut := baseTime.Add(time.Hour)
	insertStockItem(t, local, "old-01", tenantID, "Sirop", cut.Add(-time.Second))
	insertStockItem(t, local, "exact-01", tenantID, "Sirop", cut)
	insertStockItem(t, local, "new-01", tenantID, "Sirop", cut.Add(time.Second))

	f := &fetcher{
		src:       local,
		desc:      mustFind(t, "StockItem"),
		tenantID:  tenantID,
		since:     cut,
		useSince:  true,
		batchSize: 10,
	}
	batch, err := f.next(ctx)
	if err != nil {
		t.Fatalf("next() failed: %v", err)
	}
	if len(batch) != 1 || batch[0].pk(f.desc) != "new-01" {
		t.Errorf("got %d rows, want only new-01 (strictly after the cursor)", len(batch))
	}
}

func TestLoadRecord_AbsentIsNil(t *testing.T) {
	ctx := context.Background()
	local, _ := openPair(t)

	rec, err := loadRecord(ctx, local, mustFind(t, "Pharmacy"), "no-such-id")
	if err != nil {
		t.Fatalf("loadRecord() failed: %v", err)
	}
	if rec != nil {
		t.Errorf("got %v, want nil for an absent row", rec)
	}
}
