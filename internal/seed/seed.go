// Package seed populates a local store with realistic demo data.
//
// It exists for trying out the sync pipeline without a live pharmacy:
// seed a local store, run a sync, inspect what arrived centrally.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/hopitalsage/pharmsync/internal/store"
)

// Options controls the generated dataset.
type Options struct {
	// PharmacyID is the tenant everything is scoped to. Empty generates one.
	PharmacyID string

	// PharmacyName labels the generated tenant.
	PharmacyName string

	Manufacturers int
	Products      int
	Customers     int
	Sales         int

	// Seed fixes the random source for reproducible datasets. Zero uses the
	// current time.
	Seed int64
}

// DefaultOptions returns a small but representative dataset.
func DefaultOptions() Options {
	return Options{
		PharmacyName:  "Pharmacie de Démonstration",
		Manufacturers: 5,
		Products:      40,
		Customers:     25,
		Sales:         60,
	}
}

// Summary reports what was generated.
type Summary struct {
	PharmacyID    string
	Manufacturers int
	Products      int
	StockItems    int
	Customers     int
	Sales         int
	SaleLines     int
}

var (
	productNames = []string{
		"Paracétamol 500mg", "Amoxicilline 250mg", "Ibuprofène 400mg",
		"Quinine 500mg", "Artemether-Lumefantrine", "Métronidazole 250mg",
		"Oméprazole 20mg", "Sirop antitussif", "Vitamine C 1g",
		"Sérum oral", "Mebendazole 100mg", "Diclofenac gel",
	}
	manufacturerNames = []string{
		"Labo Kin", "Pharmakina", "Nouvelle Pharmacie du Congo",
		"Shalina", "Zenufa", "Bukavu Pharma",
	}
	customerNames = []string{
		"M. Ilunga", "Mme Kabongo", "M. Tshisekedi", "Mme Mwamba",
		"M. Kasongo", "Mme Nzuzi", "M. Mbuyi", "Mme Luzolo",
	}
)

// Populate writes the demo dataset into s. The store must have its schema
// initialized. Everything is committed in one transaction.
func Populate(ctx context.Context, s *store.Store, opts Options) (*Summary, error) {
	if opts.PharmacyID == "" {
		opts.PharmacyID = uuid.NewString()
	}
	if opts.PharmacyName == "" {
		opts.PharmacyName = DefaultOptions().PharmacyName
	}
	src := rand.New(rand.NewSource(opts.Seed))
	if opts.Seed == 0 {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	now := time.Now().UTC()
	stamp := store.FormatTime(now)

	tx, err := s.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	sum := &Summary{PharmacyID: opts.PharmacyID}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pharmacies (id, name, address, phone, tax_id, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		opts.PharmacyID, opts.PharmacyName, "12 Avenue du Commerce, Kinshasa",
		fmt.Sprintf("+24399%07d", src.Intn(10000000)), fmt.Sprintf("RC-%05d", src.Intn(100000)), stamp,
	); err != nil {
		return nil, fmt.Errorf("failed to seed pharmacy: %w", err)
	}

	sellerID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, is_active, is_staff, is_superuser, date_joined, last_login)
		 VALUES (?, 'vendeuse', 'vendeuse@example.cd', 'demo-hash', 1, 0, 0, ?, NULL)`,
		sellerID, stamp,
	); err != nil {
		return nil, fmt.Errorf("failed to seed seller account: %w", err)
	}

	manufacturerIDs := make([]string, 0, opts.Manufacturers)
	for i := 0; i < opts.Manufacturers; i++ {
		id := uuid.NewString()
		name := fmt.Sprintf("%s %d", manufacturerNames[i%len(manufacturerNames)], i/len(manufacturerNames)+1)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO manufacturers (id, name, country, phone, updated_at) VALUES (?, ?, 'CD', NULL, ?)`,
			id, name, stamp,
		); err != nil {
			return nil, fmt.Errorf("failed to seed manufacturer: %w", err)
		}
		manufacturerIDs = append(manufacturerIDs, id)
		sum.Manufacturers++
	}

	productIDs := make([]string, 0, opts.Products)
	productPrices := make(map[string]int)
	for i := 0; i < opts.Products; i++ {
		id := uuid.NewString()
		name := fmt.Sprintf("%s (lot %d)", productNames[i%len(productNames)], i/len(productNames)+1)
		price := 500 + src.Intn(9500)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO manufacturer_products (id, manufacturer_id, name, barcode, unit_price, updated_at)
			 VALUES (?, ?, ?, NULL, ?, ?)`,
			id, manufacturerIDs[src.Intn(len(manufacturerIDs))], name, price, stamp,
		); err != nil {
			return nil, fmt.Errorf("failed to seed product: %w", err)
		}
		productIDs = append(productIDs, id)
		productPrices[id] = price
		sum.Products++
	}

	stockItemIDs := make([]string, 0, opts.Products)
	for _, productID := range productIDs {
		id := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock_items (id, pharmacy_id, product_id, name, quantity, unit_price, alert_quantity, expires_at, updated_at)
			 VALUES (?, ?, ?, (SELECT name FROM manufacturer_products WHERE id = ?), ?, ?, 5, ?, ?)`,
			id, opts.PharmacyID, productID, productID,
			src.Intn(200), productPrices[productID]+src.Intn(500),
			store.FormatTime(now.AddDate(0, 6+src.Intn(18), 0)), stamp,
		); err != nil {
			return nil, fmt.Errorf("failed to seed stock item: %w", err)
		}
		stockItemIDs = append(stockItemIDs, id)
		sum.StockItems++
	}

	customerIDs := make([]string, 0, opts.Customers)
	for i := 0; i < opts.Customers; i++ {
		id := uuid.NewString()
		name := fmt.Sprintf("%s %d", customerNames[i%len(customerNames)], i/len(customerNames)+1)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO customers (id, pharmacy_id, full_name, phone, address, updated_at) VALUES (?, ?, ?, NULL, NULL, ?)`,
			id, opts.PharmacyID, name, stamp,
		); err != nil {
			return nil, fmt.Errorf("failed to seed customer: %w", err)
		}
		customerIDs = append(customerIDs, id)
		sum.Customers++
	}

	for i := 0; i < opts.Sales; i++ {
		saleID := uuid.NewString()
		soldAt := now.Add(-time.Duration(src.Intn(30*24)) * time.Hour)

		var customerID any
		if len(customerIDs) > 0 && src.Intn(3) > 0 { // some walk-in sales
			customerID = customerIDs[src.Intn(len(customerIDs))]
		}

		lines := 1 + src.Intn(4)
		total := 0
		type line struct {
			itemID   string
			quantity int
			price    int
		}
		saleLines := make([]line, 0, lines)
		for j := 0; j < lines; j++ {
			itemID := stockItemIDs[src.Intn(len(stockItemIDs))]
			qty := 1 + src.Intn(5)
			price := 500 + src.Intn(9500)
			saleLines = append(saleLines, line{itemID: itemID, quantity: qty, price: price})
			total += qty * price
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sales (id, pharmacy_id, customer_id, seller_id, total, currency, sold_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 'CDF', ?, ?)`,
			saleID, opts.PharmacyID, customerID, sellerID, total, store.FormatTime(soldAt), stamp,
		); err != nil {
			return nil, fmt.Errorf("failed to seed sale: %w", err)
		}
		sum.Sales++

		for _, l := range saleLines {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sale_lines (id, sale_id, stock_item_id, quantity, unit_price, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), saleID, l.itemID, l.quantity, l.price, stamp,
			); err != nil {
				return nil, fmt.Errorf("failed to seed sale line: %w", err)
			}
			sum.SaleLines++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit seed data: %w", err)
	}
	return sum, nil
}
