package store

import (
	"context"
	"fmt"
	"strings"
)

// InitSchema creates every registered entity table plus the users mirror
// table if they do not exist yet. Idempotent, safe to call on both stores.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	-- Mirrored user accounts. Never synchronized as a regular entity: rows
	-- are materialized on demand or bulk preloaded from the central store.
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT,
		password_hash TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_staff INTEGER NOT NULL DEFAULT 0,
		is_superuser INTEGER NOT NULL DEFAULT 0,
		date_joined TEXT NOT NULL,
		last_login TEXT
	);

	-- Global reference data
	CREATE TABLE IF NOT EXISTS exchange_rates (
		id TEXT PRIMARY KEY,
		base_currency TEXT NOT NULL,
		quote_currency TEXT NOT NULL,
		rate REAL NOT NULL,
		effective_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS manufacturers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT,
		phone TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS manufacturer_products (
		id TEXT PRIMARY KEY,
		manufacturer_id TEXT NOT NULL REFERENCES manufacturers(id),
		name TEXT NOT NULL,
		barcode TEXT,
		unit_price REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pharmacies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT,
		tax_id TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pharmacy_ads (
		id TEXT PRIMARY KEY,
		pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
		title TEXT NOT NULL,
		body TEXT,
		starts_at TEXT,
		ends_at TEXT
	);

	-- Tenant-scoped data
	CREATE TABLE IF NOT EXISTS stock_items (
		id TEXT PRIMARY KEY,
		pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
		product_id TEXT REFERENCES manufacturer_products(id),
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		unit_price REAL NOT NULL DEFAULT 0,
		alert_quantity INTEGER NOT NULL DEFAULT 0,
		expires_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stock_lots (
		id TEXT PRIMARY KEY,
		stock_item_id TEXT NOT NULL REFERENCES stock_items(id),
		lot_number TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		expires_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS purchase_orders (
		id TEXT PRIMARY KEY,
		pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
		supplier TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		ordered_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS purchase_order_lines (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES purchase_orders(id),
		product_id TEXT REFERENCES manufacturer_products(id),
		quantity INTEGER NOT NULL DEFAULT 0,
		unit_price REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS receptions (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES purchase_orders(id),
		received_by TEXT REFERENCES users(id),
		received_at TEXT,
		note TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reception_lines (
		id TEXT PRIMARY KEY,
		reception_id TEXT NOT NULL REFERENCES receptions(id),
		order_line_id TEXT REFERENCES purchase_order_lines(id),
		quantity_received INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
		full_name TEXT NOT NULL,
		phone TEXT,
		address TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
		customer_id TEXT REFERENCES customers(id),
		seller_id TEXT REFERENCES users(id),
		total REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'CDF',
		sold_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sale_lines (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		stock_item_id TEXT REFERENCES stock_items(id),
		quantity INTEGER NOT NULL DEFAULT 0,
		unit_price REAL NOT NULL DEFAULT 0,
		total REAL NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customer_purchases (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		amount REAL NOT NULL DEFAULT 0,
		paid_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS medical_exams (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		examined_by TEXT REFERENCES users(id),
		exam_type TEXT NOT NULL,
		result TEXT,
		examined_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS prescriptions (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		medication TEXT NOT NULL,
		dosage TEXT,
		prescribed_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
		customer_id TEXT REFERENCES customers(id),
		scheduled_at TEXT,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'scheduled',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS requisitions (
		id TEXT PRIMARY KEY,
		pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
		requested_by TEXT REFERENCES users(id),
		item TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
		recorded_by TEXT REFERENCES users(id),
		label TEXT NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		spent_at TEXT,
		updated_at TEXT NOT NULL
	);

	-- Indexes for tenant-filtered scans and change-timestamp filters
	CREATE INDEX IF NOT EXISTS idx_stock_items_pharmacy ON stock_items(pharmacy_id);
	CREATE INDEX IF NOT EXISTS idx_stock_lots_item ON stock_lots(stock_item_id);
	CREATE INDEX IF NOT EXISTS idx_purchase_orders_pharmacy ON purchase_orders(pharmacy_id);
	CREATE INDEX IF NOT EXISTS idx_purchase_order_lines_order ON purchase_order_lines(order_id);
	CREATE INDEX IF NOT EXISTS idx_receptions_order ON receptions(order_id);
	CREATE INDEX IF NOT EXISTS idx_reception_lines_reception ON reception_lines(reception_id);
	CREATE INDEX IF NOT EXISTS idx_customers_pharmacy ON customers(pharmacy_id);
	CREATE INDEX IF NOT EXISTS idx_sales_pharmacy ON sales(pharmacy_id);
	CREATE INDEX IF NOT EXISTS idx_sale_lines_sale ON sale_lines(sale_id);
	CREATE INDEX IF NOT EXISTS idx_customer_purchases_customer ON customer_purchases(customer_id);
	CREATE INDEX IF NOT EXISTS idx_medical_exams_customer ON medical_exams(customer_id);
	CREATE INDEX IF NOT EXISTS idx_prescriptions_customer ON prescriptions(customer_id);
	CREATE INDEX IF NOT EXISTS idx_appointments_pharmacy ON appointments(pharmacy_id);
	CREATE INDEX IF NOT EXISTS idx_requisitions_pharmacy ON requisitions(pharmacy_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_pharmacy ON expenses(pharmacy_id);

	CREATE INDEX IF NOT EXISTS idx_stock_items_updated ON stock_items(updated_at);
	CREATE INDEX IF NOT EXISTS idx_sales_updated ON sales(updated_at);
	CREATE INDEX IF NOT EXISTS idx_sale_lines_updated ON sale_lines(updated_at);
	`

	// The libsql driver executes only the first statement of a batch, so
	// the DDL runs one statement at a time.
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize %s schema: %w", s.label, err)
		}
	}
	return nil
}
