// Package registry defines the static entity descriptors the sync engine
// operates on.
//
// Entities come in two groups:
//
//   - GLOBAL: reference data with no tenant owner (exchange rates,
//     manufacturers, the pharmacy entity itself, shared adverts).
//   - TENANT_SCOPED: records owned by exactly one pharmacy, directly via a
//     pharmacy_id column or transitively through a parent entity.
//
// Both lists are dependency ordered: every entity appears after all entity
// types it references by foreign key. The upsert engine relies on this
// ordering so that a referenced row already exists in the destination when
// a dependent row is written. User accounts are deliberately absent from
// both lists; they are only mirrored on demand (see the sync package).
package registry

// ForeignKey describes one foreign-key column on an entity.
type ForeignKey struct {
	// Column is the column holding the raw key value.
	Column string
	// Target is the entity name the key points at ("User" for accounts).
	Target string
}

// Descriptor is the static, typed metadata for one entity.
//
// Descriptors are immutable and defined once at process start. Primary keys
// are always TEXT UUIDs stored in the PK column.
type Descriptor struct {
	Name    string
	Table   string
	PK      string
	Columns []string // every column except the primary key, in DDL order

	ForeignKeys []ForeignKey

	// HasUpdatedAt reports whether the entity carries a change timestamp.
	// Entities without one degrade to a full scan on every run.
	HasUpdatedAt bool

	// TenantFilter is a SQL predicate with exactly one placeholder bound to
	// the tenant id. Empty for global entities. Join chains are spelled out
	// as static subqueries rather than interpreted relation paths.
	TenantFilter string
}

// AllColumns returns the primary key followed by the remaining columns.
func (d Descriptor) AllColumns() []string {
	cols := make([]string, 0, len(d.Columns)+1)
	cols = append(cols, d.PK)
	cols = append(cols, d.Columns...)
	return cols
}

// WithoutUpdatedAt returns a copy of the descriptor with the change
// timestamp stripped. The sync engine uses it to degrade an entity to a
// full, comparison-free scan when a store's schema has drifted and no
// longer carries the column.
func (d Descriptor) WithoutUpdatedAt() Descriptor {
	out := d
	out.HasUpdatedAt = false
	out.Columns = make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c != "updated_at" {
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}

// UserEntity is the sentinel name for foreign keys targeting user accounts.
const UserEntity = "User"

// UserTable is the table holding mirrored user accounts.
const UserTable = "users"

// UserColumns is the minimal identity mirror copied when a referenced
// account is materialized in a destination store. Relation-heavy fields are
// deliberately excluded.
var UserColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"is_active",
	"is_staff",
	"is_superuser",
	"date_joined",
	"last_login",
}

var global = []Descriptor{
	{
		Name:         "ExchangeRate",
		Table:        "exchange_rates",
		PK:           "id",
		Columns:      []string{"base_currency", "quote_currency", "rate", "effective_at", "updated_at"},
		HasUpdatedAt: true,
	},
	{
		Name:         "Manufacturer",
		Table:        "manufacturers",
		PK:           "id",
		Columns:      []string{"name", "country", "phone", "updated_at"},
		HasUpdatedAt: true,
	},
	{
		Name:         "ManufacturerProduct",
		Table:        "manufacturer_products",
		PK:           "id",
		Columns:      []string{"manufacturer_id", "name", "barcode", "unit_price", "updated_at"},
		ForeignKeys:  []ForeignKey{{Column: "manufacturer_id", Target: "Manufacturer"}},
		HasUpdatedAt: true,
	},
	{
		Name:         "Pharmacy",
		Table:        "pharmacies",
		PK:           "id",
		Columns:      []string{"name", "address", "phone", "tax_id", "updated_at"},
		HasUpdatedAt: true,
	},
	{
		// Shared adverts are visible across sites, so they stay global even
		// though each one names a pharmacy. The table has no change
		// timestamp, which forces a full scan each run.
		Name:        "PharmacyAd",
		Table:       "pharmacy_ads",
		PK:          "id",
		Columns:     []string{"pharmacy_id", "title", "body", "starts_at", "ends_at"},
		ForeignKeys: []ForeignKey{{Column: "pharmacy_id", Target: "Pharmacy"}},
	},
}

var tenantScoped = []Descriptor{
	{
		Name:  "StockItem",
		Table: "stock_items",
		PK:    "id",
		Columns: []string{
			"pharmacy_id", "product_id", "name", "quantity",
			"unit_price", "alert_quantity", "expires_at", "updated_at",
		},
		ForeignKeys: []ForeignKey{
			{Column: "pharmacy_id", Target: "Pharmacy"},
			{Column: "product_id", Target: "ManufacturerProduct"},
		},
		HasUpdatedAt: true,
		TenantFilter: "pharmacy_id = ?",
	},
	{
		Name:         "StockLot",
		Table:        "stock_lots",
		PK:           "id",
		Columns:      []string{"stock_item_id", "lot_number", "quantity", "expires_at", "updated_at"},
		ForeignKeys:  []ForeignKey{{Column: "stock_item_id", Target: "StockItem"}},
		HasUpdatedAt: true,
		TenantFilter: "stock_item_id IN (SELECT id FROM stock_items WHERE pharmacy_id = ?)",
	},
	{
		Name:         "PurchaseOrder",
		Table:        "purchase_orders",
		PK:           "id",
		Columns:      []string{"pharmacy_id", "supplier", "status", "ordered_at", "updated_at"},
		ForeignKeys:  []ForeignKey{{Column: "pharmacy_id", Target: "Pharmacy"}},
		HasUpdatedAt: true,
		TenantFilter: "pharmacy_id = ?",
	},
	{
		Name:    "PurchaseOrderLine",
		Table:   "purchase_order_lines",
		PK:      "id",
		Columns: []string{"order_id", "product_id", "quantity", "unit_price", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Column: "order_id", Target: "PurchaseOrder"},
			{Column: "product_id", Target: "ManufacturerProduct"},
		},
		HasUpdatedAt: true,
		TenantFilter: "order_id IN (SELECT id FROM purchase_orders WHERE pharmacy_id = ?)",
	},
	{
		Name:    "Reception",
		Table:   "receptions",
		PK:      "id",
		Columns: []string{"order_id", "received_by", "received_at", "note", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Column: "order_id", Target: "PurchaseOrder"},
			{Column: "received_by", Target: UserEntity},
		},
		HasUpdatedAt: true,
		TenantFilter: "order_id IN (SELECT id FROM purchase_orders WHERE pharmacy_id = ?)",
	},
	{
		Name:    "ReceptionLine",
		Table:   "reception_lines",
		PK:      "id",
		Columns: []string{"reception_id", "order_line_id", "quantity_received", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Column: "reception_id", Target: "Reception"},
			{Column: "order_line_id", Target: "PurchaseOrderLine"},
		},
		HasUpdatedAt: true,
		TenantFilter: "reception_id IN (SELECT id FROM receptions WHERE order_id IN " +
			"(SELECT id FROM purchase_orders WHERE pharmacy_id = ?))",
	},
	{
		Name:         "Customer",
		Table:        "customers",
		PK:           "id",
		Columns:      []string{"pharmacy_id", "full_name", "phone", "address", "updated_at"},
		ForeignKeys:  []ForeignKey{{Column: "pharmacy_id", Target: "Pharmacy"}},
		HasUpdatedAt: true,
		TenantFilter: "pharmacy_id = ?",
	},
	{
		Name:    "Sale",
		Table:   "sales",
		PK:      "id",
		Columns: []string{"pharmacy_id", "customer_id", "seller_id", "total", "currency", "sold_at", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Column: "pharmacy_id", Target: "Pharmacy"},
			{Column: "customer_id", Target: "Customer"},
			{Column: "seller_id", Target: UserEntity},
		},
		HasUpdatedAt: true,
		TenantFilter: "pharmacy_id = ?",
	},
	{
		Name:    "SaleLine",
		Table:   "sale_lines",
		PK:      "id",
		Columns: []string{"sale_id", "stock_item_id", "quantity", "unit_price", "total", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Column: "sale_id", Target: "Sale"},
			{Column: "stock_item_id", Target: "StockItem"},
		},
		HasUpdatedAt: true,
		TenantFilter: "sale_id IN (SELECT id FROM sales WHERE pharmacy_id = ?)",
	},
	{
		Name:         "CustomerPurchase",
		Table:        "customer_purchases",
		PK:           "id",
		Columns:      []string{"customer_id", "amount", "paid_at", "updated_at"},
		ForeignKeys:  []ForeignKey{{Column: "customer_id", Target: "Customer"}},
		HasUpdatedAt: true,
		TenantFilter: "customer_id IN (SELECT id FROM customers WHERE pharmacy_id = ?)",
	},
	{
		Name:    "MedicalExam",
		Table:   "medical_exams",
		PK:      "id",
		Columns: []string{"customer_id", "examined_by", "exam_type", "result", "examined_at", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Column: "customer_id", Target: "Customer"},
			{Column: "examined_by", Target: UserEntity},
		},
		HasUpdatedAt: true,
		TenantFilter: "customer_id IN (SELECT id FROM customers WHERE pharmacy_id = ?)",
	},
	{
		Name:         "Prescription",
		Table:        "prescriptions",
		PK:           "id",
		Columns:      []string{"customer_id", "medication", "dosage", "prescribed_at", "updated_at"},
		ForeignKeys:  []ForeignKey{{Column: "customer_id", Target: "Customer"}},
		HasUpdatedAt: true,
		TenantFilter: "customer_id IN (SELECT id FROM customers WHERE pharmacy_id = ?)",
	},
	{
		Name:    "Appointment",
		Table:   "appointments",
		PK:      "id",
		Columns: []string{"pharmacy_id", "customer_id", "scheduled_at", "reason", "status", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Column: "pharmacy_id", Target: "Pharmacy"},
			{Column: "customer_id", Target: "Customer"},
		},
		HasUpdatedAt: true,
		TenantFilter: "pharmacy_id = ?",
	},
	{
		Name:    "Requisition",
		Table:   "requisitions",
		PK:      "id",
		Columns: []string{"pharmacy_id", "requested_by", "item", "quantity", "status", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Column: "pharmacy_id", Target: "Pharmacy"},
			{Column: "requested_by", Target: UserEntity},
		},
		HasUpdatedAt: true,
		TenantFilter: "pharmacy_id = ?",
	},
	{
		Name:    "Expense",
		Table:   "expenses",
		PK:      "id",
		Columns: []string{"pharmacy_id", "recorded_by", "label", "amount", "spent_at", "updated_at"},
		ForeignKeys: []ForeignKey{
			{Column: "pharmacy_id", Target: "Pharmacy"},
			{Column: "recorded_by", Target: UserEntity},
		},
		HasUpdatedAt: true,
		TenantFilter: "pharmacy_id = ?",
	},
}

// Global returns the tenant-independent descriptors in dependency order.
func Global() []Descriptor {
	return global
}

// TenantScoped returns the pharmacy-owned descriptors in dependency order.
func TenantScoped() []Descriptor {
	return tenantScoped
}

// All returns every registered descriptor, global first.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(global)+len(tenantScoped))
	out = append(out, global...)
	out = append(out, tenantScoped...)
	return out
}

// Find looks up a descriptor by entity name.
func Find(name string) (Descriptor, bool) {
	for _, d := range All() {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
