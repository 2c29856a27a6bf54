// Package tenant resolves the local site's pharmacy identity.
//
// The identity comes from a small configuration artifact owned by
// deployment tooling, not by this engine. Both a broken artifact and an
// unknown id are fatal: the engine must never run without knowing exactly
// which tenant's data it is moving.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/hopitalsage/pharmsync/internal/store"
)

// ConfigurationError reports a missing or invalid tenant configuration
// artifact. It aborts a run before any store access.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("tenant configuration %s: %s", e.Path, e.Reason)
}

// ResolutionError reports that the configured pharmacy id has no matching
// row in the local store.
type ResolutionError struct {
	ID string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no pharmacy with id %s in the local store", e.ID)
}

// Config is the tenant configuration artifact content.
type Config struct {
	PharmacyID string
}

// LoadConfig reads the tenant configuration artifact at path.
//
// The artifact is a JSON document with a pharmacy_id field holding a UUID.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigurationError{Path: path, Reason: err.Error()}
	}

	id := v.GetString("pharmacy_id")
	if id == "" {
		return nil, &ConfigurationError{Path: path, Reason: "pharmacy_id is missing"}
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, &ConfigurationError{Path: path, Reason: fmt.Sprintf("pharmacy_id %q is not a UUID", id)}
	}

	return &Config{PharmacyID: id}, nil
}

// Pharmacy is the resolved tenant entity.
type Pharmacy struct {
	ID        string
	Name      string
	Address   string
	Phone     string
	TaxID     string
	UpdatedAt time.Time
}

// Resolve loads the full pharmacy row for id from the local store.
func Resolve(ctx context.Context, local *store.Store, id string) (*Pharmacy, error) {
	query := `SELECT id, name, address, phone, tax_id, updated_at FROM pharmacies WHERE id = ?`

	var (
		p         Pharmacy
		address   sql.NullString
		phone     sql.NullString
		taxID     sql.NullString
		updatedAt string
	)
	err := local.DB().QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &address, &phone, &taxID, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ResolutionError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pharmacy %s: %w", id, err)
	}

	p.Address = address.String
	p.Phone = phone.String
	p.TaxID = taxID.String
	if t, err := store.ParseTime(updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return &p, nil
}
