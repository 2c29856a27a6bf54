package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hopitalsage/pharmsync/internal/registry"
	"github.com/hopitalsage/pharmsync/internal/store"
)

// fetcher retrieves one entity's matching source rows in fixed-size pages
// using keyset pagination: each page asks for primary keys strictly greater
// than the previous page's maximum, ordered ascending. Within one scan no
// row is skipped or duplicated, provided primary keys are immutable.
// Inserts behind the already-passed key position are invisible to the
// current scan and get picked up by the next run.
type fetcher struct {
	src       *store.Store
	desc      registry.Descriptor
	tenantID  string    // empty: no tenant predicate
	since     time.Time // lower bound for the change-timestamp predicate
	useSince  bool
	batchSize int

	lastPK string
	done   bool
}

// next returns the next page, or an empty slice when the scan is finished.
func (f *fetcher) next(ctx context.Context) ([]record, error) {
	if f.done {
		return nil, nil
	}

	cols := f.desc.AllColumns()

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(f.desc.Table)
	sb.WriteString(" WHERE ")
	sb.WriteString(f.desc.PK)
	sb.WriteString(" > ?")
	args := []any{f.lastPK}

	if f.tenantID != "" && f.desc.TenantFilter != "" {
		sb.WriteString(" AND (")
		sb.WriteString(f.desc.TenantFilter)
		sb.WriteString(")")
		args = append(args, f.tenantID)
	}
	if f.useSince {
		sb.WriteString(" AND updated_at > ?")
		args = append(args, store.FormatTime(f.since))
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(f.desc.PK)
	sb.WriteString(" ASC LIMIT ?")
	args = append(args, f.batchSize)

	rows, err := f.src.DB().QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s batch: %w", f.desc.Name, err)
	}
	defer rows.Close()

	var batch []record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", f.desc.Name, err)
		}
		rec := make(record, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", f.desc.Name, err)
	}

	if len(batch) == 0 {
		f.done = true
		return nil, nil
	}
	f.lastPK = batch[len(batch)-1].pk(f.desc)
	return batch, nil
}

// loadRecord fetches a single row by primary key, or nil when absent.
func loadRecord(ctx context.Context, s *store.Store, d registry.Descriptor, id string) (record, error) {
	cols := d.AllColumns()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(cols, ", "), d.Table, d.PK)

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	err := s.DB().QueryRowContext(ctx, query, id).Scan(ptrs...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", d.Name, id, err)
	}

	rec := make(record, len(cols))
	for i, c := range cols {
		rec[c] = vals[i]
	}
	return rec, nil
}
