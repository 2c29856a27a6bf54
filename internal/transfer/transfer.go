// Package transfer moves a tenant's data through JSONL archives.
//
// Export writes one JSON object per line in referential order, so an
// archive can be replayed into an empty store front to back. Import
// replays an archive with the same conflict rule as the sync engine: an
// existing record is only overwritten by a strictly newer one.
package transfer

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hopitalsage/pharmsync/internal/registry"
	"github.com/hopitalsage/pharmsync/internal/store"
)

// Line is one archive entry: an entity name and its raw record.
type Line struct {
	Entity string         `json:"entity"`
	Record map[string]any `json:"record"`
}

// Result counts archive traffic per entity.
type Result struct {
	Lines    int
	ByEntity map[string]int
}

func newResult() *Result {
	return &Result{ByEntity: make(map[string]int)}
}

// Export writes s's data for one tenant as JSONL. User accounts come
// first, then entities in registry order, so foreign key targets always
// precede their referrers. An empty tenantID exports every tenant.
func Export(ctx context.Context, s *store.Store, tenantID string, w io.Writer) (*Result, error) {
	res := newResult()
	enc := json.NewEncoder(w)

	if err := exportTable(ctx, s, registry.UserEntity, registry.UserTable,
		append([]string{}, registry.UserColumns...), "", "", enc, res); err != nil {
		return nil, err
	}

	for _, d := range registry.All() {
		filter := ""
		if tenantID != "" && d.TenantFilter != "" {
			filter = d.TenantFilter
		}
		if err := exportTable(ctx, s, d.Name, d.Table, d.AllColumns(), filter, tenantID, enc, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func exportTable(ctx context.Context, s *store.Store, entity, table string, cols []string, filter, tenantID string, enc *json.Encoder, res *Result) error {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
	var args []any
	if filter != "" {
		query += " WHERE " + filter
		args = append(args, tenantID)
	}
	query += " ORDER BY " + cols[0]

	rows, err := s.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", entity, err)
	}
	defer rows.Close()

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan %s row: %w", entity, err)
		}

		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = vals[i]
			}
		}
		if err := enc.Encode(Line{Entity: entity, Record: rec}); err != nil {
			return fmt.Errorf("failed to write %s line: %w", entity, err)
		}
		res.Lines++
		res.ByEntity[entity]++
	}
	return rows.Err()
}

// Import replays a JSONL archive into s inside one transaction.
//
// Records with a change timestamp overwrite only strictly older copies,
// via a conditional upsert. Records without one never overwrite. User
// lines fill gaps only.
func Import(ctx context.Context, s *store.Store, r io.Reader) (*Result, error) {
	res := newResult()

	tx, err := s.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var ln Line
		if err := json.Unmarshal([]byte(raw), &ln); err != nil {
			return nil, fmt.Errorf("invalid archive line %d: %w", lineNo, err)
		}

		if ln.Entity == registry.UserEntity {
			if err := importUser(ctx, tx, ln.Record); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		} else {
			d, ok := registry.Find(ln.Entity)
			if !ok {
				return nil, fmt.Errorf("archive line %d names unknown entity %q", lineNo, ln.Entity)
			}
			if err := importRecord(ctx, tx, d, ln.Record); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
		res.Lines++
		res.ByEntity[ln.Entity]++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return res, nil
}

func importUser(ctx context.Context, tx *sql.Tx, rec map[string]any) error {
	cols := registry.UserColumns
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO NOTHING",
		registry.UserTable, strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := tx.ExecContext(ctx, query, recordArgs(rec, cols)...); err != nil {
		return fmt.Errorf("failed to import user: %w", err)
	}
	return nil
}

func importRecord(ctx context.Context, tx *sql.Tx, d registry.Descriptor, rec map[string]any) error {
	cols := d.AllColumns()

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)",
		d.Table, strings.Join(cols, ", "), placeholders(len(cols)))
	if d.HasUpdatedAt {
		sets := make([]string, len(d.Columns))
		for i, c := range d.Columns {
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
		fmt.Fprintf(&sb, " ON CONFLICT(%s) DO UPDATE SET %s WHERE excluded.updated_at > %s.updated_at",
			d.PK, strings.Join(sets, ", "), d.Table)
	} else {
		// No change timestamp means no way to tell which side is newer,
		// so an existing row always wins.
		fmt.Fprintf(&sb, " ON CONFLICT(%s) DO NOTHING", d.PK)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), recordArgs(rec, cols)...); err != nil {
		return fmt.Errorf("failed to import %s: %w", d.Name, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func recordArgs(rec map[string]any, cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = rec[c]
	}
	return out
}
