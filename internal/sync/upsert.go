package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/hopitalsage/pharmsync/internal/registry"
	"github.com/hopitalsage/pharmsync/internal/store"
)

// batchStats counts the outcome of one staged batch.
type batchStats struct {
	creates int
	updates int
	noops   int
}

// destState returns, for the given keys, which already exist in the
// destination and (when the entity tracks changes) their stored change
// timestamp in canonical string form.
func destState(ctx context.Context, dst *store.Store, d registry.Descriptor, ids []string, hasTS bool) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	cols := d.PK
	if hasTS {
		cols += ", updated_at"
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)", cols, d.Table, d.PK, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := dst.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing %s keys: %w", d.Name, err)
	}
	defer rows.Close()

	existing := make(map[string]string, len(ids))
	for rows.Next() {
		var id, ts string
		if hasTS {
			if err := rows.Scan(&id, &ts); err != nil {
				return nil, fmt.Errorf("failed to scan existing %s key: %w", d.Name, err)
			}
		} else {
			if err := rows.Scan(&id); err != nil {
				return nil, fmt.Errorf("failed to scan existing %s key: %w", d.Name, err)
			}
		}
		existing[id] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating existing %s keys: %w", d.Name, err)
	}
	return existing, nil
}

// applyBatch partitions one batch into create/update/no-op and commits the
// writes in a single destination transaction.
//
// A record is overwritten only if the destination copy is missing or
// strictly older; on a tie or destination-newer the record is a no-op, which
// protects already-fresher destination state. Primary keys are never
// updated, and foreign keys are copied by raw key value.
//
// Referenced user accounts are materialized inside the same transaction, so
// the account exists no later than its dependent record.
func (e *Engine) applyBatch(ctx context.Context, dst *store.Store, d registry.Descriptor, batch []record, hasTS bool, res *userResolver) (batchStats, error) {
	var stats batchStats
	if len(batch) == 0 {
		return stats, nil
	}

	ids := make([]string, len(batch))
	for i, rec := range batch {
		ids[i] = rec.pk(d)
	}
	existing, err := destState(ctx, dst, d, ids, hasTS)
	if err != nil {
		return stats, err
	}

	var creates, updates []record
	for _, rec := range batch {
		destTS, ok := existing[rec.pk(d)]
		switch {
		case !ok:
			creates = append(creates, rec)
		case hasTS && destTS >= asString(rec["updated_at"]):
			stats.noops++
		default:
			updates = append(updates, rec)
		}
	}
	stats.creates = len(creates)
	stats.updates = len(updates)

	if len(creates) == 0 && len(updates) == 0 {
		return stats, nil
	}

	tx, err := dst.DB().BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin %s transaction: %w", d.Name, err)
	}
	defer tx.Rollback()

	for _, rec := range append(append([]record{}, creates...), updates...) {
		for _, fk := range d.ForeignKeys {
			if fk.Target != registry.UserEntity {
				continue
			}
			userID := asString(rec[fk.Column])
			if userID == "" {
				continue
			}
			if err := res.ensure(ctx, tx, userID); err != nil {
				return stats, err
			}
		}
	}

	if len(creates) > 0 {
		cols := d.AllColumns()
		row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			d.Table, strings.Join(cols, ", "),
			strings.TrimSuffix(strings.Repeat(row+", ", len(creates)), ", "))

		args := make([]any, 0, len(creates)*len(cols))
		for _, rec := range creates {
			args = append(args, rec.args(cols)...)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return stats, fmt.Errorf("failed to insert %d %s records: %w", len(creates), d.Name, err)
		}
	}

	if len(updates) > 0 {
		sets := make([]string, len(d.Columns))
		for i, c := range d.Columns {
			sets[i] = c + " = ?"
		}
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			d.Table, strings.Join(sets, ", "), d.PK)

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return stats, fmt.Errorf("failed to prepare %s update: %w", d.Name, err)
		}
		defer stmt.Close()

		for _, rec := range updates {
			args := append(rec.args(d.Columns), rec.pk(d))
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return stats, fmt.Errorf("failed to update %s %s: %w", d.Name, rec.pk(d), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit %s batch: %w", d.Name, err)
	}
	return stats, nil
}
