package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hopitalsage/pharmsync/internal/registry"
	"github.com/hopitalsage/pharmsync/internal/store"
)

// userResolver materializes referenced user accounts in a destination
// store. Only the minimal identity mirror is copied, never relation-heavy
// fields: this engine mirrors accounts, it does not own them.
//
// Resolved ids are cached for the remainder of the run. The cache lives on
// the resolver itself and is discarded with it, so no state leaks across
// runs.
type userResolver struct {
	src  *store.Store
	dst  *store.Store
	seen map[string]bool
}

func newUserResolver(src, dst *store.Store) *userResolver {
	return &userResolver{src: src, dst: dst, seen: make(map[string]bool)}
}

// ensure guarantees the user exists in the destination, creating the mirror
// inside tx when absent. tx must be a transaction on the resolver's
// destination store.
func (r *userResolver) ensure(ctx context.Context, tx *sql.Tx, id string) error {
	if r.seen[id] {
		return nil
	}

	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if err == nil {
		r.seen[id] = true
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check user %s in %s store: %w", id, r.dst.Label(), err)
	}

	cols := registry.UserColumns
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = ?", strings.Join(cols, ", "))
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	err = r.src.DB().QueryRowContext(ctx, query, id).Scan(ptrs...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s is referenced but missing from the %s store", id, r.src.Label())
	}
	if err != nil {
		return fmt.Errorf("failed to fetch user %s from %s store: %w", id, r.src.Label(), err)
	}

	insert := fmt.Sprintf("INSERT INTO users (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := tx.ExecContext(ctx, insert, vals...); err != nil {
		return fmt.Errorf("failed to mirror user %s into %s store: %w", id, r.dst.Label(), err)
	}

	r.seen[id] = true
	return nil
}

// PreloadUsers copies every user account present in src but absent from dst.
// Running it once before the pull phases removes nearly all per-record
// resolution on that path; ensure stays as the fallback safety net.
func PreloadUsers(ctx context.Context, src, dst *store.Store) (int, error) {
	known := make(map[string]bool)
	rows, err := dst.DB().QueryContext(ctx, "SELECT id FROM users")
	if err != nil {
		return 0, fmt.Errorf("failed to list %s users: %w", dst.Label(), err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan %s user id: %w", dst.Label(), err)
		}
		known[id] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating %s user ids: %w", dst.Label(), err)
	}
	rows.Close()

	cols := registry.UserColumns
	srcRows, err := src.DB().QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM users", strings.Join(cols, ", ")))
	if err != nil {
		return 0, fmt.Errorf("failed to list %s users: %w", src.Label(), err)
	}
	defer srcRows.Close()

	var missing [][]any
	for srcRows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := srcRows.Scan(ptrs...); err != nil {
			return 0, fmt.Errorf("failed to scan %s user: %w", src.Label(), err)
		}
		if known[asString(vals[0])] {
			continue
		}
		missing = append(missing, vals)
	}
	if err := srcRows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating %s users: %w", src.Label(), err)
	}

	if len(missing) == 0 {
		return 0, nil
	}

	tx, err := dst.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin user preload transaction: %w", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf("INSERT INTO users (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare user preload insert: %w", err)
	}
	defer stmt.Close()

	for _, vals := range missing {
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return 0, fmt.Errorf("failed to preload user %s: %w", asString(vals[0]), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit user preload: %w", err)
	}
	return len(missing), nil
}
