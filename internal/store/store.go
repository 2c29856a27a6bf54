// Package store provides the two relational store handles the sync engine
// works against.
//
// The local store is embedded SQLite opened in WAL mode. The remote store is
// libSQL and may be a Turso URL or, for tests and air-gapped trials, a plain
// file path. Both expose the identical schema for every registered entity.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "github.com/tursodatabase/go-libsql"
)

// Labels used in cursor keys and log lines. The local store is the site's
// own database; the remote store is the shared central one.
const (
	LabelLocal  = "local"
	LabelRemote = "remote"
)

// Store wraps one relational store connection with schema management.
type Store struct {
	conn  *sql.DB
	label string
	dsn   string
}

// OpenLocal opens (creating if needed) the embedded local store at path.
//
// WAL mode is enabled for concurrent reads, and foreign keys are enforced.
// The caller must Close() the store when done.
func OpenLocal(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	s := &Store{conn: conn, label: LabelLocal, dsn: path}
	if err := s.setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// OpenRemote opens the central store.
//
// A libsql://, https:// or wss:// URL connects to a hosted database, with
// authToken appended when non-empty. Any other value is treated as a file
// path, which keeps tests and offline trials on the same code path.
func OpenRemote(rawURL, authToken string) (*Store, error) {
	dsn := rawURL
	switch {
	case strings.HasPrefix(rawURL, "libsql://"),
		strings.HasPrefix(rawURL, "https://"),
		strings.HasPrefix(rawURL, "wss://"):
		if authToken != "" {
			sep := "?"
			if strings.Contains(rawURL, "?") {
				sep = "&"
			}
			dsn = rawURL + sep + "authToken=" + url.QueryEscape(authToken)
		}
	default:
		dir := filepath.Dir(rawURL)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		dsn = "file:" + rawURL
	}

	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}

	s := &Store{conn: conn, label: LabelRemote, dsn: rawURL}
	if err := s.setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) setup() error {
	if err := s.conn.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s store: %w", s.label, err)
	}

	s.conn.SetMaxOpenConns(10)
	s.conn.SetMaxIdleConns(2)
	s.conn.SetConnMaxLifetime(5 * time.Minute)

	// These pragmas return a result row, and the libsql driver refuses to
	// Exec row-returning statements, so they go through QueryRow.
	var mode string
	if err := s.conn.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	var timeout int
	if err := s.conn.QueryRow("PRAGMA busy_timeout=5000").Scan(&timeout); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return nil
}

// Label returns "local" or "remote".
func (s *Store) Label() string {
	return s.label
}

// DB returns the underlying sql.DB connection.
func (s *Store) DB() *sql.DB {
	return s.conn
}

// Close closes the connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	var busy, logged, checkpointed int
	if err := s.conn.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logged, &checkpointed); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL on %s store: %v\n", s.label, err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close %s store: %w", s.label, err)
	}
	s.conn = nil
	return nil
}

// HasColumn reports whether table carries the named column.
// Used to detect schema drift before relying on a change-timestamp filter.
func (s *Store) HasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table_info row: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("error iterating table_info: %w", err)
	}
	return false, nil
}

// Count returns the row count of a table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// FormatTime renders a timestamp in the canonical column format: RFC 3339
// UTC. Keeping every stored timestamp in this one shape makes SQL string
// comparison agree with chronological order.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses a canonical timestamp column value.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
