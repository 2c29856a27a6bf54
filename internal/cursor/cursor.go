// Package cursor persists the last successfully synchronized change
// timestamp per (entity, direction).
//
// The durable form is a single JSON file mapping keys like
// "StockItem_local→remote" to RFC 3339 timestamps. The whole file is read
// once at run start and rewritten once at the end of a fully successful
// run; a run that aborts before Save leaves every cursor at its pre-run
// value, which is safe because the upsert comparison is idempotent.
package cursor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Epoch is the sentinel returned for an absent cursor: older than any real
// record.
var Epoch = time.Unix(0, 0).UTC()

// Key builds the durable key for one entity and direction.
func Key(entity, source, target string) string {
	return fmt.Sprintf("%s_%s→%s", entity, source, target)
}

// Store holds the in-memory cursor map backed by one JSON file.
type Store struct {
	path  string
	times map[string]time.Time
}

// Open loads the cursor file at path. A missing file yields an empty map.
func Open(path string) (*Store, error) {
	s := &Store{path: path, times: make(map[string]time.Time)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse sync state %s: %w", path, err)
	}
	for k, v := range raw {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sync state timestamp for %s: %w", k, err)
		}
		s.times[k] = t.UTC()
	}
	return s, nil
}

// Get returns the stored timestamp for (entity, source→target), or Epoch
// when no cursor exists yet.
func (s *Store) Get(entity, source, target string) time.Time {
	if t, ok := s.times[Key(entity, source, target)]; ok {
		return t
	}
	return Epoch
}

// Record updates the in-memory cursor. Cursors are monotonic: a value older
// than the stored one is ignored. Nothing is persisted until Save.
func (s *Store) Record(entity, source, target string, ts time.Time) {
	key := Key(entity, source, target)
	if cur, ok := s.times[key]; ok && !ts.After(cur) {
		return
	}
	s.times[key] = ts.UTC()
}

// Save writes the entire map durably, replacing the previous file. It is
// called exactly once, after all phases of a run complete.
func (s *Store) Save() error {
	raw := make(map[string]string, len(s.times))
	for k, v := range s.times {
		raw[k] = v.UTC().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sync state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sync-state-*")
	if err != nil {
		return fmt.Errorf("failed to create sync state temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close sync state temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace sync state: %w", err)
	}
	return nil
}

// All returns a sorted snapshot of the cursor map for display.
func (s *Store) All() []Entry {
	entries := make([]Entry, 0, len(s.times))
	for k, v := range s.times {
		entries = append(entries, Entry{Key: k, Time: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Entry is one cursor key and its timestamp.
type Entry struct {
	Key  string
	Time time.Time
}
