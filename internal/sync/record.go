package sync

import (
	"fmt"
	"time"

	"github.com/hopitalsage/pharmsync/internal/registry"
	"github.com/hopitalsage/pharmsync/internal/store"
)

// record is one source row keyed by column name. Values keep whatever
// driver type they were scanned as; they are rebound unchanged when written
// to the destination, so foreign keys travel as raw key values.
type record map[string]any

// pk returns the record's primary key as a string.
func (r record) pk(d registry.Descriptor) string {
	return asString(r[d.PK])
}

// changedAt returns the record's change timestamp, when present and valid.
func (r record) changedAt() (time.Time, bool) {
	s := asString(r["updated_at"])
	if s == "" {
		return time.Time{}, false
	}
	t, err := store.ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// args returns the record's values for cols, in order, for statement
// binding. Missing columns bind as NULL.
func (r record) args(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = r[c]
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
