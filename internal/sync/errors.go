package sync

import "fmt"

// StoreError reports a store failure during one entity's scan. Batches
// already committed for that entity stay committed; the entity's cursor has
// not advanced, so the next run re-scans from the prior cursor and the
// idempotent upsert comparison reconciles safely.
type StoreError struct {
	Entity    string
	Direction string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("sync %s [%s]: %v", e.Entity, e.Direction, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
