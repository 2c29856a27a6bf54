// Package sync implements the bidirectional batch synchronization engine
// between the local pharmacy store and the shared central store.
//
// One run is a fixed six-phase sequence:
//
//  1. Push GLOBAL entities, local → remote (lookup data must exist remotely
//     before anything referencing it is pushed).
//  2. Ensure the tenant pharmacy exists remotely.
//  3. Push TENANT_SCOPED entities, local → remote, in registry order.
//  4. Bulk-preload user accounts, remote → local.
//  5. Pull GLOBAL entities, remote → local.
//  6. Pull TENANT_SCOPED entities, remote → local, tenant-filtered.
//
// Phases run strictly sequentially on one goroutine; within a phase,
// entities run in registry order; within an entity, batches run in keyset
// order, each committed in its own destination transaction. Cursors advance
// in memory only after an entity's full scan and are persisted exactly once
// after all phases succeed, so a crash at any point rolls the engine back
// to a state the next run safely reconciles from.
package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hopitalsage/pharmsync/internal/cursor"
	"github.com/hopitalsage/pharmsync/internal/registry"
	"github.com/hopitalsage/pharmsync/internal/store"
	"github.com/hopitalsage/pharmsync/internal/tenant"
)

// Config holds engine tuning knobs.
type Config struct {
	// BatchSize bounds one fetch/upsert batch.
	BatchSize int

	// Since, when set, widens every scan window down to this time. It never
	// narrows a window and never moves a stored cursor backwards; it exists
	// to force a re-scan after manual repairs.
	Since time.Time

	// Verbose enables per-batch logging.
	Verbose bool

	// Logger for engine activity. Nil means a stderr default.
	Logger *log.Logger
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize: 500,
		Logger:    log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// DirectionStats aggregates one direction's outcome.
type DirectionStats struct {
	Entities int `json:"entities"`
	Creates  int `json:"creates"`
	Updates  int `json:"updates"`
	NoOps    int `json:"noops"`
}

func (s *DirectionStats) add(es entityStats) {
	s.Entities++
	s.Creates += es.creates
	s.Updates += es.updates
	s.NoOps += es.noops
}

// Report summarizes one completed run.
type Report struct {
	Tenant         string          `json:"tenant"`
	Push           DirectionStats  `json:"push"`
	Pull           DirectionStats  `json:"pull"`
	UsersPreloaded int             `json:"users_preloaded"`
	Duration       time.Duration   `json:"duration"`
	StartedAt      time.Time       `json:"started_at"`
}

// Engine drives one synchronization run.
type Engine struct {
	local    *store.Store
	remote   *store.Store
	cursors  *cursor.Store
	pharmacy *tenant.Pharmacy
	cfg      *Config
	logger   *log.Logger
}

// New creates an Engine. Both stores must be open with schema initialized,
// and pharmacy must be the resolved local tenant.
func New(local, remote *store.Store, cursors *cursor.Store, pharmacy *tenant.Pharmacy, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		local:    local,
		remote:   remote,
		cursors:  cursors,
		pharmacy: pharmacy,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes the full phase sequence and persists cursors on success.
//
// Any store error aborts the run: batches already committed stay committed,
// no cursor is persisted, and the next run re-scans from the prior cursors.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{Tenant: e.pharmacy.ID, StartedAt: start.UTC()}

	pushRes := newUserResolver(e.local, e.remote)
	pullRes := newUserResolver(e.remote, e.local)

	e.logger.Printf("Starting sync for pharmacy %s (%s)", e.pharmacy.Name, e.pharmacy.ID)

	e.logger.Printf("Phase 1/6: push global entities")
	for _, d := range registry.Global() {
		st, err := e.syncEntity(ctx, e.local, e.remote, d, "", pushRes)
		if err != nil {
			return nil, err
		}
		report.Push.add(st)
	}

	e.logger.Printf("Phase 2/6: ensure tenant exists remotely")
	if err := e.ensureTenantRemote(ctx, pushRes); err != nil {
		return nil, err
	}

	e.logger.Printf("Phase 3/6: push tenant-scoped entities")
	for _, d := range registry.TenantScoped() {
		st, err := e.syncEntity(ctx, e.local, e.remote, d, e.pharmacy.ID, pushRes)
		if err != nil {
			return nil, err
		}
		report.Push.add(st)
	}

	e.logger.Printf("Phase 4/6: preload user accounts")
	preloaded, err := PreloadUsers(ctx, e.remote, e.local)
	if err != nil {
		return nil, &StoreError{Entity: "User", Direction: directionKey(e.remote, e.local), Err: err}
	}
	report.UsersPreloaded = preloaded
	if preloaded > 0 {
		e.logger.Printf("Preloaded %d user accounts", preloaded)
	}

	e.logger.Printf("Phase 5/6: pull global entities")
	for _, d := range registry.Global() {
		st, err := e.syncEntity(ctx, e.remote, e.local, d, "", pullRes)
		if err != nil {
			return nil, err
		}
		report.Pull.add(st)
	}

	e.logger.Printf("Phase 6/6: pull tenant-scoped entities")
	for _, d := range registry.TenantScoped() {
		st, err := e.syncEntity(ctx, e.remote, e.local, d, e.pharmacy.ID, pullRes)
		if err != nil {
			return nil, err
		}
		report.Pull.add(st)
	}

	// The single durable cursor write of the run.
	if err := e.cursors.Save(); err != nil {
		return nil, fmt.Errorf("failed to persist sync state: %w", err)
	}

	report.Duration = time.Since(start)
	e.logger.Printf("Sync complete in %v: pushed %d/%d/%d, pulled %d/%d/%d (created/updated/unchanged)",
		report.Duration.Round(time.Millisecond),
		report.Push.Creates, report.Push.Updates, report.Push.NoOps,
		report.Pull.Creates, report.Pull.Updates, report.Pull.NoOps)
	return report, nil
}

type entityStats struct {
	creates int
	updates int
	noops   int
	batches int
}

func directionKey(src, dst *store.Store) string {
	return src.Label() + "→" + dst.Label()
}

// syncEntity scans one entity in one direction and commits its batches.
// The cursor for (entity, direction) advances in memory only after the
// whole scan completes without error.
func (e *Engine) syncEntity(ctx context.Context, src, dst *store.Store, d registry.Descriptor, tenantID string, res *userResolver) (entityStats, error) {
	var stats entityStats
	direction := directionKey(src, dst)
	scanStart := time.Now()

	// Schema drift guard: when either store no longer carries the change
	// timestamp, degrade the entity to a full comparison-free scan instead
	// of failing the run.
	hasTS := d.HasUpdatedAt
	if hasTS {
		for _, s := range []*store.Store{src, dst} {
			ok, err := s.HasColumn(ctx, d.Table, "updated_at")
			if err != nil {
				return stats, &StoreError{Entity: d.Name, Direction: direction, Err: err}
			}
			if !ok {
				e.logger.Printf("WARNING: %s is missing updated_at on the %s store; degrading %s to a full scan",
					d.Table, s.Label(), d.Name)
				hasTS = false
				d = d.WithoutUpdatedAt()
				break
			}
		}
	}

	since := e.cursors.Get(d.Name, src.Label(), dst.Label())
	if !e.cfg.Since.IsZero() && e.cfg.Since.Before(since) {
		since = e.cfg.Since
	}

	f := &fetcher{
		src:       src,
		desc:      d,
		tenantID:  tenantID,
		since:     since,
		useSince:  hasTS,
		batchSize: e.cfg.BatchSize,
	}

	var maxSeen time.Time
	for {
		batch, err := f.next(ctx)
		if err != nil {
			return stats, &StoreError{Entity: d.Name, Direction: direction, Err: err}
		}
		if len(batch) == 0 {
			break
		}

		bs, err := e.applyBatch(ctx, dst, d, batch, hasTS, res)
		if err != nil {
			return stats, &StoreError{Entity: d.Name, Direction: direction, Err: err}
		}
		stats.creates += bs.creates
		stats.updates += bs.updates
		stats.noops += bs.noops
		stats.batches++

		for _, rec := range batch {
			if ts, ok := rec.changedAt(); ok && ts.After(maxSeen) {
				maxSeen = ts
			}
		}

		if e.cfg.Verbose {
			e.logger.Printf("  %s [%s] batch %d: %d created, %d updated, %d unchanged",
				d.Name, direction, stats.batches, bs.creates, bs.updates, bs.noops)
		}
	}

	// Full scan done: safe to advance the cursor in memory.
	if hasTS {
		if !maxSeen.IsZero() {
			e.cursors.Record(d.Name, src.Label(), dst.Label(), maxSeen)
		}
	} else {
		e.cursors.Record(d.Name, src.Label(), dst.Label(), scanStart)
	}

	if stats.creates+stats.updates > 0 || e.cfg.Verbose {
		e.logger.Printf("  %s [%s]: %d created, %d updated, %d unchanged in %d batches",
			d.Name, direction, stats.creates, stats.updates, stats.noops, stats.batches)
	}
	return stats, nil
}

// ensureTenantRemote upserts the resolved pharmacy row into the remote
// store by id, so tenant-scoped pushes never dangle. The no-clobber rule
// applies: a fresher remote copy is left untouched.
func (e *Engine) ensureTenantRemote(ctx context.Context, res *userResolver) error {
	d, ok := registry.Find("Pharmacy")
	if !ok {
		return fmt.Errorf("pharmacy entity not registered")
	}

	rec, err := loadRecord(ctx, e.local, d, e.pharmacy.ID)
	if err != nil {
		return &StoreError{Entity: d.Name, Direction: directionKey(e.local, e.remote), Err: err}
	}
	if rec == nil {
		// The resolver found it at startup; losing it mid-run is fatal.
		return &StoreError{
			Entity:    d.Name,
			Direction: directionKey(e.local, e.remote),
			Err:       fmt.Errorf("pharmacy %s vanished from the local store", e.pharmacy.ID),
		}
	}

	bs, err := e.applyBatch(ctx, e.remote, d, []record{rec}, d.HasUpdatedAt, res)
	if err != nil {
		return &StoreError{Entity: d.Name, Direction: directionKey(e.local, e.remote), Err: err}
	}
	if bs.creates > 0 {
		e.logger.Printf("  Created pharmacy %s on remote store", e.pharmacy.Name)
	}
	return nil
}
