// Package daemon provides the background sync daemon.
//
// The daemon:
// 1. Watches the local store file for writes
// 2. Triggers a sync run after changes settle (debounced)
// 3. Also runs on a fixed interval to pick up central-side changes
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	syncengine "github.com/hopitalsage/pharmsync/internal/sync"
)

// RunFunc executes one synchronization run.
type RunFunc func(ctx context.Context) (*syncengine.Report, error)

// Config holds configuration for the daemon.
type Config struct {
	// Interval is how often to run regardless of local activity. Central
	// changes are invisible to the file watcher, so this is the pull path's
	// only trigger.
	Interval time.Duration

	// DebounceInterval is how long local writes must settle before a run.
	// This batches rapid point-of-sale activity together.
	DebounceInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger

	// OnReport, when set, receives every completed run's report.
	OnReport func(*syncengine.Report)

	// OnError, when set, receives every failed run's error.
	OnError func(error)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:         5 * time.Minute,
		DebounceInterval: 2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches the local store and schedules sync runs.
type Daemon struct {
	run       RunFunc
	localPath string
	config    *Config

	watcher *fsnotify.Watcher

	dirtyMu sync.Mutex
	dirtyAt time.Time // zero: no pending local change

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance.
//
// run performs one sync; localPath is the local store file whose directory
// is watched. Use Start() to begin.
func New(run RunFunc, localPath string, config *Config) (*Daemon, error) {
	if run == nil {
		return nil, fmt.Errorf("run cannot be nil")
	}
	if localPath == "" {
		return nil, fmt.Errorf("localPath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	// The scheduler divides the debounce interval, so zero or negative
	// values from a partially filled config fall back to the defaults.
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = defaults.DebounceInterval
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		run:       run,
		localPath: localPath,
		config:    config,
		watcher:   watcher,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon performs one immediate run, then watches the local store for
// writes and triggers debounced runs, plus a periodic run on Interval.
//
// This blocks until ctx is cancelled or startup fails.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting sync daemon")

	// Initial run so a long-offline pharmacy catches up immediately.
	d.runOnce()

	if err := d.watcher.Add(filepath.Dir(d.localPath)); err != nil {
		return fmt.Errorf("failed to watch store directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s (every %v)", d.localPath, d.config.Interval)

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.schedule()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors filesystem events and marks the store dirty.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !d.isStoreFile(event.Name) {
				continue
			}

			d.dirtyMu.Lock()
			d.dirtyAt = time.Now()
			d.dirtyMu.Unlock()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// isStoreFile reports whether path is the local store file or one of its
// SQLite sidecars (-wal, -shm, -journal).
func (d *Daemon) isStoreFile(path string) bool {
	base := filepath.Base(d.localPath)
	got := filepath.Base(path)
	switch got {
	case base, base + "-wal", base + "-shm", base + "-journal":
		return true
	}
	return false
}

// schedule drives debounced and periodic runs on a single goroutine, so
// runs never overlap.
func (d *Daemon) schedule() {
	defer d.wg.Done()

	interval := time.NewTicker(d.config.Interval)
	defer interval.Stop()
	poll := time.NewTicker(d.config.DebounceInterval / 2)
	defer poll.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-interval.C:
			d.runOnce()

		case <-poll.C:
			if d.settled() {
				d.runOnce()
			}
		}
	}
}

// settled reports whether a pending local change has been quiet for at
// least the debounce interval, and consumes it.
func (d *Daemon) settled() bool {
	d.dirtyMu.Lock()
	defer d.dirtyMu.Unlock()

	if d.dirtyAt.IsZero() {
		return false
	}
	if time.Since(d.dirtyAt) < d.config.DebounceInterval {
		return false
	}
	d.dirtyAt = time.Time{}
	return true
}

// runOnce executes one sync run and routes the outcome.
func (d *Daemon) runOnce() {
	started := time.Now()
	report, err := d.run(d.ctx)

	// A run writes the local store, which echoes back through the watcher.
	// Drop any dirtiness raised while the run was in flight so the daemon
	// does not chase its own writes.
	d.dirtyMu.Lock()
	if !d.dirtyAt.IsZero() && d.dirtyAt.After(started) {
		d.dirtyAt = time.Time{}
	}
	d.dirtyMu.Unlock()

	if err != nil {
		if d.ctx.Err() != nil {
			return
		}
		d.config.Logger.Printf("Sync run failed: %v", err)
		if d.config.OnError != nil {
			d.config.OnError(err)
		}
		return
	}
	if d.config.OnReport != nil {
		d.config.OnReport(report)
	}
}
