package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	syncengine "github.com/hopitalsage/pharmsync/internal/sync"
)

func testConfig() *Config {
	return &Config{
		Interval:         time.Hour, // effectively off unless a test wants it
		DebounceInterval: 50 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestNew_Validation(t *testing.T) {
	run := func(ctx context.Context) (*syncengine.Report, error) { return &syncengine.Report{}, nil }

	if _, err := New(nil, "store.db", testConfig()); err == nil {
		t.Error("New() accepted a nil run func")
	}
	if _, err := New(run, "", testConfig()); err == nil {
		t.Error("New() accepted an empty store path")
	}

	d, err := New(run, filepath.Join(t.TempDir(), "store.db"), nil)
	if err != nil {
		t.Fatalf("New() with nil config failed: %v", err)
	}
	if d.config.Interval != DefaultConfig().Interval {
		t.Error("nil config did not fall back to defaults")
	}
	d.watcher.Close()
}

// A config that only sets Logger leaves the intervals at zero; the
// scheduler ticker must still get a positive period.
func TestNew_ZeroIntervalsFallBackToDefaults(t *testing.T) {
	var runs atomic.Int32
	run := func(ctx context.Context) (*syncengine.Report, error) {
		runs.Add(1)
		return &syncengine.Report{}, nil
	}

	d, err := New(run, filepath.Join(t.TempDir(), "store.db"), &Config{
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if d.config.Interval != DefaultConfig().Interval {
		t.Errorf("Interval = %v, want %v", d.config.Interval, DefaultConfig().Interval)
	}
	if d.config.DebounceInterval != DefaultConfig().DebounceInterval {
		t.Errorf("DebounceInterval = %v, want %v", d.config.DebounceInterval, DefaultConfig().DebounceInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor(t, time.Second, func() bool { return runs.Load() >= 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
}

func TestDaemon_RunsOnceAtStartup(t *testing.T) {
	dir := t.TempDir()
	var runs atomic.Int32
	run := func(ctx context.Context) (*syncengine.Report, error) {
		runs.Add(1)
		return &syncengine.Report{}, nil
	}

	d, err := New(run, filepath.Join(dir, "store.db"), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 1 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
}

func TestDaemon_StoreWriteTriggersDebouncedRun(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "store.db")
	if err := os.WriteFile(storePath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var runs atomic.Int32
	run := func(ctx context.Context) (*syncengine.Report, error) {
		runs.Add(1)
		return &syncengine.Report{}, nil
	}

	d, err := New(run, storePath, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 1 })

	// Simulate point-of-sale activity on the WAL sidecar.
	if err := os.WriteFile(storePath+"-wal", []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool { return runs.Load() >= 2 })

	cancel()
	<-done
}

func TestDaemon_UnrelatedFilesIgnored(t *testing.T) {
	d := &Daemon{localPath: "/data/store.db"}

	for _, path := range []string{"/data/store.db", "/data/store.db-wal", "/data/store.db-shm", "/data/store.db-journal"} {
		if !d.isStoreFile(path) {
			t.Errorf("isStoreFile(%q) = false, want true", path)
		}
	}
	for _, path := range []string{"/data/last_sync.json", "/data/other.db", "/data/store.db.bak"} {
		if d.isStoreFile(path) {
			t.Errorf("isStoreFile(%q) = true, want false", path)
		}
	}
}

func TestDaemon_IntervalTriggersRun(t *testing.T) {
	dir := t.TempDir()
	var runs atomic.Int32
	run := func(ctx context.Context) (*syncengine.Report, error) {
		runs.Add(1)
		return &syncengine.Report{}, nil
	}

	cfg := testConfig()
	cfg.Interval = 100 * time.Millisecond
	d, err := New(run, filepath.Join(dir, "store.db"), cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// Startup run plus at least one interval run.
	waitFor(t, 5*time.Second, func() bool { return runs.Load() >= 2 })

	cancel()
	<-done
}

func TestDaemon_ErrorsReachCallbackAndDoNotStopDaemon(t *testing.T) {
	dir := t.TempDir()
	var runs atomic.Int32
	var errs atomic.Int32
	run := func(ctx context.Context) (*syncengine.Report, error) {
		runs.Add(1)
		return nil, errors.New("central store unreachable")
	}

	cfg := testConfig()
	cfg.Interval = 100 * time.Millisecond
	cfg.OnError = func(error) { errs.Add(1) }
	d, err := New(run, filepath.Join(dir, "store.db"), cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor(t, 5*time.Second, func() bool { return runs.Load() >= 2 && errs.Load() >= 2 })

	cancel()
	<-done
}

func TestDaemon_ReportReachesCallback(t *testing.T) {
	dir := t.TempDir()
	var got atomic.Int32
	run := func(ctx context.Context) (*syncengine.Report, error) {
		return &syncengine.Report{Tenant: "ph-1"}, nil
	}

	cfg := testConfig()
	cfg.OnReport = func(r *syncengine.Report) {
		if r.Tenant == "ph-1" {
			got.Add(1)
		}
	}
	d, err := New(run, filepath.Join(dir, "store.db"), cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return got.Load() >= 1 })

	cancel()
	<-done
}
