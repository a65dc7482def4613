package server

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelbox/internal/config"
	"github.com/vmunix/reelbox/internal/jobs"
	"github.com/vmunix/reelbox/internal/library"
	"github.com/vmunix/reelbox/internal/migrations"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := migrations.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type okRunner struct{}

func (okRunner) Available() error { return nil }
func (okRunner) Run(context.Context, jobs.Job, jobs.Reporter) error { return nil }

// driverLog records driver starts and stops.
type driverLog struct {
	mu      sync.Mutex
	watches [][]string
	periods []time.Duration
	running int
	started chan struct{}
}

func newDriverLog() *driverLog {
	return &driverLog{started: make(chan struct{}, 16)}
}

func (d *driverLog) block(ctx context.Context) error {
	d.mu.Lock()
	d.running++
	d.mu.Unlock()
	d.started <- struct{}{}
	<-ctx.Done()
	d.mu.Lock()
	d.running--
	d.mu.Unlock()
	return nil
}

func (d *driverLog) watch(ctx context.Context, roots []string, _ func(), _ *slog.Logger) error {
	d.mu.Lock()
	d.watches = append(d.watches, roots)
	d.mu.Unlock()
	return d.block(ctx)
}

func (d *driverLog) periodic(ctx context.Context, _ library.Scanner, interval time.Duration, _ *slog.Logger) error {
	d.mu.Lock()
	d.periods = append(d.periods, interval)
	d.mu.Unlock()
	return d.block(ctx)
}

func (d *driverLog) awaitStarts(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-d.started:
		case <-time.After(5 * time.Second):
			t.Fatal("driver did not start")
		}
	}
}

func (d *driverLog) snapshot() (watches [][]string, periods []time.Duration, running int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]string(nil), d.watches...), append([]time.Duration(nil), d.periods...), d.running
}

type fixture struct {
	runner  *Runner
	index   *library.Index
	store   *library.Store
	torrent *jobs.Manager
	url     *jobs.Manager
	drivers *driverLog
}

func testConfig(roots ...string) *config.Config {
	cfg := &config.Config{}
	for i, r := range roots {
		id := filepath.Base(r)
		if i == 0 {
			id = "movies"
		}
		cfg.Library.Sources = append(cfg.Library.Sources, config.Source{ID: id, Label: id, Path: r})
	}
	cfg.Library.Extensions = []string{".mp4"}
	cfg.Library.ScanInterval = time.Hour
	cfg.Watcher.Enabled = true
	cfg.Watcher.Debounce = time.Second
	cfg.Downloads.Enabled = true
	cfg.Modules.Torrents = true
	cfg.Modules.Youtube = true
	return cfg
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	db := setupTestDB(t)
	store := library.NewStore(db)
	index := library.NewIndex(store, nil, nil, testLogger())
	sched := library.NewScheduler(index, time.Hour, testLogger())
	t.Cleanup(sched.Close)

	tm := jobs.NewManager(jobs.KindTorrent, jobs.NewStore(db, jobs.KindTorrent), okRunner{}, index, sched, testLogger())
	um := jobs.NewManager(jobs.KindURL, jobs.NewStore(db, jobs.KindURL), okRunner{}, index, sched, testLogger())
	t.Cleanup(tm.Close)
	t.Cleanup(um.Close)

	r := NewRunner(cfg, index, sched, []*jobs.Manager{tm, um}, testLogger())
	d := newDriverLog()
	r.watch = d.watch
	r.periodic = d.periodic
	return &fixture{runner: r, index: index, store: store, torrent: tm, url: um, drivers: d}
}

func writeVideo(t *testing.T, root, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
}

func TestRunner_RunScansAndStopsDrivers(t *testing.T) {
	root := t.TempDir()
	writeVideo(t, root, "a.mp4")
	f := newFixture(t, testConfig(root))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx) }()

	f.drivers.awaitStarts(t, 2)
	n, err := f.store.CountVideos()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "startup scan indexed the library")

	watches, periods, running := f.drivers.snapshot()
	assert.Equal(t, [][]string{{root}}, watches)
	assert.Equal(t, []time.Duration{time.Hour}, periods)
	assert.Equal(t, 2, running)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for runner to stop")
	}
	_, _, running = f.drivers.snapshot()
	assert.Zero(t, running)
}

func TestRunner_WatcherDisabled(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Watcher.Enabled = false
	f := newFixture(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx) }()
	f.drivers.awaitStarts(t, 1)

	cancel()
	require.NoError(t, <-done)
	watches, periods, _ := f.drivers.snapshot()
	assert.Empty(t, watches)
	assert.Len(t, periods, 1)
}

func TestRunner_Reconfigure(t *testing.T) {
	movies := t.TempDir()
	shows := filepath.Join(t.TempDir(), "shows")
	writeVideo(t, movies, "a.mp4")
	f := newFixture(t, testConfig(movies))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx) }()
	f.drivers.awaitStarts(t, 2)

	next := testConfig(movies, shows)
	next.Library.ScanInterval = 2 * time.Hour
	next.Modules.Youtube = false
	require.NoError(t, f.runner.Reconfigure(ctx, next))
	f.drivers.awaitStarts(t, 2)

	assert.DirExists(t, shows, "missing source roots are created")
	assert.Same(t, next, f.runner.Config())
	_, ok := f.index.Source("shows")
	assert.True(t, ok)

	watches, periods, running := f.drivers.snapshot()
	require.Len(t, watches, 2)
	assert.Equal(t, []string{movies, shows}, watches[1])
	assert.Equal(t, []time.Duration{time.Hour, 2 * time.Hour}, periods)
	assert.Equal(t, 2, running, "old drivers stopped before new ones started")

	assert.NoError(t, f.torrent.Available())
	assert.ErrorIs(t, f.url.Available(), jobs.ErrDisabled)

	cancel()
	require.NoError(t, <-done)
}

func TestRunner_ReconfigureBeforeRun(t *testing.T) {
	root := t.TempDir()
	writeVideo(t, root, "a.mp4")
	f := newFixture(t, testConfig(t.TempDir()))

	require.NoError(t, f.runner.Reconfigure(context.Background(), testConfig(root)))
	n, err := f.store.CountVideos()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, _, running := f.drivers.snapshot()
	assert.Zero(t, running, "drivers only start under Run")
}

func TestEnabled(t *testing.T) {
	cfg := testConfig()
	assert.True(t, Enabled(cfg, jobs.KindTorrent))
	assert.True(t, Enabled(cfg, jobs.KindURL))

	cfg.Modules.Torrents = false
	assert.False(t, Enabled(cfg, jobs.KindTorrent))

	cfg.Downloads.Enabled = false
	assert.False(t, Enabled(cfg, jobs.KindURL))
}
