package jobs

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelbox/internal/library"
	"github.com/vmunix/reelbox/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := migrations.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	availErr error
	run      func(ctx context.Context, j Job, r Reporter) error
}

func (f *fakeRunner) Available() error { return f.availErr }

func (f *fakeRunner) Run(ctx context.Context, j Job, r Reporter) error {
	if f.run == nil {
		return nil
	}
	return f.run(ctx, j, r)
}

type fakeHandle struct {
	released atomic.Int32
}

func (h *fakeHandle) Release() error {
	h.released.Add(1)
	return nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	sources []library.Source
	entries []*library.Entry
}

func (c *fakeCatalog) Source(id string) (library.Source, bool) {
	for _, s := range c.sources {
		if s.ID == id {
			return s, true
		}
	}
	return library.Source{}, false
}

func (c *fakeCatalog) List() ([]*library.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*library.Entry(nil), c.entries...), nil
}

func (c *fakeCatalog) add(e *library.Entry) {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

type countingTrigger struct {
	n atomic.Int32
}

func (c *countingTrigger) Trigger() { c.n.Add(1) }

type managerFixture struct {
	mgr     *Manager
	store   *Store
	runner  *fakeRunner
	catalog *fakeCatalog
	trigger *countingTrigger
	root    string
}

func newManagerFixture(t *testing.T, kind Kind) *managerFixture {
	t.Helper()
	root := t.TempDir()
	f := &managerFixture{
		store:   NewStore(setupTestDB(t), kind),
		runner:  &fakeRunner{},
		catalog: &fakeCatalog{sources: []library.Source{{ID: "movies", Label: "Movies", Path: root}}},
		trigger: &countingTrigger{},
		root:    root,
	}
	f.mgr = NewManager(kind, f.store, f.runner, f.catalog, f.trigger, testLogger())
	f.mgr.SetCorrelateWindow(0)
	t.Cleanup(f.mgr.Close)
	return f
}

func (f *managerFixture) start(t *testing.T) *Job {
	t.Helper()
	kind := SourceURL
	value := "https://example.com/watch?v=1"
	if f.mgr.Kind() == KindTorrent {
		kind, value = SourceMagnet, "magnet:?xt=urn:btih:abc"
	}
	j, err := f.mgr.Start(context.Background(), Request{SourceKind: kind, SourceValue: value, SourceID: "movies"})
	require.NoError(t, err)
	return j
}

func (f *managerFixture) wait(t *testing.T, id string) *Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.mgr.Wait(ctx, id))
	j, err := f.store.Get(id)
	require.NoError(t, err)
	return j
}
