package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/vmunix/reelbox/internal/library"
)

// Catalog is the slice of the library index a Manager needs.
type Catalog interface {
	Source(id string) (library.Source, bool)
	List() ([]*library.Entry, error)
}

// Trigger requests a debounced catalog scan.
type Trigger interface {
	Trigger()
}

// Validator is implemented by runners that check a source value before a
// job is created.
type Validator interface {
	Validate(sourceKind, value string) error
}

// Request describes a new job.
type Request struct {
	SourceKind  string
	SourceValue string
	SourceID    string
	Subdir      string // optional folder under the source root
}

type task struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the background tasks for one job kind. Each job has at most
// one task; the task is the only writer of its row until it exits.
type Manager struct {
	kind    Kind
	store   *Store
	runner  Runner
	catalog Catalog
	trigger Trigger
	log     *slog.Logger

	mu              sync.Mutex
	enabled         bool
	correlateWindow time.Duration
	tasks           map[string]*task
	handles         map[string]Handle
	handlers        []ChangeHandler
	closed          bool
	wg              sync.WaitGroup
}

// NewManager creates a job manager. Jobs start enabled.
func NewManager(kind Kind, store *Store, runner Runner, catalog Catalog, trigger Trigger, log *slog.Logger) *Manager {
	return &Manager{
		kind:            kind,
		store:           store,
		runner:          runner,
		catalog:         catalog,
		trigger:         trigger,
		log:             log,
		enabled:         true,
		correlateWindow: 10 * time.Second,
		tasks:           make(map[string]*task),
		handles:         make(map[string]Handle),
	}
}

// Kind returns the job kind this manager serves.
func (m *Manager) Kind() Kind { return m.kind }

// OnChange registers a handler for persisted job changes.
// Handlers must be registered before jobs start.
func (m *Manager) OnChange(h ChangeHandler) {
	m.handlers = append(m.handlers, h)
}

// SetEnabled turns job creation on or off. Running jobs are unaffected.
func (m *Manager) SetEnabled(on bool) {
	m.mu.Lock()
	m.enabled = on
	m.mu.Unlock()
}

// SetCorrelateWindow bounds how long a finished job looks for its video.
func (m *Manager) SetCorrelateWindow(d time.Duration) {
	m.mu.Lock()
	m.correlateWindow = d
	m.mu.Unlock()
}

// Available reports whether new jobs can start.
func (m *Manager) Available() error {
	m.mu.Lock()
	enabled, closed := m.enabled, m.closed
	m.mu.Unlock()
	if closed {
		return fmt.Errorf("%s: %w: shutting down", m.kind, ErrDisabled)
	}
	if !enabled {
		return fmt.Errorf("%s: %w", m.kind, ErrDisabled)
	}
	if err := m.runner.Available(); err != nil {
		return fmt.Errorf("%s: %w: %v", m.kind, ErrDisabled, err)
	}
	return nil
}

// Recover fails jobs left queued or downloading by a previous process.
func (m *Manager) Recover() error {
	n, err := m.store.MarkInterrupted()
	if err != nil {
		return err
	}
	if n > 0 {
		m.log.Warn("marked interrupted jobs failed", "kind", m.kind, "count", n)
	}
	return nil
}

// Start validates req, persists a queued job, and launches its task.
func (m *Manager) Start(ctx context.Context, req Request) (*Job, error) {
	if err := m.Available(); err != nil {
		return nil, err
	}
	value := strings.TrimSpace(req.SourceValue)
	if value == "" {
		return nil, fmt.Errorf("%w: source is required", ErrValidation)
	}
	if v, ok := m.runner.(Validator); ok {
		if err := v.Validate(req.SourceKind, value); err != nil {
			return nil, err
		}
	}
	src, ok := m.catalog.Source(req.SourceID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", ErrValidation, req.SourceID)
	}
	target, err := targetDir(src.Path, req.Subdir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, fmt.Errorf("create target dir: %w", err)
	}

	j := &Job{
		ID:          newJobID(),
		SourceKind:  req.SourceKind,
		SourceValue: value,
		SourceID:    src.ID,
		SourceLabel: src.Label,
		TargetDir:   target,
		Status:      StatusQueued,
	}
	if err := m.store.Create(j); err != nil {
		return nil, err
	}
	m.log.Info("job queued", "kind", m.kind, "job_id", j.ID, "source", src.ID)
	m.emit(Change{Job: *j})

	if err := m.spawn(*j); err != nil {
		return nil, err
	}
	return j, nil
}

func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func targetDir(root, subdir string) (string, error) {
	subdir = strings.TrimSpace(filepath.ToSlash(subdir))
	if subdir == "" || subdir == "." || subdir == "/" {
		return root, nil
	}
	clean := path.Clean(strings.TrimPrefix(subdir, "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: folder escapes source root", ErrValidation)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

// Get returns a job by id.
func (m *Manager) Get(id string) (*Job, error) {
	return m.store.Get(id)
}

// List returns the newest jobs first.
func (m *Manager) List(limit int) ([]*Job, error) {
	return m.store.List(limit)
}

// Active reports whether a task is running for id.
func (m *Manager) Active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[id]
	return ok
}

// Stop cancels the task, releases the external handle and waits for the
// task, then marks the job stopped. Stopping a finished job leaves it done.
// The context is cancelled before the handle goes away so the runner sees
// a cancellation rather than a closed handle.
func (m *Manager) Stop(ctx context.Context, id string) (*Job, error) {
	if _, err := m.store.Get(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	t := m.tasks[id]
	m.mu.Unlock()
	if t != nil {
		t.cancel()
	}
	m.releaseHandle(id)
	if t != nil {
		select {
		case <-t.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	j, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if j.Status == StatusDone {
		return j, nil
	}
	from := j.Status
	j.Status = StatusStopped
	if err := m.store.Update(j); err != nil {
		return nil, err
	}
	m.log.Info("job stopped", "kind", m.kind, "job_id", id)
	m.emit(Change{Job: *j, From: from})
	return j, nil
}

// Retry re-queues a failed or stopped job and launches a new task. The
// task slot is claimed before the row changes, so concurrent retries of the
// same job start at most one task.
func (m *Manager) Retry(ctx context.Context, id string) (*Job, error) {
	if err := m.Available(); err != nil {
		return nil, err
	}
	t, err := m.reserve(id)
	if err != nil {
		return nil, err
	}
	launched := false
	defer func() {
		if !launched {
			m.unreserve(id, t)
		}
	}()

	j, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if j.Status == StatusDownloading {
		return nil, ErrActive
	}
	if !j.Status.CanTransitionTo(StatusQueued) {
		return nil, fmt.Errorf("%w: cannot retry %s job", ErrValidation, j.Status)
	}
	if err := os.MkdirAll(j.TargetDir, 0755); err != nil {
		return nil, fmt.Errorf("create target dir: %w", err)
	}

	from := j.Status
	j.Status = StatusQueued
	j.Error = ""
	j.ProgressPercent = 0
	j.VideoID = ""
	if err := m.store.Update(j); err != nil {
		return nil, err
	}
	m.log.Info("job retried", "kind", m.kind, "job_id", id)
	m.emit(Change{Job: *j, From: from})

	m.launch(t, *j)
	launched = true
	return j, nil
}

// Delete cancels the task without waiting, releases the handle, and
// removes the row.
func (m *Manager) Delete(id string) error {
	if _, err := m.store.Get(id); err != nil {
		return err
	}
	m.mu.Lock()
	if t := m.tasks[id]; t != nil {
		t.cancel()
	}
	m.mu.Unlock()
	m.releaseHandle(id)

	if err := m.store.Delete(id); err != nil {
		return err
	}
	m.log.Info("job deleted", "kind", m.kind, "job_id", id)
	return nil
}

// Wait blocks until the task for id exits or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	t := m.tasks[id]
	m.mu.Unlock()
	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every task and waits for them to exit. Rows are left as
// they are; Recover fails them on the next start.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for _, t := range m.tasks {
		t.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) spawn(j Job) error {
	t, err := m.reserve(j.ID)
	if err != nil {
		return err
	}
	m.launch(t, j)
	return nil
}

// reserve claims the task slot for id. It fails with ErrActive when a task
// already holds the slot.
func (m *Manager) reserve(id string) (*task, error) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{ctx: ctx, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		cancel()
		return nil, fmt.Errorf("%s: %w: shutting down", m.kind, ErrDisabled)
	}
	if _, ok := m.tasks[id]; ok {
		cancel()
		return nil, ErrActive
	}
	m.tasks[id] = t
	m.wg.Add(1)
	return t, nil
}

// unreserve gives back a slot that was never launched.
func (m *Manager) unreserve(id string, t *task) {
	t.cancel()
	m.mu.Lock()
	if m.tasks[id] == t {
		delete(m.tasks, id)
	}
	m.mu.Unlock()
	close(t.done)
	m.wg.Done()
}

func (m *Manager) launch(t *task, j Job) {
	go func() {
		defer m.wg.Done()
		defer close(t.done)
		defer m.finish(j.ID, t)
		m.run(t.ctx, j)
	}()
}

// finish clears the task bookkeeping and releases any handle still held.
func (m *Manager) finish(id string, t *task) {
	t.cancel()
	m.mu.Lock()
	if m.tasks[id] == t {
		delete(m.tasks, id)
	}
	m.mu.Unlock()
	m.releaseHandle(id)
}

func (m *Manager) attach(id string, h Handle) {
	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()
}

func (m *Manager) releaseHandle(id string) {
	m.mu.Lock()
	h := m.handles[id]
	delete(m.handles, id)
	m.mu.Unlock()
	if h == nil {
		return
	}
	if err := h.Release(); err != nil {
		m.log.Warn("release handle failed", "kind", m.kind, "job_id", id, "error", err)
	}
}

func (m *Manager) run(ctx context.Context, j Job) {
	tr := &tracker{m: m, job: j, last: -1}
	if !tr.transition(StatusDownloading, "") {
		return
	}
	m.log.Info("job started", "kind", m.kind, "job_id", j.ID)

	err := m.runner.Run(ctx, tr.snapshot(), tr)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		m.log.Info("job cancelled", "kind", m.kind, "job_id", j.ID)
		return
	}
	if err != nil {
		m.log.Error("job failed", "kind", m.kind, "job_id", j.ID, "error", err)
		tr.transition(StatusFailed, truncateError(err.Error()))
		return
	}

	tr.complete()
	m.log.Info("job done", "kind", m.kind, "job_id", j.ID)
	if m.trigger != nil {
		m.trigger.Trigger()
	}

	if id := m.correlate(ctx, tr.snapshot()); id != "" {
		tr.setVideo(id)
		m.log.Info("job correlated", "kind", m.kind, "job_id", j.ID, "video_id", id)
	}
}

var errNoMatch = errors.New("no matching video yet")

// correlate looks for the catalog video produced by job, retrying with
// backoff while the scan catches up.
func (m *Manager) correlate(ctx context.Context, j Job) string {
	if j.DisplayName == "" || m.catalog == nil {
		return ""
	}
	m.mu.Lock()
	window := m.correlateWindow
	m.mu.Unlock()
	if window <= 0 {
		return ""
	}

	var found string
	op := func() error {
		entries, err := m.catalog.List()
		if err != nil {
			return err
		}
		var cands []Candidate
		for _, e := range entries {
			if e.SourceID != j.SourceID || !within(j.TargetDir, e.AbsPath) {
				continue
			}
			cands = append(cands, Candidate{ID: e.ID, Title: e.Title})
		}
		found = MatchTitle(j.DisplayName, cands)
		if found == "" {
			return errNoMatch
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 3 * time.Second
	b.MaxElapsedTime = window
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		m.log.Debug("job not correlated", "kind", m.kind, "job_id", j.ID, "error", err)
		return ""
	}
	return found
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (m *Manager) emit(c Change) {
	for _, h := range m.handlers {
		h(c)
	}
}
