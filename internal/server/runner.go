// Package server owns the background scan drivers and applies configuration
// changes to the running components.
package server

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/reelbox/internal/config"
	"github.com/vmunix/reelbox/internal/jobs"
	"github.com/vmunix/reelbox/internal/library"
	"github.com/vmunix/reelbox/internal/watcher"
)

// Index is the part of library.Index the runner drives.
type Index interface {
	library.Scanner
	Reconfigure(sources []library.Source, extensions []string)
}

// Scheduler is the debounced scan trigger.
type Scheduler interface {
	Trigger()
	SetDebounce(d time.Duration)
}

// WatchFunc runs a filesystem watch driver until ctx is done.
type WatchFunc func(ctx context.Context, roots []string, trigger func(), log *slog.Logger) error

// PeriodicFunc runs the fixed-interval driver until ctx is done.
type PeriodicFunc func(ctx context.Context, scanner library.Scanner, interval time.Duration, log *slog.Logger) error

// Runner manages the periodic and watch drivers. Reconfigure stops them,
// installs the new configuration, scans, and starts them again.
type Runner struct {
	index    Index
	sched    Scheduler
	managers []*jobs.Manager
	logger   *slog.Logger

	watch    WatchFunc
	periodic PeriodicFunc

	mu      sync.Mutex
	cfg     *config.Config
	parent  context.Context
	stop    context.CancelFunc
	drivers *errgroup.Group
}

// NewRunner creates a runner and installs cfg into the components.
func NewRunner(cfg *config.Config, index Index, sched Scheduler, managers []*jobs.Manager, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		index:    index,
		sched:    sched,
		managers: managers,
		logger:   logger.With("component", "runner"),
		watch:    watcher.Run,
		periodic: library.RunPeriodic,
	}
	r.apply(cfg)
	return r
}

// Config returns the installed configuration.
func (r *Runner) Config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Run performs the startup scan, starts the drivers, and blocks until ctx is
// canceled.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.index.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("startup scan failed", "error", err)
	}

	r.mu.Lock()
	r.parent = ctx
	r.startDrivers()
	r.mu.Unlock()

	<-ctx.Done()

	r.mu.Lock()
	err := r.stopDrivers()
	r.parent = nil
	r.mu.Unlock()
	return err
}

// Reconfigure installs cfg: drivers are stopped and awaited, the index,
// scheduler, and managers are updated, a scan runs, and the drivers restart.
func (r *Runner) Reconfigure(ctx context.Context, cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.stopDrivers(); err != nil {
		r.logger.Warn("driver exited with error", "error", err)
	}
	r.apply(cfg)
	r.logger.Info("configuration applied", "sources", len(cfg.Library.Sources))

	_, err := r.index.Scan(ctx)
	if r.parent != nil && r.parent.Err() == nil {
		r.startDrivers()
	}
	return err
}

// apply pushes cfg into the components. Callers hold mu, except during
// construction.
func (r *Runner) apply(cfg *config.Config) {
	sources := make([]library.Source, 0, len(cfg.Library.Sources))
	for _, s := range cfg.Library.Sources {
		if err := os.MkdirAll(s.Path, 0o755); err != nil {
			r.logger.Warn("cannot create source directory", "source_id", s.ID, "path", s.Path, "error", err)
		}
		sources = append(sources, library.Source{ID: s.ID, Label: s.Label, Path: s.Path})
	}
	r.index.Reconfigure(sources, cfg.Library.Extensions)
	r.sched.SetDebounce(cfg.Watcher.Debounce)

	for _, m := range r.managers {
		m.SetEnabled(Enabled(cfg, m.Kind()))
		m.SetCorrelateWindow(cfg.Downloads.CorrelateWindow)
	}
	r.cfg = cfg
}

// Enabled reports whether jobs of kind may start under cfg.
func Enabled(cfg *config.Config, kind jobs.Kind) bool {
	if !cfg.Downloads.Enabled {
		return false
	}
	switch kind {
	case jobs.KindTorrent:
		return cfg.Modules.Torrents
	case jobs.KindURL:
		return cfg.Modules.Youtube
	}
	return false
}

// startDrivers launches the drivers under a child of the Run context.
// Callers hold mu.
func (r *Runner) startDrivers() {
	ctx, cancel := context.WithCancel(r.parent)
	g, gctx := errgroup.WithContext(ctx)
	cfg := r.cfg

	g.Go(func() error {
		return r.periodic(gctx, r.index, cfg.Library.ScanInterval, r.logger.With("driver", "periodic"))
	})
	if cfg.Watcher.Enabled {
		roots := make([]string, 0, len(cfg.Library.Sources))
		for _, s := range cfg.Library.Sources {
			roots = append(roots, s.Path)
		}
		g.Go(func() error {
			return r.watch(gctx, roots, r.sched.Trigger, r.logger.With("driver", "watch"))
		})
	}
	r.stop = cancel
	r.drivers = g
}

// stopDrivers cancels the drivers and waits for them. Callers hold mu.
func (r *Runner) stopDrivers() error {
	if r.stop == nil {
		return nil
	}
	r.stop()
	err := r.drivers.Wait()
	r.stop = nil
	r.drivers = nil
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
