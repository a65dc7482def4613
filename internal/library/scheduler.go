package library

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Scanner runs a catalog reconciliation.
type Scanner interface {
	Scan(ctx context.Context) (ScanResult, error)
}

// Scheduler coalesces scan requests. At most one scan is pending at a time;
// triggers that arrive while one is pending are absorbed into it.
type Scheduler struct {
	scanner Scanner
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	gen      uint64 // identifies the armed timer
	closed   bool
}

// NewScheduler creates a scheduler that runs scanner after debounce.
func NewScheduler(scanner Scanner, debounce time.Duration, log *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scanner:  scanner,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		debounce: debounce,
	}
}

// Trigger arms a scan if none is pending. Safe to call from any goroutine.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.timer != nil {
		return
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(gen) })
}

// Pending reports whether a scan is armed and has not started.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// SetDebounce changes the delay used for future triggers.
func (s *Scheduler) SetDebounce(d time.Duration) {
	s.mu.Lock()
	s.debounce = d
	s.mu.Unlock()
}

// Stop cancels a pending scan without running it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Close cancels any pending scan and aborts one in flight. Further
// triggers are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.timer == nil || s.gen != gen {
		// Cancelled or superseded after the timer fired.
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	if _, err := s.scanner.Scan(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("scheduled scan failed", "error", err)
	}
}

// RunPeriodic scans every interval until ctx is cancelled. An interval of
// zero or less disables it.
func RunPeriodic(ctx context.Context, scanner Scanner, interval time.Duration, log *slog.Logger) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("periodic scan started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			log.Info("periodic scan stopped")
			return nil
		case <-ticker.C:
			if _, err := scanner.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("periodic scan failed", "error", err)
			}
		}
	}
}
