package torrent

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vmunix/reelbox/internal/jobs"
)

const (
	metadataPoll = 500 * time.Millisecond
	statusPoll   = time.Second
)

// Runner executes torrent jobs on an Engine. A nil engine makes the runner
// report itself unavailable.
type Runner struct {
	engine       Engine
	metadataPoll time.Duration
	statusPoll   time.Duration
}

// NewRunner returns a Runner for engine.
func NewRunner(engine Engine) *Runner {
	return &Runner{engine: engine, metadataPoll: metadataPoll, statusPoll: statusPoll}
}

// Available implements jobs.Runner.
func (r *Runner) Available() error {
	if r.engine == nil {
		return ErrEngineUnavailable
	}
	return nil
}

// Validate implements jobs.Validator.
func (r *Runner) Validate(sourceKind, value string) error {
	switch sourceKind {
	case jobs.SourceMagnet:
		if !ValidMagnet(value) {
			return fmt.Errorf("%w: not a magnet uri", jobs.ErrValidation)
		}
	case jobs.SourceTorrent:
		fi, err := os.Stat(value)
		if err != nil || fi.IsDir() {
			return fmt.Errorf("%w: torrent file not found", jobs.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unsupported source kind %q", jobs.ErrValidation, sourceKind)
	}
	return nil
}

// Run implements jobs.Runner. It waits for metadata, then polls status until
// the torrent completes, fails, or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, job jobs.Job, rep jobs.Reporter) error {
	src := Source{Magnet: job.SourceValue}
	if job.SourceKind == jobs.SourceTorrent {
		src = Source{File: job.SourceValue}
	}
	h, err := r.engine.Add(ctx, src, job.TargetDir)
	if err != nil {
		return fmt.Errorf("add torrent: %w", err)
	}
	rep.Attach(release{engine: r.engine, handle: h})

	if err := r.awaitMetadata(ctx, h); err != nil {
		return err
	}
	if name := h.Name(); name != "" {
		rep.Title(name)
	}

	ticker := time.NewTicker(r.statusPoll)
	defer ticker.Stop()
	for {
		st := h.Status()
		if st.Err != nil {
			return st.Err
		}
		rep.Progress(st.Progress * 100)
		if st.IsSeeding || st.Progress >= 1 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) awaitMetadata(ctx context.Context, h Handle) error {
	ticker := time.NewTicker(r.metadataPoll)
	defer ticker.Stop()
	for {
		st := h.Status()
		if st.Err != nil {
			return st.Err
		}
		if st.HasMetadata {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type release struct {
	engine Engine
	handle Handle
}

func (r release) Release() error { return r.engine.Remove(r.handle) }

// ValidMagnet reports whether s is a magnet URI.
func ValidMagnet(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "magnet:")
}

// SaveUploadedTorrent stores an uploaded .torrent file in stagingDir under a
// random name and returns its path. filename is the client-supplied name and
// must carry the .torrent extension.
func SaveUploadedTorrent(stagingDir, filename string, r io.Reader) (string, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".torrent") {
		return "", fmt.Errorf("%w: expected a .torrent file", jobs.ErrValidation)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	path := filepath.Join(stagingDir, uuid.NewString()+".torrent")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create torrent file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write torrent file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write torrent file: %w", err)
	}
	return path, nil
}
