// Package jobs runs long-lived download jobs in the background and persists
// their lifecycle. One Manager serves each job kind; the kind-specific work
// is supplied by a Runner.
package jobs

import (
	"context"
	"time"
)

// Kind distinguishes the job families, each stored in its own table.
type Kind string

const (
	KindTorrent Kind = "torrent"
	KindURL     Kind = "url"
)

// Source kinds for torrent jobs. URL jobs always use SourceURL.
const (
	SourceMagnet  = "magnet"
	SourceTorrent = "torrent"
	SourceURL     = "url"
)

// Status tracks job state.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
	StatusStopped     Status = "stopped"
)

// validTransitions defines allowed state transitions.
// Key is the "from" status, value is list of valid "to" statuses.
var validTransitions = map[Status][]Status{
	StatusQueued:      {StatusDownloading, StatusFailed, StatusStopped},
	StatusDownloading: {StatusDone, StatusFailed, StatusStopped},
	StatusFailed:      {StatusQueued, StatusStopped}, // retry
	StatusStopped:     {StatusQueued, StatusStopped}, // restart; stop is idempotent
	StatusDone:        {},
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, v := range validTransitions[s] {
		if v == target {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Job is a persisted download job.
type Job struct {
	ID              string
	Kind            Kind
	SourceKind      string // magnet, torrent, or url
	SourceValue     string // magnet uri, staged .torrent path, or url
	SourceID        string
	SourceLabel     string
	TargetDir       string
	Status          Status
	Error           string
	DisplayName     string
	ProgressPercent float64
	VideoID         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Handle is an external-tool resource tied to a running job, such as a
// torrent in the engine. Release detaches it.
type Handle interface {
	Release() error
}

// Reporter receives updates from a Runner while a job runs. Methods may be
// called from any goroutine.
type Reporter interface {
	// Attach registers the external handle so Stop and Delete can release it.
	Attach(h Handle)
	// Title records the human-readable name once known.
	Title(name string)
	// Progress records completion in percent. Values are clamped to 0..100
	// and never move backwards.
	Progress(percent float64)
}

// Runner performs the kind-specific work of a job.
type Runner interface {
	// Available returns an error if the external tool cannot run.
	Available() error
	// Run blocks until the download finishes, fails, or ctx is cancelled.
	Run(ctx context.Context, job Job, r Reporter) error
}

// Change describes a persisted job update, delivered to registered handlers.
type Change struct {
	Job      Job
	From     Status
	Progress bool // true when only progress or title changed
}

// ChangeHandler observes job changes.
type ChangeHandler func(Change)
