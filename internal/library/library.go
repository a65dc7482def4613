// Package library maintains the video catalog: stable ids, the SQLite store,
// the filesystem scan that reconciles it, and the scan scheduler.
package library

import (
	"time"
)

// Source is a named library root on disk.
type Source struct {
	ID    string
	Label string
	Path  string
}

// Video is an indexed media file.
type Video struct {
	ID          string
	SourceID    string
	SourceLabel string
	RelPath     string // forward-slash separated, relative to the source root
	AbsPath     string
	Title       string
	Size        int64
	ModTime     time.Time
}

// Entry is a catalog row joined with its playback progress.
type Entry struct {
	Video
	PositionSeconds   float64
	ProgressUpdatedAt *time.Time
}

// Progress is a saved playback position.
type Progress struct {
	VideoID         string
	PositionSeconds float64
	UpdatedAt       time.Time
}

// ScanResult summarizes one reconciliation pass.
type ScanResult struct {
	Seen     int
	Added    int
	Removed  int
	Duration time.Duration
}
