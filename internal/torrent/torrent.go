// Package torrent downloads torrents into library folders through a
// BitTorrent engine and adapts them to the job runner contract.
package torrent

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/vmunix/reelbox/internal/torrent Engine,Handle

import (
	"context"
	"errors"
)

// ErrEngineUnavailable is returned when no engine could be started.
var ErrEngineUnavailable = errors.New("torrent engine unavailable")

// Source identifies what to add: a magnet URI or a path to a .torrent file.
type Source struct {
	Magnet string
	File   string
}

// Status is a point-in-time view of a torrent in the engine.
type Status struct {
	HasMetadata  bool
	Progress     float64 // 0..1
	DownloadRate int64   // bytes per second
	NumPeers     int
	Err          error
	IsSeeding    bool
}

// Handle refers to one torrent held by the engine.
type Handle interface {
	Name() string
	Status() Status
}

// Engine is the BitTorrent client port.
type Engine interface {
	// Add starts downloading src into saveDir.
	Add(ctx context.Context, src Source, saveDir string) (Handle, error)
	// Remove drops the torrent from the engine, leaving its files on disk.
	Remove(h Handle) error
	Close() error
}
