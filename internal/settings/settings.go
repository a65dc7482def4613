// Package settings applies user edits to the on-disk configuration file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/vmunix/reelbox/internal/config"
)

var (
	ErrNotFound   = errors.New("source not found")
	ErrValidation = errors.New("invalid settings")
)

// DefaultProtected are paths DeleteSource never removes from disk.
var DefaultProtected = []string{"/", "/data", "/media", "/config", "/app"}

// Settings is the user-editable view of the configuration.
type Settings struct {
	Sources     []config.Source      `json:"sources"`
	Downloads   bool                 `json:"downloads_enabled"`
	Modules     config.ModulesConfig `json:"modules"`
	AuthEnabled bool                 `json:"auth_enabled"`
	SeekTime    int                  `json:"seek_time"`
}

// Store reads and rewrites the config file. Mutations are serialized.
type Store struct {
	path      string
	protected map[string]bool

	mu sync.Mutex
}

// New returns a Store for the config file at path. extraProtected adds to
// DefaultProtected.
func New(path string, extraProtected []string) *Store {
	protected := make(map[string]bool)
	for _, p := range append(append([]string(nil), DefaultProtected...), extraProtected...) {
		if p = strings.TrimSpace(p); p != "" {
			protected[filepath.Clean(p)] = true
		}
	}
	return &Store{path: path, protected: protected}
}

// Path returns the config file location.
func (s *Store) Path() string { return s.path }

// Get returns the current settings.
func (s *Store) Get() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := config.LoadRaw(s.path)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Sources:     cfg.Library.Sources,
		Downloads:   cfg.Downloads.Enabled,
		Modules:     cfg.Modules,
		AuthEnabled: cfg.Auth.Enabled,
		SeekTime:    cfg.Player.SeekTime,
	}, nil
}

// UpsertSource adds src or replaces the source with the same id. The folder
// must exist unless createIfMissing is set.
func (s *Store) UpsertSource(src config.Source, createIfMissing bool) error {
	src.ID = strings.TrimSpace(src.ID)
	src.Label = strings.TrimSpace(src.Label)
	src.Path = strings.TrimSpace(src.Path)
	if src.ID == "" {
		return fmt.Errorf("%w: source id is required", ErrValidation)
	}
	if src.Path == "" {
		return fmt.Errorf("%w: source path is required", ErrValidation)
	}
	if src.Label == "" {
		src.Label = src.ID
	}
	src.Path = filepath.Clean(src.Path)

	if createIfMissing {
		if err := os.MkdirAll(src.Path, 0o755); err != nil {
			return fmt.Errorf("create folder: %w", err)
		}
	}
	if fi, err := os.Stat(src.Path); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: folder does not exist", ErrValidation)
	}

	return s.update(func(cfg *config.Config) error {
		for i, existing := range cfg.Library.Sources {
			if existing.ID == src.ID {
				cfg.Library.Sources[i] = src
				return nil
			}
		}
		cfg.Library.Sources = append(cfg.Library.Sources, src)
		return nil
	})
}

// DeleteSource removes the source with id. The last source cannot be
// removed. With removeFromDisk the folder is deleted too; a mount point is
// emptied instead.
func (s *Store) DeleteSource(id string, removeFromDisk bool) error {
	return s.update(func(cfg *config.Config) error {
		var removed *config.Source
		kept := make([]config.Source, 0, len(cfg.Library.Sources))
		for _, src := range cfg.Library.Sources {
			if src.ID == id {
				removed = &src
				continue
			}
			kept = append(kept, src)
		}
		if removed == nil {
			return ErrNotFound
		}
		if len(kept) == 0 {
			return fmt.Errorf("%w: at least one source is required", ErrValidation)
		}
		if removeFromDisk && removed.Path != "" {
			if err := s.removeFolder(removed.Path); err != nil {
				return err
			}
		}
		cfg.Library.Sources = kept
		return nil
	})
}

// UpdatePlayer sets the player seek step in seconds.
func (s *Store) UpdatePlayer(seekTime int) error {
	if seekTime < config.MinSeekTime || seekTime > config.MaxSeekTime {
		return fmt.Errorf("%w: seek time must be between %d and %d seconds", ErrValidation, config.MinSeekTime, config.MaxSeekTime)
	}
	return s.update(func(cfg *config.Config) error {
		cfg.Player.SeekTime = seekTime
		return nil
	})
}

func (s *Store) update(fn func(*config.Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := config.LoadRaw(s.path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return cfg.Write(s.path)
}

func (s *Store) removeFolder(path string) error {
	path = filepath.Clean(path)
	if s.protected[path] {
		return fmt.Errorf("%w: refusing to delete protected path %s", ErrValidation, path)
	}
	err := os.RemoveAll(path)
	// RemoveAll empties a mount point before failing on the directory itself.
	if err != nil && !errors.Is(err, syscall.EBUSY) {
		return fmt.Errorf("remove folder: %w", err)
	}
	return nil
}
