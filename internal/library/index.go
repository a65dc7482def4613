package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ScanHandler is called after every successful scan.
type ScanHandler func(ScanResult)

// Index owns the configured sources and reconciles the catalog against disk.
// Scans are serialized; Reconfigure swaps sources atomically.
type Index struct {
	store *Store
	log   *slog.Logger

	mu      sync.RWMutex
	sources []Source
	exts    map[string]bool

	scanMu   sync.Mutex
	handlers []ScanHandler
}

// NewIndex creates an index over the given sources.
func NewIndex(store *Store, sources []Source, extensions []string, log *slog.Logger) *Index {
	x := &Index{store: store, log: log}
	x.Reconfigure(sources, extensions)
	return x
}

// OnScan registers a handler called after each successful scan.
// Handlers must be registered before scanning starts.
func (x *Index) OnScan(h ScanHandler) {
	x.handlers = append(x.handlers, h)
}

// Reconfigure replaces the sources and allowed extensions.
func (x *Index) Reconfigure(sources []Source, extensions []string) {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	srcs := append([]Source(nil), sources...)

	x.mu.Lock()
	x.sources = srcs
	x.exts = exts
	x.mu.Unlock()
}

// Sources returns a copy of the configured sources.
func (x *Index) Sources() []Source {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]Source(nil), x.sources...)
}

// Source returns the configured source with the given id.
func (x *Index) Source(id string) (Source, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, s := range x.sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// Allowed reports whether name has an indexed extension.
func (x *Index) Allowed(name string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.exts[strings.ToLower(filepath.Ext(name))]
}

func (x *Index) snapshot() ([]Source, map[string]bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]Source(nil), x.sources...), x.exts
}

// skipped marks a subtree whose rows are kept because it could not be read.
type skipped struct {
	sourceID string
	prefix   string // "" covers the whole source
}

func (s skipped) covers(v *Video) bool {
	if v.SourceID != s.sourceID {
		return false
	}
	return s.prefix == "" || v.RelPath == s.prefix || strings.HasPrefix(v.RelPath, s.prefix+"/")
}

// Scan walks every source and reconciles the catalog: files on disk are
// upserted and rows for files no longer present are deleted. Unreadable
// roots and directories keep their existing rows. Cancelling ctx aborts the
// scan before any row is deleted.
func (x *Index) Scan(ctx context.Context) (ScanResult, error) {
	x.scanMu.Lock()
	defer x.scanMu.Unlock()

	start := time.Now()
	sources, exts := x.snapshot()

	var (
		found []*Video
		skips []skipped
	)
	for _, src := range sources {
		videos, sk, err := walkSource(ctx, src, exts)
		if err != nil {
			return ScanResult{}, err
		}
		found = append(found, videos...)
		skips = append(skips, sk...)
	}
	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}

	tx, err := x.store.Begin()
	if err != nil {
		return ScanResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := tx.VideosByID()
	if err != nil {
		return ScanResult{}, err
	}

	res := ScanResult{Seen: len(found)}
	seen := make(map[string]bool, len(found))
	for _, v := range found {
		seen[v.ID] = true
		if _, ok := existing[v.ID]; !ok {
			res.Added++
		}
		if err := tx.UpsertVideo(v); err != nil {
			return ScanResult{}, err
		}
	}

	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}

	for id, v := range existing {
		if seen[id] || coveredBySkip(skips, v) {
			continue
		}
		if err := tx.DeleteVideo(id); err != nil {
			return ScanResult{}, err
		}
		res.Removed++
	}

	if err := tx.Commit(); err != nil {
		return ScanResult{}, fmt.Errorf("commit scan: %w", err)
	}

	res.Duration = time.Since(start)
	x.log.Info("scan completed", "seen", res.Seen, "added", res.Added, "removed", res.Removed,
		"duration_ms", res.Duration.Milliseconds())
	for _, h := range x.handlers {
		h(res)
	}
	return res, nil
}

func coveredBySkip(skips []skipped, v *Video) bool {
	for _, s := range skips {
		if s.covers(v) {
			return true
		}
	}
	return false
}

func walkSource(ctx context.Context, src Source, exts map[string]bool) ([]*Video, []skipped, error) {
	info, err := os.Stat(src.Path)
	if err != nil || !info.IsDir() {
		return nil, []skipped{{sourceID: src.ID}}, nil
	}

	var (
		videos []*Video
		skips  []skipped
	)
	err = filepath.WalkDir(src.Path, func(p string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		rel, relErr := filepath.Rel(src.Path, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = ""
		}
		if err != nil {
			if d == nil || d.IsDir() {
				skips = append(skips, skipped{sourceID: src.ID, prefix: rel})
				if d != nil {
					return fs.SkipDir
				}
			}
			return nil
		}
		if d.IsDir() || !exts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		// Stat follows symlinks so linked media is indexed like regular files.
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			return nil
		}
		videos = append(videos, newVideo(src, rel, p, fi))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return videos, skips, nil
}

func newVideo(src Source, rel, abs string, fi os.FileInfo) *Video {
	name := path.Base(rel)
	return &Video{
		ID:          StableID(src.ID, rel),
		SourceID:    src.ID,
		SourceLabel: src.Label,
		RelPath:     rel,
		AbsPath:     abs,
		Title:       strings.TrimSuffix(name, path.Ext(name)),
		Size:        fi.Size(),
		ModTime:     fi.ModTime(),
	}
}

// Get returns a video by id.
func (x *Index) Get(id string) (*Video, error) {
	return x.store.GetVideo(id)
}

// List returns the catalog with progress.
func (x *Index) List() ([]*Entry, error) {
	return x.store.ListVideos()
}

// Progress returns the saved position for a video, zero if none.
func (x *Index) Progress(id string) (*Progress, error) {
	if _, err := x.store.GetVideo(id); err != nil {
		return nil, err
	}
	p, err := x.store.GetProgress(id)
	if errors.Is(err, ErrNotFound) {
		return &Progress{VideoID: id}, nil
	}
	return p, err
}

// SetProgress records a playback position. Negative and non-finite values
// clamp to zero.
func (x *Index) SetProgress(id string, seconds float64) (*Progress, error) {
	p, err := x.store.SetProgress(id, seconds)
	if errors.Is(err, ErrConstraint) {
		return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return p, err
}

// cleanRelPath validates a client-supplied relative path.
func cleanRelPath(rel string) (string, error) {
	rel = strings.TrimSpace(filepath.ToSlash(rel))
	if rel == "" {
		return "", fmt.Errorf("%w: path is required", ErrValidation)
	}
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: path must be relative", ErrValidation)
	}
	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: path escapes source root", ErrValidation)
	}
	return clean, nil
}

// Move renames a video's file, possibly into another source, and migrates
// its catalog row and progress. The destination must not already exist.
// It does not wait for a running scan; the next scan reconciles any overlap.
func (x *Index) Move(id, targetSourceID, targetRel string) (*Video, error) {
	v, err := x.store.GetVideo(id)
	if err != nil {
		return nil, err
	}
	dst, ok := x.Source(targetSourceID)
	if !ok {
		return nil, fmt.Errorf("source %s: %w", targetSourceID, ErrNotFound)
	}
	rel, err := cleanRelPath(targetRel)
	if err != nil {
		return nil, err
	}
	if !x.Allowed(rel) {
		return nil, fmt.Errorf("%w: extension %q is not indexed", ErrValidation, path.Ext(rel))
	}

	if _, err := os.Stat(v.AbsPath); err != nil {
		return nil, fmt.Errorf("%w: source file missing: %s", ErrValidation, v.AbsPath)
	}
	newAbs := filepath.Join(dst.Path, filepath.FromSlash(rel))
	if newAbs == v.AbsPath {
		return v, nil
	}
	if _, err := os.Lstat(newAbs); err == nil {
		return nil, fmt.Errorf("%w: target already exists: %s", ErrValidation, rel)
	}
	if err := os.MkdirAll(filepath.Dir(newAbs), 0755); err != nil {
		return nil, fmt.Errorf("create target dir: %w", err)
	}
	if err := os.Rename(v.AbsPath, newAbs); err != nil {
		return nil, fmt.Errorf("move file: %w", err)
	}

	fi, err := os.Stat(newAbs)
	if err != nil {
		return nil, fmt.Errorf("stat moved file: %w", err)
	}
	moved := newVideo(dst, rel, newAbs, fi)

	if err := x.relocate(v.ID, moved); err != nil {
		if rerr := os.Rename(newAbs, v.AbsPath); rerr != nil {
			x.log.Error("move rollback failed", "from", newAbs, "to", v.AbsPath, "error", rerr)
		}
		return nil, err
	}
	x.log.Info("video moved", "id", v.ID, "new_id", moved.ID, "path", newAbs)
	return moved, nil
}

// relocate rewrites the catalog for a moved file. When the id changes the
// new row is inserted, progress copied, and the old row deleted.
func (x *Index) relocate(oldID string, moved *Video) error {
	tx, err := x.store.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if oldID == moved.ID {
		if err := tx.UpsertVideo(moved); err != nil {
			return err
		}
		return tx.Commit()
	}
	if err := tx.UpsertVideo(moved); err != nil {
		return err
	}
	if err := tx.CopyProgress(oldID, moved.ID); err != nil {
		return err
	}
	if err := tx.DeleteVideo(oldID); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a video's file and its catalog row. A file already gone
// from disk is not an error.
func (x *Index) Delete(id string) error {
	v, err := x.store.GetVideo(id)
	if err != nil {
		return err
	}
	if err := os.Remove(v.AbsPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	if err := x.store.DeleteVideo(id); err != nil {
		return err
	}
	x.log.Info("video deleted", "id", id, "path", v.AbsPath)
	return nil
}

// Upload writes r to a new file under the source, rescans, and returns the
// resulting catalog row.
func (x *Index) Upload(ctx context.Context, sourceID, rel string, r io.Reader) (*Video, error) {
	src, ok := x.Source(sourceID)
	if !ok {
		return nil, fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}
	rel, err := cleanRelPath(rel)
	if err != nil {
		return nil, err
	}
	if !x.Allowed(rel) {
		return nil, fmt.Errorf("%w: extension %q is not indexed", ErrValidation, path.Ext(rel))
	}
	abs := filepath.Join(src.Path, filepath.FromSlash(rel))
	if _, err := os.Lstat(abs); err == nil {
		return nil, fmt.Errorf("%w: target already exists: %s", ErrValidation, rel)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, fmt.Errorf("create target dir: %w", err)
	}

	// Stage under a .part name so watchers ignore the partial file.
	f, err := os.CreateTemp(filepath.Dir(abs), ".upload-*.part")
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close upload: %w", err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, abs); err != nil {
		return nil, fmt.Errorf("place upload: %w", err)
	}

	if _, err := x.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan after upload: %w", err)
	}
	return x.store.GetVideo(StableID(src.ID, rel))
}

// BrowseEntry is one item in a directory listing.
type BrowseEntry struct {
	Name    string
	RelPath string
	IsDir   bool
	Size    int64
	VideoID string // set for indexable files
}

// Browse lists a directory inside a source. Folders sort before files.
func (x *Index) Browse(sourceID, rel string) ([]BrowseEntry, error) {
	src, ok := x.Source(sourceID)
	if !ok {
		return nil, fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}
	dir := src.Path
	if strings.TrimSpace(rel) != "" && rel != "." && rel != "/" {
		clean, err := cleanRelPath(rel)
		if err != nil {
			return nil, err
		}
		rel = clean
		dir = filepath.Join(src.Path, filepath.FromSlash(clean))
	} else {
		rel = ""
	}

	items, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("directory %s: %w", rel, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var out []BrowseEntry
	for _, it := range items {
		if strings.HasPrefix(it.Name(), ".") {
			continue
		}
		childRel := path.Join(rel, it.Name())
		e := BrowseEntry{Name: it.Name(), RelPath: childRel, IsDir: it.IsDir()}
		if !it.IsDir() {
			if !x.Allowed(it.Name()) {
				continue
			}
			if fi, err := it.Info(); err == nil {
				e.Size = fi.Size()
			}
			e.VideoID = StableID(src.ID, childRel)
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
