// Package watcher turns filesystem activity under library roots into scan triggers.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ignoredSuffixes are partial-download markers written by browsers and
// download clients. Events for them never trigger a scan.
var ignoredSuffixes = []string{".part", ".!qb", ".tmp", ".crdownload"}

// Ignored reports whether events for name should be dropped.
func Ignored(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range ignoredSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// Run watches roots recursively and calls trigger on relevant changes until
// ctx is cancelled. When watching is unavailable it logs and returns nil so
// periodic scanning still covers the library.
func Run(ctx context.Context, roots []string, trigger func(), log *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("file watching unavailable", "error", err)
		return nil
	}
	defer func() { _ = w.Close() }()

	watched := 0
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			log.Warn("watch root missing", "path", root)
			continue
		}
		watched += addTree(w, root, log)
	}
	if watched == 0 {
		log.Info("no directories to watch")
		return nil
	}
	log.Info("watching library", "roots", len(roots), "dirs", watched)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if Ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					addTree(w, ev.Name, log)
				}
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				log.Debug("library change", "path", ev.Name, "op", ev.Op.String())
				trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		}
	}
}

// addTree registers dir and every subdirectory. Returns the number added.
func addTree(w *fsnotify.Watcher, dir string, log *slog.Logger) int {
	n := 0
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(p); err != nil {
			log.Warn("watch add failed", "path", p, "error", err)
			return nil
		}
		n++
		return nil
	})
	return n
}
