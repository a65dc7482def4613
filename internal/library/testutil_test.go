package library

import (
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelbox/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := migrations.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testExts = []string{".mp4", ".mkv"}

// writeFile creates a file (and parents) under root and returns its path.
func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func newTestVideo(sourceID, rel string) *Video {
	return &Video{
		ID:          StableID(sourceID, rel),
		SourceID:    sourceID,
		SourceLabel: sourceID,
		RelPath:     rel,
		AbsPath:     "/media/" + sourceID + "/" + rel,
		Title:       rel,
		Size:        1,
		ModTime:     time.Now(),
	}
}
