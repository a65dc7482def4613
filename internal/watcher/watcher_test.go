package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIgnored(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"movie.mp4", false},
		{"movie.mp4.part", true},
		{"movie.mkv.!qB", true},
		{"x.TMP", true},
		{"clip.crdownload", true},
		{"partial.mkv", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Ignored(tt.name), tt.name)
	}
}

func startWatcher(t *testing.T, roots []string) chan struct{} {
	t.Helper()
	triggers := make(chan struct{}, 100)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Run(ctx, roots, func() { triggers <- struct{}{} }, testLogger())
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Allow the watcher to register directories.
	time.Sleep(100 * time.Millisecond)
	return triggers
}

func expectTrigger(t *testing.T, triggers chan struct{}) {
	t.Helper()
	select {
	case <-triggers:
	case <-time.After(2 * time.Second):
		t.Fatal("expected trigger")
	}
}

func TestRun_TriggersOnNewFile(t *testing.T) {
	root := t.TempDir()
	triggers := startWatcher(t, []string{root})

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.mp4"), []byte("x"), 0644))
	expectTrigger(t, triggers)
}

func TestRun_WatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	triggers := startWatcher(t, []string{root})

	sub := filepath.Join(root, "season1")
	require.NoError(t, os.Mkdir(sub, 0755))
	expectTrigger(t, triggers)
	time.Sleep(100 * time.Millisecond)
	for len(triggers) > 0 {
		<-triggers
	}

	require.NoError(t, os.WriteFile(filepath.Join(sub, "ep1.mkv"), []byte("x"), 0644))
	expectTrigger(t, triggers)
}

func TestRun_IgnoresPartialFiles(t *testing.T) {
	root := t.TempDir()
	triggers := startWatcher(t, []string{root})

	require.NoError(t, os.WriteFile(filepath.Join(root, "movie.mp4.part"), []byte("x"), 0644))
	select {
	case <-triggers:
		t.Fatal("partial file should not trigger")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRun_NoRootsReturns(t *testing.T) {
	err := Run(context.Background(), []string{"/nonexistent/reelbox-root"}, func() {}, testLogger())
	assert.NoError(t, err)
}
