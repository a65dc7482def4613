package ytdlp

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelbox/internal/jobs"
)

const fakeScript = `#!/bin/sh
if [ "$1" = "-J" ]; then
  echo '{"id":"abc","title":"  Test Clip  "}'
  exit 0
fi
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
printf '[youtube] abc: Downloading webpage\n[download]   0.0%% of 10.00MiB\r[download]  42.5%% of 10.00MiB\n[download] 100%% of 10.00MiB\n'
echo data > "$(dirname "$out")/Test Clip.mp4"
`

const failingScript = `#!/bin/sh
echo "ERROR: Unsupported URL" >&2
exit 1
`

// fakeBinary writes an executable shell script standing in for yt-dlp.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

type recordingReporter struct {
	mu       sync.Mutex
	titles   []string
	progress []float64
}

func (r *recordingReporter) Attach(jobs.Handle) {}

func (r *recordingReporter) Title(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, name)
}

func (r *recordingReporter) Progress(p float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"[download]  42.1% of 10.00MiB at 1.00MiB/s ETA 00:05", 42.1, true},
		{"[download] 100% of 10.00MiB in 00:10", 100, true},
		{"  [download]   0.0% of ~5MiB", 0, true},
		{"[download] Destination: clip.mp4", 0, false},
		{"[youtube] abc: Downloading webpage", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseProgress(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.InDelta(t, tt.want, got, 0.001, tt.line)
	}
}

func TestSplitByNewlineOrCR(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader("a\rb\n\nc\r\nd"))
	sc.Split(splitByNewlineOrCR)
	var got []string
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestNew_Defaults(t *testing.T) {
	c := New("", " ")
	assert.Equal(t, DefaultPath, c.Path)
	assert.Equal(t, DefaultFormat, c.Format)
}

func TestClient_Available(t *testing.T) {
	assert.ErrorIs(t, New(filepath.Join(t.TempDir(), "missing"), "").Available(), ErrNotInstalled)
	assert.NoError(t, New(fakeBinary(t, fakeScript), "").Available())
}

func TestClient_Title(t *testing.T) {
	c := New(fakeBinary(t, fakeScript), "")
	title, err := c.Title(context.Background(), "https://example.com/watch?v=abc")
	require.NoError(t, err)
	assert.Equal(t, "Test Clip", title)
}

func TestClient_Download(t *testing.T) {
	dir := t.TempDir()
	c := New(fakeBinary(t, fakeScript), "")

	var got []float64
	err := c.Download(context.Background(), "https://example.com/watch?v=abc",
		filepath.Join(dir, DefaultTemplate), func(p float64) { got = append(got, p) })
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 42.5, 100}, got)
	assert.FileExists(t, filepath.Join(dir, "Test Clip.mp4"))
}

func TestClient_DownloadFailureIncludesStderr(t *testing.T) {
	c := New(fakeBinary(t, failingScript), "")
	err := c.Download(context.Background(), "https://example.com", filepath.Join(t.TempDir(), DefaultTemplate), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported URL")

	_, err = c.Title(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported URL")
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(New(fakeBinary(t, fakeScript), ""))
	rep := &recordingReporter{}

	err := r.Run(context.Background(), jobs.Job{SourceValue: "https://example.com/v", TargetDir: dir}, rep)
	require.NoError(t, err)
	assert.Equal(t, []string{"Test Clip"}, rep.titles)
	assert.Equal(t, []float64{0, 42.5, 100}, rep.progress)
	assert.FileExists(t, filepath.Join(dir, "Test Clip.mp4"))
}

func TestRunner_RunFailsWhenTitleFails(t *testing.T) {
	r := NewRunner(New(fakeBinary(t, failingScript), ""))
	rep := &recordingReporter{}
	err := r.Run(context.Background(), jobs.Job{SourceValue: "https://example.com/v", TargetDir: t.TempDir()}, rep)
	require.Error(t, err)
	assert.Empty(t, rep.titles)
}

func TestRunner_Validate(t *testing.T) {
	r := NewRunner(New("", ""))
	assert.NoError(t, r.Validate(jobs.SourceURL, "https://www.youtube.com/watch?v=abc"))
	assert.NoError(t, r.Validate(jobs.SourceURL, "http://example.com/v"))
	assert.ErrorIs(t, r.Validate(jobs.SourceURL, "ftp://example.com/v"), jobs.ErrValidation)
	assert.ErrorIs(t, r.Validate(jobs.SourceURL, "not a url"), jobs.ErrValidation)
	assert.ErrorIs(t, r.Validate(jobs.SourceURL, "https://"), jobs.ErrValidation)
	assert.ErrorIs(t, r.Validate(jobs.SourceMagnet, "magnet:?xt=urn:btih:abc"), jobs.ErrValidation)
}
