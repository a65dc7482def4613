// Package transcode streams videos the browser cannot play natively through
// ffmpeg.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

const (
	ModeRemux  = "remux"
	ModeEncode = "encode"

	chunkSize = 64 * 1024
)

// ContentType is the media type of streamed output for each mode.
var ContentType = map[string]string{
	ModeRemux:  "video/x-matroska",
	ModeEncode: "video/mp4",
}

var (
	// ErrUnavailable is returned when ffmpeg cannot be found.
	ErrUnavailable = errors.New("ffmpeg not installed")
	// ErrMidStream wraps ffmpeg failures after output may already have been sent.
	ErrMidStream = errors.New("transcode failed mid-stream")
)

// Streamer pipes files through ffmpeg.
type Streamer struct {
	FFmpegPath string
	Extensions map[string]bool
	Mode       string
}

// New returns a Streamer. exts are matched case-insensitively.
func New(ffmpegPath string, exts []string, mode string) *Streamer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if mode == "" {
		mode = ModeRemux
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return &Streamer{FFmpegPath: ffmpegPath, Extensions: set, Mode: mode}
}

// Needs reports whether path should be transcoded rather than served as-is.
func (s *Streamer) Needs(path string) bool {
	return s.Extensions[strings.ToLower(filepath.Ext(path))]
}

// Available reports whether ffmpeg can be executed.
func (s *Streamer) Available() error {
	if _, err := exec.LookPath(s.FFmpegPath); err != nil {
		return ErrUnavailable
	}
	return nil
}

// ContentType returns the media type Stream produces.
func (s *Streamer) ContentType() string {
	if ct, ok := ContentType[s.Mode]; ok {
		return ct
	}
	return ContentType[ModeRemux]
}

// Args returns the ffmpeg arguments for path.
func (s *Streamer) Args(path string) []string {
	if s.Mode == ModeEncode {
		return []string{
			"-i", path,
			"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
			"-c:a", "aac", "-b:a", "128k",
			"-movflags", "frag_keyframe+empty_moov",
			"-f", "mp4",
			"-loglevel", "error",
			"pipe:1",
		}
	}
	return []string{
		"-i", path,
		"-c", "copy",
		"-f", "matroska",
		"-loglevel", "error",
		"pipe:1",
	}
}

// Stream writes the transcoded form of path to w until ffmpeg exits or ctx
// is cancelled.
func (s *Streamer) Stream(ctx context.Context, path string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, s.FFmpegPath, s.Args(path)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	var stderr tail
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	buf := make([]byte, chunkSize)
	_, copyErr := io.CopyBuffer(flushWriter{w}, stdout, buf)
	if copyErr != nil {
		// Client went away; stop ffmpeg before reaping it.
		_ = cmd.Process.Kill()
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case copyErr != nil:
		return copyErr
	case waitErr != nil:
		return fmt.Errorf("%w: %v: %s", ErrMidStream, waitErr, strings.TrimSpace(stderr.String()))
	}
	return nil
}

type flusher interface{ Flush() }

// flushWriter flushes after every chunk so playback starts promptly.
type flushWriter struct{ w io.Writer }

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if fl, ok := f.w.(flusher); ok {
		fl.Flush()
	}
	return n, err
}

type tail struct {
	mu  sync.Mutex
	buf []byte
}

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > 4096 {
		t.buf = t.buf[len(t.buf)-4096:]
	}
	return len(p), nil
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
