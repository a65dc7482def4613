package transcode

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestNeeds(t *testing.T) {
	s := New("", []string{".mkv", "AVI", " "}, "")
	assert.True(t, s.Needs("/media/a.mkv"))
	assert.True(t, s.Needs("/media/a.MKV"))
	assert.True(t, s.Needs("b.avi"))
	assert.False(t, s.Needs("c.mp4"))
	assert.False(t, s.Needs("noext"))
	assert.Equal(t, "ffmpeg", s.FFmpegPath)
	assert.Equal(t, ModeRemux, s.Mode)
}

func TestArgs(t *testing.T) {
	remux := New("", nil, ModeRemux)
	assert.Equal(t, []string{"-i", "/v.mkv", "-c", "copy", "-f", "matroska", "-loglevel", "error", "pipe:1"}, remux.Args("/v.mkv"))
	assert.Equal(t, "video/x-matroska", remux.ContentType())

	encode := New("", nil, ModeEncode)
	args := encode.Args("/v.avi")
	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "aac")
	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.Equal(t, "video/mp4", encode.ContentType())
}

func TestAvailable(t *testing.T) {
	assert.ErrorIs(t, New(filepath.Join(t.TempDir(), "none"), nil, "").Available(), ErrUnavailable)
	assert.NoError(t, New(fakeFFmpeg(t, "#!/bin/sh\n"), nil, "").Available())
}

func TestStream(t *testing.T) {
	bin := fakeFFmpeg(t, "#!/bin/sh\necho \"$@\"\n")
	var out bytes.Buffer
	err := New(bin, nil, ModeRemux).Stream(context.Background(), "/media/v.mkv", &out)
	require.NoError(t, err)
	assert.Equal(t, "-i /media/v.mkv -c copy -f matroska -loglevel error pipe:1\n", out.String())
}

func TestStream_FailureMidStream(t *testing.T) {
	bin := fakeFFmpeg(t, "#!/bin/sh\nprintf partial\necho 'Invalid data found' >&2\nexit 1\n")
	var out bytes.Buffer
	err := New(bin, nil, ModeRemux).Stream(context.Background(), "/media/v.mkv", &out)
	require.ErrorIs(t, err, ErrMidStream)
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.Equal(t, "partial", out.String())
}

func TestStream_MissingBinary(t *testing.T) {
	err := New(filepath.Join(t.TempDir(), "none"), nil, "").Stream(context.Background(), "/v.mkv", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
