// Package ytdlp drives the yt-dlp command-line downloader.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

const (
	DefaultPath     = "yt-dlp"
	DefaultFormat   = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	DefaultTemplate = "%(title)s.%(ext)s"
)

// ErrNotInstalled is returned when the yt-dlp binary cannot be found.
var ErrNotInstalled = errors.New("yt-dlp is not installed or not on PATH")

var progressRe = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)

// Client runs yt-dlp.
type Client struct {
	Path   string
	Format string
}

// New returns a Client, filling in defaults for empty fields.
func New(path, format string) *Client {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	if strings.TrimSpace(format) == "" {
		format = DefaultFormat
	}
	return &Client{Path: path, Format: format}
}

// Available reports whether the binary can be executed.
func (c *Client) Available() error {
	if _, err := exec.LookPath(c.Path); err != nil {
		return ErrNotInstalled
	}
	return nil
}

// Title fetches the video's title without downloading it.
func (c *Client) Title(ctx context.Context, url string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Path, "-J", "--no-playlist", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	var info struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return "", fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	return strings.TrimSpace(info.Title), nil
}

// Download fetches url to outTemplate, reporting percent complete through
// progress as yt-dlp prints it.
func (c *Client) Download(ctx context.Context, url, outTemplate string, progress func(float64)) error {
	args := []string{
		"--no-playlist",
		"--newline",
		"-f", c.Format,
		"-o", outTemplate,
		url,
	}
	cmd := exec.CommandContext(ctx, c.Path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	var stderr tailBuffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitByNewlineOrCR)
	for scanner.Scan() {
		if p, ok := ParseProgress(scanner.Text()); ok && progress != nil {
			progress(p)
		}
	}
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return fmt.Errorf("yt-dlp failed: %w: %s", err, tail)
		}
		return fmt.Errorf("yt-dlp failed: %w", err)
	}
	return nil
}

// ParseProgress extracts the percentage from a "[download]  42.1% of ..." line.
func ParseProgress(line string) (float64, bool) {
	m := progressRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}
	p, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last maxTail bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

const maxTail = 8192

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > maxTail {
		b.buf = b.buf[len(b.buf)-maxTail:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
