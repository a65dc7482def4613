package ytdlp

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/vmunix/reelbox/internal/jobs"
)

// Runner executes URL jobs with a Client.
type Runner struct {
	client *Client
}

// NewRunner returns a jobs.Runner backed by client.
func NewRunner(client *Client) *Runner {
	return &Runner{client: client}
}

// Available implements jobs.Runner.
func (r *Runner) Available() error { return r.client.Available() }

// Validate implements jobs.Validator. Only absolute http(s) URLs are accepted.
func (r *Runner) Validate(sourceKind, value string) error {
	if sourceKind != jobs.SourceURL {
		return fmt.Errorf("%w: unsupported source kind %q", jobs.ErrValidation, sourceKind)
	}
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: not an http(s) url", jobs.ErrValidation)
	}
	return nil
}

// Run implements jobs.Runner. The title is fetched before the download starts
// so the job shows a name while it runs.
func (r *Runner) Run(ctx context.Context, job jobs.Job, rep jobs.Reporter) error {
	title, err := r.client.Title(ctx, job.SourceValue)
	if err != nil {
		return err
	}
	if title == "" {
		title = "Unknown"
	}
	rep.Title(title)

	out := filepath.Join(job.TargetDir, DefaultTemplate)
	return r.client.Download(ctx, job.SourceValue, out, rep.Progress)
}
