package torrent

import "time"

// SetPollIntervals shortens the runner's polling for tests.
func (r *Runner) SetPollIntervals(metadata, status time.Duration) {
	r.metadataPoll = metadata
	r.statusPoll = status
}
