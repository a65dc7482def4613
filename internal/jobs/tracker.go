package jobs

import (
	"errors"
	"strings"
	"sync"
)

// tracker is the Reporter handed to a Runner. It owns the task's copy of
// the job and persists changes through the manager's store.
type tracker struct {
	m *Manager

	mu   sync.Mutex
	job  Job
	last float64 // last persisted progress
}

func (t *tracker) snapshot() Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job
}

// save persists the job. Caller holds t.mu. Returns false if the row is gone.
func (t *tracker) save(c Change) bool {
	if err := t.m.store.Update(&t.job); err != nil {
		if errors.Is(err, ErrNotFound) {
			t.m.log.Debug("job row gone", "kind", t.m.kind, "job_id", t.job.ID)
		} else {
			t.m.log.Error("job update failed", "kind", t.m.kind, "job_id", t.job.ID, "error", err)
		}
		return false
	}
	c.Job = t.job
	t.m.emit(c)
	return true
}

func (t *tracker) transition(to Status, errText string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	from := t.job.Status
	t.job.Status = to
	t.job.Error = errText
	return t.save(Change{From: from})
}

func (t *tracker) complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	from := t.job.Status
	t.job.Status = StatusDone
	t.job.Error = ""
	t.job.ProgressPercent = 100
	t.last = 100
	t.save(Change{From: from})
}

func (t *tracker) setVideo(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.VideoID = id
	t.save(Change{From: t.job.Status, Progress: true})
}

// Attach implements Reporter.
func (t *tracker) Attach(h Handle) {
	t.m.attach(t.job.ID, h)
}

// Title implements Reporter.
func (t *tracker) Title(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.DisplayName == name {
		return
	}
	t.job.DisplayName = name
	t.save(Change{From: t.job.Status, Progress: true})
}

// Progress implements Reporter. Writes happen only when progress advances
// by at least one point, or reaches 100.
func (t *tracker) Progress(percent float64) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if percent <= t.job.ProgressPercent && t.last >= 0 {
		return
	}
	if percent-t.last < 1 && percent < 100 {
		return
	}
	t.job.ProgressPercent = percent
	t.last = percent
	t.save(Change{From: t.job.Status, Progress: true})
}
