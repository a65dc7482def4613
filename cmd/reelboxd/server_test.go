package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelbox/internal/events"
	"github.com/vmunix/reelbox/internal/jobs"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestPublishJobChange(t *testing.T) {
	bus := events.NewBus(nil, nil)
	defer func() { _ = bus.Close() }()
	ch := bus.SubscribeAll(4)

	publish := publishJobChange(bus)
	job := jobs.Job{
		ID:              "j1",
		Kind:            jobs.KindURL,
		Status:          jobs.StatusDone,
		DisplayName:     "Some Clip",
		ProgressPercent: 100,
		VideoID:         "0123456789abcdef",
	}

	publish(jobs.Change{Job: job, Progress: true})
	e := <-ch
	require.Equal(t, events.EventJobProgress, e.EventType())
	progressed, ok := e.(*events.JobProgressed)
	require.True(t, ok)
	assert.InDelta(t, 100.0, progressed.Percent, 0.001)
	assert.Equal(t, "url", e.EntityType())
	assert.Equal(t, "j1", e.EntityID())

	publish(jobs.Change{Job: job, From: jobs.StatusDownloading})
	e = <-ch
	require.Equal(t, events.EventJobStatus, e.EventType())
	changed, ok := e.(*events.JobStatusChanged)
	require.True(t, ok)
	assert.Equal(t, "done", changed.Status)
	assert.Equal(t, "Some Clip", changed.Title)
	assert.Equal(t, "0123456789abcdef", changed.VideoID)
}
