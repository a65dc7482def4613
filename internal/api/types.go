package api

import (
	"time"

	"github.com/vmunix/reelbox/internal/events"
	"github.com/vmunix/reelbox/internal/jobs"
	"github.com/vmunix/reelbox/internal/library"
)

// SourceResponse is the API representation of a library source.
type SourceResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// VideoResponse is the API representation of a catalog entry.
type VideoResponse struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	SourceID          string     `json:"source_id"`
	SourceLabel       string     `json:"source_label"`
	RelPath           string     `json:"rel_path"`
	Size              int64      `json:"size"`
	ModifiedAt        time.Time  `json:"modified_at"`
	PositionSeconds   float64    `json:"position_seconds"`
	ProgressUpdatedAt *time.Time `json:"progress_updated_at,omitempty"`
}

type listVideosResponse struct {
	Items []VideoResponse `json:"items"`
	Total int             `json:"total"`
}

// ProgressResponse is a saved playback position.
type ProgressResponse struct {
	VideoID         string     `json:"video_id"`
	PositionSeconds float64    `json:"position_seconds"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type progressRequest struct {
	PositionSeconds *float64 `json:"position_seconds"`
}

type moveRequest struct {
	TargetSourceID string `json:"target_source_id"`
	TargetRelPath  string `json:"target_rel_path"`
}

// BrowseEntryResponse is one item of a directory listing.
type BrowseEntryResponse struct {
	Name    string `json:"name"`
	RelPath string `json:"rel_path"`
	IsDir   bool   `json:"is_dir"`
	Size    int64  `json:"size,omitempty"`
	VideoID string `json:"video_id,omitempty"`
}

type browseResponse struct {
	SourceID string                `json:"source_id"`
	Path     string                `json:"path"`
	Items    []BrowseEntryResponse `json:"items"`
}

// ScanResponse summarizes a rescan.
type ScanResponse struct {
	Seen       int   `json:"seen"`
	Added      int   `json:"added"`
	Removed    int   `json:"removed"`
	DurationMS int64 `json:"duration_ms"`
}

// JobResponse is the API representation of a download job.
type JobResponse struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	SourceKind      string    `json:"source_kind"`
	Source          string    `json:"source"`
	SourceID        string    `json:"source_id"`
	SourceLabel     string    `json:"source_label"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	Title           string    `json:"title,omitempty"`
	ProgressPercent float64   `json:"progress_percent"`
	VideoID         string    `json:"video_id,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type listJobsResponse struct {
	Items []JobResponse `json:"items"`
	Total int           `json:"total"`
}

// jobsMeta tells clients whether jobs can start and where they may land.
type jobsMeta struct {
	Enabled bool             `json:"enabled"`
	Error   string           `json:"error,omitempty"`
	Sources []SourceResponse `json:"sources"`
}

type startRequest struct {
	Magnet   string `json:"magnet"`
	URL      string `json:"url"`
	SourceID string `json:"source_id"`
	Subdir   string `json:"subdir"`
}

type sourceRequest struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	Path            string `json:"path"`
	CreateIfMissing bool   `json:"create_if_missing"`
}

type playerRequest struct {
	SeekTime int `json:"seek_time"`
}

type pasteRequest struct {
	Content    string `json:"content"`
	TTLMinutes int    `json:"ttl_minutes"`
}

// EventResponse is a persisted event.
type EventResponse struct {
	ID         int64  `json:"id"`
	EventType  string `json:"event_type"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Payload    string `json:"payload"`
	Data       any    `json:"data,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

type listEventsResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
}

func sourceToResponse(s library.Source) SourceResponse {
	return SourceResponse{ID: s.ID, Label: s.Label}
}

func videoToResponse(v *library.Video) VideoResponse {
	return VideoResponse{
		ID:          v.ID,
		Title:       v.Title,
		SourceID:    v.SourceID,
		SourceLabel: v.SourceLabel,
		RelPath:     v.RelPath,
		Size:        v.Size,
		ModifiedAt:  v.ModTime,
	}
}

func entryToResponse(e *library.Entry) VideoResponse {
	resp := videoToResponse(&e.Video)
	resp.PositionSeconds = e.PositionSeconds
	resp.ProgressUpdatedAt = e.ProgressUpdatedAt
	return resp
}

func progressToResponse(p *library.Progress) ProgressResponse {
	resp := ProgressResponse{VideoID: p.VideoID, PositionSeconds: p.PositionSeconds}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

func jobToResponse(j *jobs.Job, active bool) JobResponse {
	return JobResponse{
		ID:              j.ID,
		Kind:            string(j.Kind),
		SourceKind:      j.SourceKind,
		Source:          j.SourceValue,
		SourceID:        j.SourceID,
		SourceLabel:     j.SourceLabel,
		Status:          string(j.Status),
		Error:           j.Error,
		Title:           j.DisplayName,
		ProgressPercent: j.ProgressPercent,
		VideoID:         j.VideoID,
		Active:          active,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

func eventToResponse(e events.RawEvent) EventResponse {
	return EventResponse{
		ID:         e.ID,
		EventType:  e.EventType,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Payload:    e.Payload,
		OccurredAt: e.OccurredAt.Format(time.RFC3339),
	}
}
