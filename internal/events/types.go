package events

// Entity types
const (
	EntityLibrary = "library"
	EntityVideo   = "video"
)

// Event type constants
const (
	EventScanCompleted = "scan.completed"
	EventVideoMoved    = "video.moved"
	EventVideoDeleted  = "video.deleted"
	EventJobStatus     = "job.status"
	EventJobProgress   = "job.progress"
)

// ScanCompleted is emitted after the catalog is reconciled with disk.
type ScanCompleted struct {
	BaseEvent
	Seen       int   `json:"seen"`
	Added      int   `json:"added"`
	Removed    int   `json:"removed"`
	DurationMS int64 `json:"duration_ms"`
}

// VideoMoved is emitted when a video is renamed or moved between sources.
type VideoMoved struct {
	BaseEvent
	NewID    string `json:"new_id"`
	SourceID string `json:"source_id"`
	RelPath  string `json:"rel_path"`
}

// VideoDeleted is emitted when a video file is removed through the API.
type VideoDeleted struct {
	BaseEvent
	RelPath string `json:"rel_path"`
}

// JobStatusChanged is emitted when a download job changes status.
// The entity type is the job kind.
type JobStatusChanged struct {
	BaseEvent
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Title   string `json:"title,omitempty"`
	VideoID string `json:"video_id,omitempty"`
}

// JobProgressed is emitted when a job's persisted progress advances.
type JobProgressed struct {
	BaseEvent
	Percent float64 `json:"percent"`
}
