package library

import (
	"fmt"
	"math"
	"time"
)

func getProgress(q querier, videoID string) (*Progress, error) {
	p := &Progress{}
	err := q.QueryRow(`SELECT video_id, position_seconds, updated_at FROM progress WHERE video_id = ?`, videoID).
		Scan(&p.VideoID, &p.PositionSeconds, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get progress %s: %w", videoID, mapSQLiteError(err))
	}
	return p, nil
}

// GetProgress returns the saved position for a video.
// Returns ErrNotFound if no position has been saved.
func (s *Store) GetProgress(videoID string) (*Progress, error) { return getProgress(s.db, videoID) }

func setProgress(q querier, videoID string, seconds float64) (*Progress, error) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	p := &Progress{VideoID: videoID, PositionSeconds: seconds, UpdatedAt: time.Now().UTC()}
	_, err := q.Exec(`
		INSERT INTO progress (video_id, position_seconds, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			position_seconds = excluded.position_seconds,
			updated_at = excluded.updated_at`,
		p.VideoID, p.PositionSeconds, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("set progress %s: %w", videoID, mapSQLiteError(err))
	}
	return p, nil
}

// SetProgress records a playback position. Negative and non-finite values
// are stored as zero.
// Returns ErrConstraint if the video does not exist.
func (s *Store) SetProgress(videoID string, seconds float64) (*Progress, error) {
	return setProgress(s.db, videoID, seconds)
}

func copyProgress(q querier, fromID, toID string) error {
	_, err := q.Exec(`
		INSERT INTO progress (video_id, position_seconds, updated_at)
		SELECT ?, position_seconds, updated_at FROM progress WHERE video_id = ?
		ON CONFLICT(video_id) DO UPDATE SET
			position_seconds = excluded.position_seconds,
			updated_at = excluded.updated_at`,
		toID, fromID,
	)
	if err != nil {
		return fmt.Errorf("copy progress %s -> %s: %w", fromID, toID, mapSQLiteError(err))
	}
	return nil
}

// CopyProgress copies the saved position of fromID onto toID, if any.
func (t *Tx) CopyProgress(fromID, toID string) error { return copyProgress(t.tx, fromID, toID) }
