package library

import (
	"fmt"
	"time"
)

const videoColumns = `id, source_id, source_label, rel_path, abs_path, title, size, mtime`

func upsertVideo(q querier, v *Video) error {
	_, err := q.Exec(`
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			source_label = excluded.source_label,
			rel_path = excluded.rel_path,
			abs_path = excluded.abs_path,
			title = excluded.title,
			size = excluded.size,
			mtime = excluded.mtime`,
		v.ID, v.SourceID, v.SourceLabel, v.RelPath, v.AbsPath, v.Title, v.Size, v.ModTime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", v.ID, mapSQLiteError(err))
	}
	return nil
}

// UpsertVideo inserts the video or refreshes its mutable fields.
func (s *Store) UpsertVideo(v *Video) error { return upsertVideo(s.db, v) }

// UpsertVideo inserts the video or refreshes its mutable fields within a transaction.
func (t *Tx) UpsertVideo(v *Video) error { return upsertVideo(t.tx, v) }

func insertVideo(q querier, v *Video) error {
	_, err := q.Exec(`INSERT INTO videos (`+videoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.SourceID, v.SourceLabel, v.RelPath, v.AbsPath, v.Title, v.Size, v.ModTime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert video %s: %w", v.ID, mapSQLiteError(err))
	}
	return nil
}

// InsertVideo inserts a new video. Returns ErrDuplicate if the id exists.
func (t *Tx) InsertVideo(v *Video) error { return insertVideo(t.tx, v) }

func getVideo(q querier, id string) (*Video, error) {
	v := &Video{}
	err := q.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id).
		Scan(&v.ID, &v.SourceID, &v.SourceLabel, &v.RelPath, &v.AbsPath, &v.Title, &v.Size, &v.ModTime)
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", id, mapSQLiteError(err))
	}
	return v, nil
}

// GetVideo retrieves a video by id.
// Returns ErrNotFound if the video does not exist.
func (s *Store) GetVideo(id string) (*Video, error) { return getVideo(s.db, id) }

// GetVideo retrieves a video by id within a transaction.
func (t *Tx) GetVideo(id string) (*Video, error) { return getVideo(t.tx, id) }

func listVideos(q querier) ([]*Entry, error) {
	rows, err := q.Query(`
		SELECT v.id, v.source_id, v.source_label, v.rel_path, v.abs_path, v.title, v.size, v.mtime,
			COALESCE(p.position_seconds, 0.0), p.updated_at
		FROM videos v
		LEFT JOIN progress p ON p.video_id = v.id
		ORDER BY v.source_label, v.rel_path`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var updated *time.Time
		if err := rows.Scan(&e.ID, &e.SourceID, &e.SourceLabel, &e.RelPath, &e.AbsPath, &e.Title, &e.Size, &e.ModTime,
			&e.PositionSeconds, &updated); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		e.ProgressUpdatedAt = updated
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return entries, nil
}

// ListVideos returns every video with its progress, ordered by source label then path.
func (s *Store) ListVideos() ([]*Entry, error) { return listVideos(s.db) }

func listVideoIDs(q querier) (map[string]*Video, error) {
	rows, err := q.Query(`SELECT ` + videoColumns + ` FROM videos`)
	if err != nil {
		return nil, fmt.Errorf("list video ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]*Video)
	for rows.Next() {
		v := &Video{}
		if err := rows.Scan(&v.ID, &v.SourceID, &v.SourceLabel, &v.RelPath, &v.AbsPath, &v.Title, &v.Size, &v.ModTime); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}

// VideosByID returns all catalog rows keyed by id within a transaction.
func (t *Tx) VideosByID() (map[string]*Video, error) { return listVideoIDs(t.tx) }

func deleteVideo(q querier, id string) error {
	result, err := q.Exec(`DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete video %s: %w", id, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete video %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteVideo removes a video and, by cascade, its progress.
// Returns ErrNotFound if the video does not exist.
func (s *Store) DeleteVideo(id string) error { return deleteVideo(s.db, id) }

// DeleteVideo removes a video within a transaction.
func (t *Tx) DeleteVideo(id string) error { return deleteVideo(t.tx, id) }

func countVideos(q querier) (int, error) {
	var n int
	if err := q.QueryRow(`SELECT COUNT(*) FROM videos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return n, nil
}

// CountVideos returns the number of catalog rows.
func (s *Store) CountVideos() (int, error) { return countVideos(s.db) }
