package jobs

import (
	"database/sql"
	"fmt"
	"time"
)

// dialect maps the common Job shape onto a kind's table.
type dialect struct {
	table    string
	kindExpr string // select expression yielding the source kind
	valueCol string
	kindCol  string // empty when the table has no source_kind column
}

var dialects = map[Kind]dialect{
	KindTorrent: {table: "downloads", kindExpr: "source_kind", valueCol: "source_value", kindCol: "source_kind"},
	KindURL:     {table: "youtube_downloads", kindExpr: "'url'", valueCol: "url"},
}

// DefaultListLimit caps List results.
const DefaultListLimit = 100

// Store persists jobs of one kind.
type Store struct {
	db   *sql.DB
	kind Kind
	d    dialect
}

// NewStore creates a job store for kind.
func NewStore(db *sql.DB, kind Kind) *Store {
	d, ok := dialects[kind]
	if !ok {
		panic(fmt.Sprintf("jobs: unknown kind %q", kind))
	}
	return &Store{db: db, kind: kind, d: d}
}

func (s *Store) selectSQL() string {
	return fmt.Sprintf(`SELECT id, %s, %s, source_id, source_label, target_dir, status,
		error, display_name, progress_percent, video_id, created_at, updated_at
		FROM %s`, s.d.kindExpr, s.d.valueCol, s.d.table)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(r rowScanner) (*Job, error) {
	j := &Job{Kind: s.kind}
	var errText, name, videoID sql.NullString
	if err := r.Scan(&j.ID, &j.SourceKind, &j.SourceValue, &j.SourceID, &j.SourceLabel, &j.TargetDir, &j.Status,
		&errText, &name, &j.ProgressPercent, &videoID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Error = errText.String
	j.DisplayName = name.String
	j.VideoID = videoID.String
	return j, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts a new job. CreatedAt and UpdatedAt are set on j.
func (s *Store) Create(j *Job) error {
	now := time.Now().UTC()
	j.Kind = s.kind
	j.CreatedAt, j.UpdatedAt = now, now

	cols := "id, " + s.d.valueCol
	vals := "?, ?"
	args := []any{j.ID, j.SourceValue}
	if s.d.kindCol != "" {
		cols += ", " + s.d.kindCol
		vals += ", ?"
		args = append(args, j.SourceKind)
	}
	cols += ", source_id, source_label, target_dir, status, error, display_name, progress_percent, video_id, created_at, updated_at"
	vals += ", ?, ?, ?, ?, ?, ?, ?, ?, ?, ?"
	args = append(args, j.SourceID, j.SourceLabel, j.TargetDir, j.Status,
		nullable(j.Error), nullable(j.DisplayName), j.ProgressPercent, nullable(j.VideoID), now, now)

	if _, err := s.db.Exec(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, s.d.table, cols, vals), args...); err != nil {
		return fmt.Errorf("insert %s job: %w", s.kind, err)
	}
	return nil
}

// Get retrieves a job by id.
// Returns ErrNotFound if the job does not exist.
func (s *Store) Get(id string) (*Job, error) {
	j, err := s.scan(s.db.QueryRow(s.selectSQL()+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get %s job %s: %w", s.kind, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s job %s: %w", s.kind, id, err)
	}
	return j, nil
}

// List returns the newest jobs first, at most limit (DefaultListLimit if <= 0).
func (s *Store) List(limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.Query(s.selectSQL()+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", s.kind, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Job
	for rows.Next() {
		j, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s job: %w", s.kind, err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Update writes the mutable fields of j and refreshes UpdatedAt.
// Returns ErrNotFound if the row was deleted.
func (s *Store) Update(j *Job) error {
	now := time.Now().UTC()
	result, err := s.db.Exec(fmt.Sprintf(`
		UPDATE %s SET status = ?, error = ?, display_name = ?, progress_percent = ?, video_id = ?, updated_at = ?
		WHERE id = ?`, s.d.table),
		j.Status, nullable(j.Error), nullable(j.DisplayName), j.ProgressPercent, nullable(j.VideoID), now, j.ID,
	)
	if err != nil {
		return fmt.Errorf("update %s job %s: %w", s.kind, j.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update %s job %s: %w", s.kind, j.ID, ErrNotFound)
	}
	j.UpdatedAt = now
	return nil
}

// Delete removes a job row.
// Returns ErrNotFound if the job does not exist.
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.d.table), id)
	if err != nil {
		return fmt.Errorf("delete %s job %s: %w", s.kind, id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete %s job %s: %w", s.kind, id, ErrNotFound)
	}
	return nil
}

// InterruptedError is the message recorded on jobs orphaned by a restart.
const InterruptedError = "interrupted by restart"

// MarkInterrupted fails every queued or downloading job. Called at startup,
// when no task can still own them.
func (s *Store) MarkInterrupted() (int64, error) {
	result, err := s.db.Exec(fmt.Sprintf(`
		UPDATE %s SET status = ?, error = ?, updated_at = ?
		WHERE status IN (?, ?)`, s.d.table),
		StatusFailed, InterruptedError, time.Now().UTC(), StatusQueued, StatusDownloading,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted %s jobs: %w", s.kind, err)
	}
	return result.RowsAffected()
}
