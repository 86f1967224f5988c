package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/franz/music-minder/internal/util"
)

// HealthStatus is the recognition outcome recorded for a file.
type HealthStatus string

const (
	// HealthOK means the file was fingerprinted and matched a recording.
	HealthOK HealthStatus = "ok"
	// HealthNoMatch means fingerprinting worked but nothing matched with
	// enough confidence.
	HealthNoMatch HealthStatus = "no_match"
	// HealthError means the file could not be processed at all.
	HealthError HealthStatus = "error"
)

// FileHealth is the per-file record of the last recognition attempt.
// Confidence and RecordingID are only meaningful for HealthOK rows;
// ErrorKind and ErrorDetail only for HealthError rows.
type FileHealth struct {
	Path        string
	Status      HealthStatus
	CheckedAt   time.Time
	Confidence  float64
	RecordingID string
	ErrorKind   string
	ErrorDetail string

	// FileSize and ModTime capture the file as it was when checked, so a
	// later scan can tell a changed file from a stale result. Nil when the
	// caller did not stat the file.
	FileSize *int64
	ModTime  *time.Time
}

// HealthSummary counts files per recognition status.
type HealthSummary struct {
	Total   int
	OK      int
	NoMatch int
	Errors  int
}

// UpsertFileHealth records the outcome of a recognition attempt, replacing
// any earlier row for the same path.
func (s *Store) UpsertFileHealth(h *FileHealth) error {
	if err := validateHealth(h); err != nil {
		return err
	}
	path, err := NormalizePath(h.Path)
	if err != nil {
		return wrapError("upsert file health", err)
	}
	if h.CheckedAt.IsZero() {
		h.CheckedAt = time.Now().UTC()
	}
	_, err = s.db.Exec(`
		INSERT INTO file_health (path, status, checked_at, confidence, recording_id, error_kind, error_detail, file_size, mtime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			status = excluded.status,
			checked_at = excluded.checked_at,
			confidence = excluded.confidence,
			recording_id = excluded.recording_id,
			error_kind = excluded.error_kind,
			error_detail = excluded.error_detail,
			file_size = excluded.file_size,
			mtime = excluded.mtime
	`, path, h.Status, h.CheckedAt, h.Confidence, h.RecordingID, h.ErrorKind, h.ErrorDetail, h.FileSize, h.ModTime)
	if err != nil {
		return wrapError("upsert file health", err)
	}
	return nil
}

// validateHealth rejects rows that mix fields across statuses.
func validateHealth(h *FileHealth) error {
	switch h.Status {
	case HealthOK:
		if h.ErrorKind != "" || h.ErrorDetail != "" {
			return fmt.Errorf("ok health row must not carry error fields: %w", util.ErrInvalidConfig)
		}
	case HealthNoMatch:
		if h.Confidence != 0 || h.RecordingID != "" || h.ErrorKind != "" {
			return fmt.Errorf("no-match health row must not carry match or error fields: %w", util.ErrInvalidConfig)
		}
	case HealthError:
		if h.ErrorKind == "" {
			return fmt.Errorf("error health row must name an error kind: %w", util.ErrInvalidConfig)
		}
		if h.Confidence != 0 || h.RecordingID != "" {
			return fmt.Errorf("error health row must not carry match fields: %w", util.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("unknown health status %q: %w", h.Status, util.ErrInvalidConfig)
	}
	return nil
}

// GetFileHealth returns the health row for a path.
func (s *Store) GetFileHealth(path string) (*FileHealth, error) {
	p, err := NormalizePath(path)
	if err != nil {
		return nil, wrapError("get file health", err)
	}
	var h FileHealth
	err = s.db.QueryRow(`
		SELECT path, status, checked_at, confidence, recording_id, error_kind, error_detail, file_size, mtime
		FROM file_health WHERE path = ?`, p).
		Scan(&h.Path, &h.Status, &h.CheckedAt, &h.Confidence, &h.RecordingID, &h.ErrorKind, &h.ErrorDetail, &h.FileSize, &h.ModTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Kind: KindIo, Op: "get file health", Err: util.ErrNotFound}
	}
	if err != nil {
		return nil, wrapError("get file health", err)
	}
	return &h, nil
}

// ListFileHealth returns all health rows with the given status, most
// recently checked first.
func (s *Store) ListFileHealth(status HealthStatus) ([]*FileHealth, error) {
	rows, err := s.db.Query(`
		SELECT path, status, checked_at, confidence, recording_id, error_kind, error_detail, file_size, mtime
		FROM file_health WHERE status = ? ORDER BY checked_at DESC`, status)
	if err != nil {
		return nil, wrapError("list file health", err)
	}
	defer rows.Close()

	var out []*FileHealth
	for rows.Next() {
		var h FileHealth
		if err := rows.Scan(&h.Path, &h.Status, &h.CheckedAt, &h.Confidence,
			&h.RecordingID, &h.ErrorKind, &h.ErrorDetail, &h.FileSize, &h.ModTime); err != nil {
			return nil, wrapError("list file health", err)
		}
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list file health", err)
	}
	return out, nil
}

// GetHealthSummary counts health rows by status.
func (s *Store) GetHealthSummary() (*HealthSummary, error) {
	sum := &HealthSummary{}
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(status = 'ok'), 0),
			COALESCE(SUM(status = 'no_match'), 0),
			COALESCE(SUM(status = 'error'), 0)
		FROM file_health
	`).Scan(&sum.Total, &sum.OK, &sum.NoMatch, &sum.Errors)
	if err != nil {
		return nil, wrapError("health summary", err)
	}
	return sum, nil
}

// DeleteFileHealth removes the health row for a path, if any.
func (s *Store) DeleteFileHealth(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return wrapError("delete file health", err)
	}
	_, err = s.db.Exec(`DELETE FROM file_health WHERE path = ?`, p)
	if err != nil {
		return wrapError("delete file health", err)
	}
	return nil
}
