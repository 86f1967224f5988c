package catalog

import (
	"database/sql"
	"errors"
	"path/filepath"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/franz/music-minder/internal/util"
)

// Track is a catalog row joined with its artist and album names.
type Track struct {
	ID          int64
	Path        string
	Title       string
	ArtistID    int64
	AlbumID     int64
	Artist      string
	Album       string
	TrackNumber *int
	Year        *int
	DurationMs  int64
	Format      string
	Bitrate     int
	SampleRate  int
	Lossless    bool
	RecordingID string
	ReleaseID   string

	QualityScore     *int
	QualityFlags     int64
	QualityCheckedAt *time.Time
}

// NormalizePath converts a path to its canonical catalog form: absolute,
// cleaned, and NFC-normalized. Two spellings of the same file on a
// decomposed-Unicode filesystem must map to one row.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return norm.NFC.String(abs), nil
}

// UpsertArtist inserts an artist if absent and returns its id either way.
func (s *Store) UpsertArtist(tx *sql.Tx, name string) (int64, error) {
	_, err := tx.Exec(`INSERT INTO artists (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return 0, wrapError("upsert artist", err)
	}
	var id int64
	err = tx.QueryRow(`SELECT id FROM artists WHERE name = ?`, name).Scan(&id)
	if err != nil {
		return 0, wrapError("upsert artist", err)
	}
	return id, nil
}

// UpsertAlbum inserts an album if absent and returns its id. A later upsert
// carrying a year fills one in on a row that had none.
func (s *Store) UpsertAlbum(tx *sql.Tx, title string, artistID int64, year *int) (int64, error) {
	_, err := tx.Exec(`
		INSERT INTO albums (title, artist_id, year) VALUES (?, ?, ?)
		ON CONFLICT(title, artist_id) DO UPDATE SET year = COALESCE(albums.year, excluded.year)
	`, title, artistID, year)
	if err != nil {
		return 0, wrapError("upsert album", err)
	}
	var id int64
	err = tx.QueryRow(`SELECT id FROM albums WHERE title = ? AND artist_id = ?`, title, artistID).Scan(&id)
	if err != nil {
		return 0, wrapError("upsert album", err)
	}
	return id, nil
}

// InsertOrUpdateTrack writes a track keyed on its normalized path, creating
// artist and album rows as needed. The quality columns are left alone on
// update; a metadata change is picked up by the next quality pass.
func (s *Store) InsertOrUpdateTrack(t *Track) (int64, error) {
	path, err := NormalizePath(t.Path)
	if err != nil {
		return 0, wrapError("insert track", err)
	}
	t.Path = path

	var id int64
	err = s.Transaction(func(tx *sql.Tx) error {
		artistID, err := s.UpsertArtist(tx, t.Artist)
		if err != nil {
			return err
		}
		albumID, err := s.UpsertAlbum(tx, t.Album, artistID, t.Year)
		if err != nil {
			return err
		}
		t.ArtistID = artistID
		t.AlbumID = albumID

		_, err = tx.Exec(`
			INSERT INTO tracks (path, title, artist_id, album_id, track_number,
				duration_ms, format, bitrate, sample_rate, lossless,
				recording_id, release_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				title = excluded.title,
				artist_id = excluded.artist_id,
				album_id = excluded.album_id,
				track_number = excluded.track_number,
				duration_ms = excluded.duration_ms,
				format = excluded.format,
				bitrate = excluded.bitrate,
				sample_rate = excluded.sample_rate,
				lossless = excluded.lossless,
				recording_id = CASE WHEN excluded.recording_id != '' THEN excluded.recording_id ELSE tracks.recording_id END,
				release_id = CASE WHEN excluded.release_id != '' THEN excluded.release_id ELSE tracks.release_id END
		`, t.Path, t.Title, artistID, albumID, t.TrackNumber,
			t.DurationMs, t.Format, t.Bitrate, t.SampleRate, t.Lossless,
			t.RecordingID, t.ReleaseID)
		if err != nil {
			return wrapError("insert track", err)
		}

		return tx.QueryRow(`SELECT id FROM tracks WHERE path = ?`, t.Path).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

// UpdateTrackPath moves a track row to a new path after the file itself has
// been relocated.
func (s *Store) UpdateTrackPath(id int64, newPath string) error {
	path, err := NormalizePath(newPath)
	if err != nil {
		return wrapError("update track path", err)
	}
	res, err := s.db.Exec(`UPDATE tracks SET path = ? WHERE id = ?`, path, id)
	if err != nil {
		return wrapError("update track path", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &Error{Kind: KindIo, Op: "update track path", Err: util.ErrNotFound}
	}
	return nil
}

// GetTrackByPath returns the track stored under the given path, or
// util.ErrNotFound wrapped in a catalog error.
func (s *Store) GetTrackByPath(path string) (*Track, error) {
	p, err := NormalizePath(path)
	if err != nil {
		return nil, wrapError("get track", err)
	}
	row := s.db.QueryRow(trackSelect+` WHERE t.path = ?`, p)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Kind: KindIo, Op: "get track", Err: util.ErrNotFound}
	}
	if err != nil {
		return nil, wrapError("get track", err)
	}
	return t, nil
}

// GetTrack returns the track with the given id.
func (s *Store) GetTrack(id int64) (*Track, error) {
	row := s.db.QueryRow(trackSelect+` WHERE t.id = ?`, id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Kind: KindIo, Op: "get track", Err: util.ErrNotFound}
	}
	if err != nil {
		return nil, wrapError("get track", err)
	}
	return t, nil
}

// DeleteTrackByPath removes the track stored under path. Deleting a path
// with no row is not an error.
func (s *Store) DeleteTrackByPath(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return wrapError("delete track", err)
	}
	_, err = s.db.Exec(`DELETE FROM tracks WHERE path = ?`, p)
	if err != nil {
		return wrapError("delete track", err)
	}
	return nil
}

// trackOrder is the stable library sort: artist, album, track number with
// unnumbered tracks last, then title, then path as the final tiebreaker.
const trackOrder = ` ORDER BY ar.name, al.title, t.track_number IS NULL, t.track_number, t.title, t.path`

const trackSelect = `
	SELECT t.id, t.path, t.title, t.artist_id, t.album_id, ar.name, al.title, al.year,
		t.track_number, t.duration_ms, t.format, t.bitrate, t.sample_rate, t.lossless,
		t.recording_id, t.release_id, t.quality_score, t.quality_flags, t.quality_checked_at
	FROM tracks t
	JOIN artists ar ON ar.id = t.artist_id
	JOIN albums al ON al.id = t.album_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*Track, error) {
	var t Track
	var trackNum, year, score sql.NullInt64
	var checkedAt sql.NullTime
	err := row.Scan(&t.ID, &t.Path, &t.Title, &t.ArtistID, &t.AlbumID, &t.Artist, &t.Album, &year,
		&trackNum, &t.DurationMs, &t.Format, &t.Bitrate, &t.SampleRate, &t.Lossless,
		&t.RecordingID, &t.ReleaseID, &score, &t.QualityFlags, &checkedAt)
	if err != nil {
		return nil, err
	}
	if trackNum.Valid {
		n := int(trackNum.Int64)
		t.TrackNumber = &n
	}
	if year.Valid {
		y := int(year.Int64)
		t.Year = &y
	}
	if score.Valid {
		sc := int(score.Int64)
		t.QualityScore = &sc
	}
	if checkedAt.Valid {
		ts := checkedAt.Time
		t.QualityCheckedAt = &ts
	}
	return &t, nil
}

func (s *Store) queryTracks(query string, args ...any) ([]*Track, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapError("query tracks", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, wrapError("query tracks", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("query tracks", err)
	}
	return tracks, nil
}

// GetAllTracks returns every track in the stable library order.
func (s *Store) GetAllTracks() ([]*Track, error) {
	return s.queryTracks(trackSelect + trackOrder)
}

// GetTracksPaginated returns one page of tracks in the stable library
// order. The first page uses FirstPageSize so a large library renders
// quickly while the rest loads behind it.
func (s *Store) GetTracksPaginated(limit, offset int) ([]*Track, error) {
	return s.queryTracks(trackSelect+trackOrder+` LIMIT ? OFFSET ?`, limit, offset)
}

// CountTracks returns the number of tracks in the catalog.
func (s *Store) CountTracks() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&n)
	if err != nil {
		return 0, wrapError("count tracks", err)
	}
	return n, nil
}

// GetAllTrackPaths returns the normalized path of every track. The scanner
// uses it to detect files that disappeared between scans.
func (s *Store) GetAllTrackPaths() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM tracks`)
	if err != nil {
		return nil, wrapError("list track paths", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, wrapError("list track paths", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list track paths", err)
	}
	return paths, nil
}
