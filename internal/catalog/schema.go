package catalog

// schemaV1 contains the core catalog tables: artists, albums, tracks, and
// per-file health rows.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS artists (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS albums (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    artist_id INTEGER NOT NULL REFERENCES artists(id),
    year INTEGER,
    UNIQUE(title, artist_id)
);

CREATE TABLE IF NOT EXISTS tracks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    artist_id INTEGER NOT NULL REFERENCES artists(id),
    album_id INTEGER NOT NULL REFERENCES albums(id),
    track_number INTEGER,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    format TEXT NOT NULL DEFAULT '',
    bitrate INTEGER NOT NULL DEFAULT 0,
    sample_rate INTEGER NOT NULL DEFAULT 0,
    lossless INTEGER NOT NULL DEFAULT 0,
    recording_id TEXT NOT NULL DEFAULT '',
    release_id TEXT NOT NULL DEFAULT '',
    added_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS file_health (
    path TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    checked_at DATETIME NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    recording_id TEXT NOT NULL DEFAULT '',
    error_kind TEXT NOT NULL DEFAULT '',
    error_detail TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist_id);
CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album_id);
CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist_id);
CREATE INDEX IF NOT EXISTS idx_file_health_status ON file_health(status);
`

// schemaV2 adds metadata quality tracking to tracks. Existing rows get NULL
// quality_score, which marks them as never assessed.
const schemaV2 = `
ALTER TABLE tracks ADD COLUMN quality_score INTEGER;
ALTER TABLE tracks ADD COLUMN quality_flags INTEGER NOT NULL DEFAULT 0;
ALTER TABLE tracks ADD COLUMN quality_checked_at DATETIME;

CREATE INDEX IF NOT EXISTS idx_tracks_quality ON tracks(quality_score);
`

// schemaV3 adds the file's size and modification time to health rows, so a
// changed file can be told apart from a stale recognition result.
const schemaV3 = `
ALTER TABLE file_health ADD COLUMN file_size INTEGER;
ALTER TABLE file_health ADD COLUMN mtime DATETIME;
`
