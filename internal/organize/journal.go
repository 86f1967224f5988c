package organize

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/franz/music-minder/internal/util"
)

const journalName = "undo.json"

// Move records one completed file move for undo.
type Move struct {
	TrackID     int64  `json:"track_id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Journal is the record of the last organize run. Only one level of undo is
// kept; a new run overwrites it.
type Journal struct {
	Timestamp time.Time `json:"timestamp"`
	Moves     []Move    `json:"moves"`
}

func journalPath(dir string) string {
	return filepath.Join(dir, journalName)
}

// LoadJournal reads the undo journal from dir. A missing journal returns
// (nil, nil).
func LoadJournal(dir string) (*Journal, error) {
	data, err := os.ReadFile(journalPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// SaveJournal writes the journal atomically so a crash mid-write never
// leaves a corrupt undo record.
func SaveJournal(dir string, j *Journal) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(journalPath(dir), data, 0o644)
}

// ClearJournal removes the undo journal, if present.
func ClearJournal(dir string) error {
	err := os.Remove(journalPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// HasUndo reports whether an organize run can be undone.
func HasUndo(dir string) bool {
	info, err := os.Stat(journalPath(dir))
	return err == nil && !info.IsDir()
}
