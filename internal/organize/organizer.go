package organize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/util"
)

// Organizer plans and executes library reorganizations.
type Organizer struct {
	store      *catalog.Store
	journalDir string
}

// New creates an organizer that keeps its undo journal in journalDir.
func New(store *catalog.Store, journalDir string) *Organizer {
	return &Organizer{store: store, journalDir: journalDir}
}

// PlannedMove is one move Execute would perform.
type PlannedMove struct {
	TrackID     int64
	Source      string
	Destination string
}

// Result summarizes an organize run.
type Result struct {
	Moved   int
	Skipped int
	Failed  int
	Errors  []error
}

// Preview computes every move a run would make without touching any file.
// Tracks already at their destination are omitted. When onMove is non-nil
// it is called per move as planning proceeds, so a large library can stream
// into a display.
func (o *Organizer) Preview(ctx context.Context, destRoot, pattern string, onMove func(PlannedMove)) ([]PlannedMove, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	rootAbs, err := filepath.Abs(destRoot)
	if err != nil {
		return nil, err
	}

	tracks, err := o.store.GetAllTracks()
	if err != nil {
		return nil, err
	}

	var moves []PlannedMove
	for _, t := range tracks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		dest := filepath.Join(rootAbs, ExpandPattern(pattern, t))
		if dest == t.Path {
			continue
		}
		move := PlannedMove{TrackID: t.ID, Source: t.Path, Destination: dest}
		moves = append(moves, move)
		if onMove != nil {
			onMove(move)
		}
	}
	return moves, nil
}

// Execute moves every track into the pattern layout under destRoot. Each
// completed move lands in the undo journal immediately, so even a run that
// fails halfway can be rolled back. A failed move is logged and skipped;
// the run continues.
func (o *Organizer) Execute(ctx context.Context, destRoot, pattern string) (*Result, error) {
	moves, err := o.Preview(ctx, destRoot, pattern, nil)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	journal := &Journal{Timestamp: time.Now().UTC()}

	if len(moves) == 0 {
		util.InfoLog("Library already organized, nothing to move")
		return result, nil
	}
	util.InfoLog("Organizing %d files into %s", len(moves), destRoot)

	for _, move := range moves {
		select {
		case <-ctx.Done():
			o.saveJournal(journal)
			return result, ctx.Err()
		default:
		}

		dest, err := o.moveOne(move)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			util.WarnLog("Could not move %s: %v", move.Source, err)
			continue
		}
		journal.Moves = append(journal.Moves, Move{
			TrackID: move.TrackID, Source: move.Source, Destination: dest,
		})
		result.Moved++
	}

	if err := o.saveJournal(journal); err != nil {
		return result, err
	}
	util.SuccessLog("Organized %d files (%d failed)", result.Moved, result.Failed)
	return result, nil
}

// moveOne performs a single move and updates the catalog. Destination
// conflicts get a numbered suffix instead of overwriting.
func (o *Organizer) moveOne(move PlannedMove) (string, error) {
	dest := move.Destination
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	dest = util.UniquePath(dest)

	if err := util.MoveFile(move.Source, dest); err != nil {
		return "", fmt.Errorf("moving %s: %w", move.Source, err)
	}
	if err := o.store.UpdateTrackPath(move.TrackID, dest); err != nil {
		// The file moved but the catalog did not; move it back rather than
		// leave the two out of step.
		if undoErr := util.MoveFile(dest, move.Source); undoErr != nil {
			return "", fmt.Errorf("updating catalog for %s (and rollback failed: %v): %w", dest, undoErr, err)
		}
		return "", fmt.Errorf("updating catalog for %s: %w", dest, err)
	}
	return dest, nil
}

func (o *Organizer) saveJournal(j *Journal) error {
	if len(j.Moves) == 0 {
		return nil
	}
	if err := SaveJournal(o.journalDir, j); err != nil {
		return fmt.Errorf("saving undo journal: %w", err)
	}
	return nil
}

// HasUndo reports whether the last organize run can be rolled back.
func (o *Organizer) HasUndo() bool {
	return HasUndo(o.journalDir)
}

// Undo rolls back the journaled run, newest move first, and prunes the
// directories the run emptied. Moves that fail to roll back stay in the
// journal for another attempt.
func (o *Organizer) Undo(ctx context.Context) (*Result, error) {
	journal, err := LoadJournal(o.journalDir)
	if err != nil {
		return nil, fmt.Errorf("reading undo journal: %w", err)
	}
	if journal == nil || len(journal.Moves) == 0 {
		return nil, fmt.Errorf("nothing to undo: %w", util.ErrNotFound)
	}

	util.InfoLog("Undoing %d moves from %s", len(journal.Moves), journal.Timestamp.Format(time.RFC3339))
	result := &Result{}
	var remaining []Move

	for i := len(journal.Moves) - 1; i >= 0; i-- {
		move := journal.Moves[i]

		select {
		case <-ctx.Done():
			remaining = append(remaining, journal.Moves[:i+1]...)
			o.persistRemaining(journal, remaining)
			return result, ctx.Err()
		default:
		}

		if err := o.undoOne(move); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			util.WarnLog("Could not undo move of %s: %v", move.Destination, err)
			remaining = append(remaining, move)
			continue
		}
		result.Moved++
	}

	o.persistRemaining(journal, remaining)
	util.SuccessLog("Undid %d moves (%d failed)", result.Moved, result.Failed)
	return result, nil
}

func (o *Organizer) undoOne(move Move) error {
	if err := os.MkdirAll(filepath.Dir(move.Source), 0o755); err != nil {
		return err
	}
	if err := util.MoveFile(move.Destination, move.Source); err != nil {
		return err
	}
	if err := o.store.UpdateTrackPath(move.TrackID, move.Source); err != nil {
		util.WarnLog("File restored but catalog update failed for %s: %v", move.Source, err)
	}
	util.RemoveEmptyDirs(filepath.Dir(move.Destination))
	return nil
}

func (o *Organizer) persistRemaining(journal *Journal, remaining []Move) {
	if len(remaining) == 0 {
		if err := ClearJournal(o.journalDir); err != nil {
			util.WarnLog("Could not clear undo journal: %v", err)
		}
		return
	}
	journal.Moves = remaining
	if err := SaveJournal(o.journalDir, journal); err != nil {
		util.WarnLog("Could not update undo journal: %v", err)
	}
}
