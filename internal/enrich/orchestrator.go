// Package enrich drives the recognition pipeline: fingerprint a file, look
// it up on AcoustID, optionally deepen the match through MusicBrainz, write
// tags back, warm the cover cache, and record per-file health.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/franz/music-minder/internal/acoustid"
	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/coverart"
	"github.com/franz/music-minder/internal/fingerprint"
	"github.com/franz/music-minder/internal/meta"
	"github.com/franz/music-minder/internal/musicbrainz"
	"github.com/franz/music-minder/internal/util"
)

// minPace is the floor on time between items. The remote services this
// pipeline leans on are shared infrastructure run on donations.
const minPace = 500 * time.Millisecond

// Options configures a batch run.
type Options struct {
	// WriteTags writes identified metadata back into the files.
	WriteTags bool
	// OnlyFillEmpty protects existing tag values when writing.
	OnlyFillEmpty bool
	// MinConfidence gates matches; defaults to acoustid.DefaultMinConfidence.
	MinConfidence float64
	// Pace is the delay between items; values below the service-friendly
	// floor are raised to it.
	Pace time.Duration
}

// Outcome classifies what happened to one file.
type Outcome int

const (
	OutcomeMatched Outcome = iota
	OutcomeNoMatch
	OutcomeError
)

// Error kinds recorded in file health rows.
const (
	errKindEmptyFingerprint = "empty_fingerprint"
	errKindDecode           = "decode_error"
	errKindOther            = "other"
)

// ItemResult is the outcome for a single file.
type ItemResult struct {
	Path    string
	Outcome Outcome
	Match   *acoustid.Match
	Err     error
}

// Progress is a snapshot sent to the progress callback after every item.
type Progress struct {
	BatchID   string
	Current   string
	Processed int
	Total     int
	Matched   int
	NoMatch   int
	Failed    int
}

// Result summarizes a batch.
type Result struct {
	BatchID string
	Items   []ItemResult
	Matched int
	NoMatch int
	Failed  int
}

// Orchestrator runs enrichment batches.
type Orchestrator struct {
	store    *catalog.Store
	acoustID *acoustid.Client
	mb       *musicbrainz.Client
	covers   *coverart.Resolver
	opts     Options

	// fingerprinter is swappable for tests; fpcalc needs real audio.
	fingerprinter func(context.Context, string) (*fingerprint.Fingerprint, error)
	toolCheck     func() bool
}

// New creates an orchestrator. The MusicBrainz client and cover resolver
// are optional; without them matches are applied from AcoustID data alone
// and no covers are prefetched.
func New(store *catalog.Store, ac *acoustid.Client, mb *musicbrainz.Client, covers *coverart.Resolver, opts Options) *Orchestrator {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = acoustid.DefaultMinConfidence
	}
	if opts.Pace < minPace {
		opts.Pace = minPace
	}
	return &Orchestrator{
		store:         store,
		acoustID:      ac,
		mb:            mb,
		covers:        covers,
		opts:          opts,
		fingerprinter: fingerprint.Generate,
		toolCheck:     fingerprint.Available,
	}
}

// Run enriches the given files. A missing fpcalc fails the whole batch up
// front; per-file failures are recorded and the batch continues. Items are
// paced so the batch never hammers the remote services.
func (o *Orchestrator) Run(ctx context.Context, paths []string, onProgress func(Progress)) (*Result, error) {
	if !o.toolCheck() {
		return nil, fmt.Errorf("%w; %s", fingerprint.ErrToolMissing, fingerprint.InstallHint())
	}

	result := &Result{BatchID: uuid.NewString()}
	util.InfoLog("Enriching %d files (batch %s)", len(paths), result.BatchID)

	for i, path := range paths {
		if i > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(o.opts.Pace):
			}
		}

		item := o.processOne(ctx, path)
		result.Items = append(result.Items, item)
		switch item.Outcome {
		case OutcomeMatched:
			result.Matched++
		case OutcomeNoMatch:
			result.NoMatch++
		case OutcomeError:
			result.Failed++
			util.WarnLog("Enrichment failed for %s: %v", path, item.Err)
		}

		if onProgress != nil {
			onProgress(Progress{
				BatchID:   result.BatchID,
				Current:   path,
				Processed: i + 1,
				Total:     len(paths),
				Matched:   result.Matched,
				NoMatch:   result.NoMatch,
				Failed:    result.Failed,
			})
		}

		if errors.Is(item.Err, context.Canceled) {
			return result, context.Canceled
		}
	}

	util.SuccessLog("Batch %s: %d matched, %d no match, %d errors",
		result.BatchID, result.Matched, result.NoMatch, result.Failed)
	return result, nil
}

func (o *Orchestrator) processOne(ctx context.Context, path string) ItemResult {
	item := ItemResult{Path: path}

	// Existing tags feed the release scorer; a file with no readable tags
	// still gets fingerprinted.
	existing, err := meta.Read(path)
	if err != nil {
		existing = nil
	}

	fp, err := o.fingerprinter(ctx, path)
	if err != nil {
		item.Outcome = OutcomeError
		item.Err = err
		o.recordError(path, classifyFingerprintError(err), err)
		return item
	}

	matches, err := o.acoustID.Lookup(ctx, fp)
	if err != nil {
		var ae *acoustid.Error
		if errors.As(err, &ae) && ae.Kind == acoustid.KindNoMatches {
			item.Outcome = OutcomeNoMatch
			o.recordNoMatch(path)
			return item
		}
		item.Outcome = OutcomeError
		item.Err = err
		o.recordError(path, errKindOther, err)
		return item
	}

	best := pickBest(matches, path, existing)
	if best == nil || best.Score < o.opts.MinConfidence {
		item.Outcome = OutcomeNoMatch
		o.recordNoMatch(path)
		return item
	}
	item.Match = best

	if err := o.apply(ctx, path, existing, best); err != nil {
		item.Outcome = OutcomeError
		item.Err = err
		o.recordError(path, errKindOther, err)
		return item
	}

	item.Outcome = OutcomeMatched
	o.recordMatch(path, best)
	return item
}

// apply pushes an accepted match into the catalog, the file's tags, and
// the cover cache.
func (o *Orchestrator) apply(ctx context.Context, path string, existing *meta.TagRecord, match *acoustid.Match) error {
	rec := &meta.TagRecord{
		Title:       match.Title,
		Artist:      match.Artist,
		Album:       match.Album,
		RecordingID: match.RecordingID,
	}

	// MusicBrainz fills in what AcoustID cannot: track numbers, years, and
	// the concrete release behind the release group.
	if o.mb != nil {
		full, err := o.mb.LookupRecording(ctx, match.RecordingID)
		if err != nil {
			util.DebugLog("MusicBrainz lookup failed for %s: %v", match.RecordingID, err)
		} else {
			if full.Album != "" {
				rec.Album = full.Album
			}
			if full.Artist != "" {
				rec.Artist = full.Artist
			}
			rec.TrackNumber = full.TrackNumber
			rec.Year = full.Year
			rec.ReleaseID = full.ReleaseID
		}
	}

	if o.opts.WriteTags && meta.CanWrite(path) {
		report, err := meta.Write(path, rec, meta.WriteOptions{
			OnlyFillEmpty:       o.opts.OnlyFillEmpty,
			WriteMusicBrainzIDs: true,
		})
		if err != nil {
			return fmt.Errorf("writing tags: %w", err)
		}
		if len(report.FieldsUpdated) > 0 {
			util.DebugLog("Updated %s in %s", strings.Join(report.FieldsUpdated, ", "), path)
		}
	}

	track := &catalog.Track{
		Path:        path,
		Title:       rec.Title,
		Artist:      rec.Artist,
		Album:       orDefault(rec.Album, "Unknown Album"),
		TrackNumber: rec.TrackNumber,
		Year:        rec.Year,
		RecordingID: rec.RecordingID,
		ReleaseID:   rec.ReleaseID,
	}
	if existing != nil {
		track.DurationMs = existing.DurationMs
		track.Format = existing.Format
		track.Bitrate = existing.Bitrate
		track.SampleRate = existing.SampleRate
		track.Lossless = existing.Lossless
	}
	if track.Artist == "" {
		track.Artist = "Unknown Artist"
	}
	if _, err := o.store.InsertOrUpdateTrack(track); err != nil {
		return fmt.Errorf("updating catalog: %w", err)
	}

	if o.covers != nil && rec.ReleaseID != "" {
		if err := o.covers.Prefetch(ctx, rec.ReleaseID); err != nil {
			util.DebugLog("Cover prefetch failed for %s: %v", rec.ReleaseID, err)
		}
	}
	return nil
}

func (o *Orchestrator) recordMatch(path string, match *acoustid.Match) {
	h := &catalog.FileHealth{
		Path:        path,
		Status:      catalog.HealthOK,
		Confidence:  match.Score,
		RecordingID: match.RecordingID,
	}
	stampFileState(h)
	if err := o.store.UpsertFileHealth(h); err != nil {
		util.WarnLog("Could not record health for %s: %v", path, err)
	}
}

func (o *Orchestrator) recordNoMatch(path string) {
	h := &catalog.FileHealth{
		Path:   path,
		Status: catalog.HealthNoMatch,
	}
	stampFileState(h)
	if err := o.store.UpsertFileHealth(h); err != nil {
		util.WarnLog("Could not record health for %s: %v", path, err)
	}
}

func (o *Orchestrator) recordError(path, kind string, cause error) {
	h := &catalog.FileHealth{
		Path:        path,
		Status:      catalog.HealthError,
		ErrorKind:   kind,
		ErrorDetail: cause.Error(),
	}
	stampFileState(h)
	if err := o.store.UpsertFileHealth(h); err != nil {
		util.WarnLog("Could not record health for %s: %v", path, err)
	}
}

// stampFileState records the file's size and mtime on the health row so a
// later pass can tell whether the file has changed since this check.
func stampFileState(h *catalog.FileHealth) {
	info, err := os.Stat(h.Path)
	if err != nil {
		return
	}
	size := info.Size()
	mod := info.ModTime().UTC()
	h.FileSize = &size
	h.ModTime = &mod
}

// classifyFingerprintError buckets fpcalc failures for health rows.
func classifyFingerprintError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "empty fingerprint"):
		return errKindEmptyFingerprint
	case strings.Contains(msg, "decod"), strings.Contains(msg, "invalid data"),
		strings.Contains(msg, "could not open"):
		return errKindDecode
	default:
		return errKindOther
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
