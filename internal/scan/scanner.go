// Package scan discovers audio files and keeps the catalog in step with
// the filesystem, both in one-shot scans and via a directory watcher.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/meta"
	"github.com/franz/music-minder/internal/util"
)

// Scanner walks a library root and ingests every audio file it finds.
type Scanner struct {
	store       *catalog.Store
	concurrency int
}

// Config holds scanner configuration
type Config struct {
	Store       *catalog.Store
	Concurrency int
}

// New creates a new Scanner. The default worker count leaves half the
// logical cores free for playback and the UI.
func New(cfg *Config) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU() / 2
		if cfg.Concurrency < 1 {
			cfg.Concurrency = 1
		}
	}
	return &Scanner{store: cfg.Store, concurrency: cfg.Concurrency}
}

// Result summarizes one scan.
type Result struct {
	FilesFound int
	Indexed    int
	Removed    int
	Errors     []error
}

// Scan walks root, indexes every readable audio file, and removes catalog
// rows whose files no longer exist under root. Unreadable files are logged
// and counted but never abort the scan.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	rootAbs, err := catalog.NormalizePath(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root: %w", err)
	}
	util.InfoLog("Starting scan of: %s", rootAbs)

	result := &Result{}
	var resultMu sync.Mutex

	// Paths already in the catalog, to detect files that disappeared
	existing, err := s.store.GetAllTrackPaths()
	if err != nil {
		return nil, fmt.Errorf("loading existing tracks: %w", err)
	}

	seen := make(map[string]bool)
	var seenMu sync.Mutex

	var filesFound atomic.Int64
	var indexed atomic.Int64
	var failed atomic.Int64

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()
	go reportProgress(progressCtx, &filesFound, &indexed, &failed)

	// Go blocks once all workers are busy, so the walk never outruns
	// ingestion by more than the pool size.
	workers := pool.New().WithMaxGoroutines(s.concurrency)

	walkErr := filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			resultMu.Lock()
			result.Errors = append(result.Errors, fmt.Errorf("access error: %s: %w", path, err))
			resultMu.Unlock()
			return nil
		}
		if d.IsDir() || !meta.IsAudioFile(path) {
			return nil
		}

		filesFound.Add(1)
		workers.Go(func() {
			if ctx.Err() != nil {
				return
			}
			normalized, err := s.ingest(path)
			if err != nil {
				failed.Add(1)
				util.WarnLog("Skipping %s: %v", path, err)
				resultMu.Lock()
				result.Errors = append(result.Errors, err)
				resultMu.Unlock()
				return
			}
			indexed.Add(1)
			seenMu.Lock()
			seen[normalized] = true
			seenMu.Unlock()
		})
		return nil
	})

	workers.Wait()
	cancelProgress()

	if walkErr != nil {
		return nil, walkErr
	}

	// Drop rows for files that vanished since the last scan
	for _, path := range existing {
		if seen[path] || !strings.HasPrefix(path, rootAbs+string(filepath.Separator)) {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := s.store.DeleteTrackByPath(path); err != nil {
			util.WarnLog("Could not remove stale track %s: %v", path, err)
			continue
		}
		if err := s.store.DeleteFileHealth(path); err != nil {
			util.DebugLog("No health row to remove for %s: %v", path, err)
		}
		result.Removed++
	}

	result.FilesFound = int(filesFound.Load())
	result.Indexed = int(indexed.Load())
	util.SuccessLog("Scan complete: %d files found, %d indexed, %d removed, %d errors",
		result.FilesFound, result.Indexed, result.Removed, len(result.Errors))
	return result, nil
}

// ScanFile indexes a single file, for watcher-driven updates.
func (s *Scanner) ScanFile(path string) error {
	if !meta.IsAudioFile(path) {
		return nil
	}
	_, err := s.ingest(path)
	return err
}

// RemoveFile drops the catalog rows for a deleted file.
func (s *Scanner) RemoveFile(path string) error {
	if err := s.store.DeleteTrackByPath(path); err != nil {
		return err
	}
	return s.store.DeleteFileHealth(path)
}

// ingest reads tags and upserts one track, returning the normalized path.
func (s *Scanner) ingest(path string) (string, error) {
	rec, err := meta.Read(path)
	if err != nil {
		return "", err
	}

	track := &catalog.Track{
		Path:        path,
		Title:       rec.Title,
		Artist:      orUnknown(rec.Artist, "Unknown Artist"),
		Album:       orUnknown(rec.Album, "Unknown Album"),
		TrackNumber: rec.TrackNumber,
		Year:        rec.Year,
		DurationMs:  rec.DurationMs,
		Format:      rec.Format,
		Bitrate:     rec.Bitrate,
		SampleRate:  rec.SampleRate,
		Lossless:    rec.Lossless,
		RecordingID: rec.RecordingID,
		ReleaseID:   rec.ReleaseID,
	}
	if _, err := s.store.InsertOrUpdateTrack(track); err != nil {
		return "", err
	}
	return track.Path, nil
}

func orUnknown(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// reportProgress drives a progress bar on a TTY and falls back to log lines
// when output is piped.
func reportProgress(ctx context.Context, found, indexed, failed *atomic.Int64) {
	isTTY := util.IsTerminal(os.Stdout.Fd())
	var bar *progressbar.ProgressBar
	if isTTY && !util.IsQuiet() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if bar != nil {
				bar.Finish()
			}
			return
		case <-ticker.C:
			f, ok, bad := found.Load(), indexed.Load(), failed.Load()
			if bar != nil && f > 0 {
				bar.Describe(fmt.Sprintf("Scanning | %d found | %d indexed | %d errors", f, ok, bad))
				bar.Set64(ok + bad)
			} else if f > 0 {
				util.InfoLog("Progress: %d found, %d indexed, %d errors", f, ok, bad)
			}
		}
	}
}
