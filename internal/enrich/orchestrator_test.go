package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/music-minder/internal/acoustid"
	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/fingerprint"
	"github.com/franz/music-minder/internal/meta"
)

const lookupBody = `{
	"status": "ok",
	"results": [{
		"id": "aid-1",
		"score": 0.95,
		"recordings": [{
			"id": "rec-1",
			"title": "Karma Police",
			"artists": [{"id": "art-1", "name": "Radiohead"}],
			"releasegroups": [{"id": "rg-1", "title": "OK Computer", "type": "Album"}]
		}]
	}]
}`

func newTestOrchestrator(t *testing.T, handler http.Handler, opts Options) (*Orchestrator, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	o := New(store, acoustid.NewClientWithBaseURL("key", srv.URL), nil, nil, opts)
	o.toolCheck = func() bool { return true }
	o.fingerprinter = func(ctx context.Context, path string) (*fingerprint.Fingerprint, error) {
		return &fingerprint.Fingerprint{Duration: 240, Data: "FAKEFP"}, nil
	}
	return o, store
}

func TestRunRecordsMatch(t *testing.T) {
	o, store := newTestOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(lookupBody))
	}), Options{})

	path := filepath.Join(t.TempDir(), "track.flac")
	result, err := o.Run(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Matched != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.BatchID == "" {
		t.Error("batch has no id")
	}

	health, err := store.GetFileHealth(path)
	if err != nil {
		t.Fatalf("no health row: %v", err)
	}
	if health.Status != catalog.HealthOK || health.RecordingID != "rec-1" || health.Confidence != 0.95 {
		t.Errorf("health = %+v", health)
	}

	track, err := store.GetTrackByPath(path)
	if err != nil {
		t.Fatalf("no catalog row: %v", err)
	}
	if track.Title != "Karma Police" || track.Artist != "Radiohead" || track.RecordingID != "rec-1" {
		t.Errorf("track = %+v", track)
	}
}

func TestRunRecordsNoMatch(t *testing.T) {
	o, store := newTestOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "results": []}`))
	}), Options{})

	path := filepath.Join(t.TempDir(), "unknown.flac")
	result, err := o.Run(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.NoMatch != 1 {
		t.Fatalf("result = %+v", result)
	}

	health, err := store.GetFileHealth(path)
	if err != nil {
		t.Fatalf("no health row: %v", err)
	}
	if health.Status != catalog.HealthNoMatch {
		t.Errorf("health = %+v", health)
	}
}

func TestRunGatesLowConfidence(t *testing.T) {
	low := `{"status":"ok","results":[{"id":"a","score":0.4,"recordings":[{"id":"r","title":"T"}]}]}`
	o, store := newTestOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(low))
	}), Options{})

	path := filepath.Join(t.TempDir(), "maybe.flac")
	result, err := o.Run(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.NoMatch != 1 || result.Matched != 0 {
		t.Fatalf("low-confidence match was accepted: %+v", result)
	}
	health, _ := store.GetFileHealth(path)
	if health == nil || health.Status != catalog.HealthNoMatch {
		t.Errorf("health = %+v", health)
	}
}

func TestRunFailsFastWithoutTool(t *testing.T) {
	o, _ := newTestOrchestrator(t, http.NotFoundHandler(), Options{})
	o.toolCheck = func() bool { return false }

	_, err := o.Run(context.Background(), []string{"/x.flac"}, nil)
	if !errors.Is(err, fingerprint.ErrToolMissing) {
		t.Errorf("got %v, want ErrToolMissing", err)
	}
}

func TestRunClassifiesFingerprintErrors(t *testing.T) {
	o, store := newTestOrchestrator(t, http.NotFoundHandler(), Options{})
	o.fingerprinter = func(ctx context.Context, path string) (*fingerprint.Fingerprint, error) {
		return nil, errors.New("fpcalc produced an empty fingerprint for " + path)
	}

	path := filepath.Join(t.TempDir(), "silent.flac")
	result, err := o.Run(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	health, err := store.GetFileHealth(path)
	if err != nil {
		t.Fatalf("no health row: %v", err)
	}
	if health.Status != catalog.HealthError || health.ErrorKind != "empty_fingerprint" {
		t.Errorf("health = %+v", health)
	}
}

func TestRunPacesBetweenItems(t *testing.T) {
	o, _ := newTestOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(lookupBody))
	}), Options{})

	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "a.flac"), filepath.Join(dir, "b.flac")}

	start := time.Now()
	if _, err := o.Run(context.Background(), paths, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < minPace {
		t.Errorf("two items finished in %v, pacing not applied", elapsed)
	}
}

func TestRunReportsProgress(t *testing.T) {
	o, _ := newTestOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(lookupBody))
	}), Options{})

	path := filepath.Join(t.TempDir(), "a.flac")
	var updates []Progress
	_, err := o.Run(context.Background(), []string{path}, func(p Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(updates) != 1 {
		t.Fatalf("got %d progress updates, want 1", len(updates))
	}
	p := updates[0]
	if p.Processed != 1 || p.Total != 1 || p.Matched != 1 || p.Current != path {
		t.Errorf("progress = %+v", p)
	}
}

func TestMatchScorePrefersPathAlbum(t *testing.T) {
	studio := acoustid.Match{Score: 0.9, Album: "OK Computer", ReleaseType: "Album"}
	karaoke := acoustid.Match{Score: 0.9, Album: "Karaoke Classics", ReleaseType: "Album", SecondaryTypes: []string{"Karaoke"}}

	path := "/music/Radiohead/OK Computer/06.flac"
	if matchScore(&studio, path, nil) <= matchScore(&karaoke, path, nil) {
		t.Error("karaoke release outscored the studio album")
	}

	best := pickBest([]acoustid.Match{karaoke, studio}, path, nil)
	if best == nil || best.Album != "OK Computer" {
		t.Errorf("pickBest chose %+v", best)
	}
}

func TestMatchScoreUsesExistingTags(t *testing.T) {
	m := acoustid.Match{Score: 0.9, Album: "Hot Space", Artist: "Queen"}
	existing := &meta.TagRecord{Album: "Hot Space", Artist: "Queen"}

	with := matchScore(&m, "/music/x.flac", existing)
	without := matchScore(&m, "/music/x.flac", nil)
	if with <= without {
		t.Errorf("tag agreement did not raise score: %v vs %v", with, without)
	}
}

func TestMatchScoreCompilationHint(t *testing.T) {
	comp := acoustid.Match{Score: 0.9, Album: "Greatest Hits", SecondaryTypes: []string{"Compilation"}}

	hinted := matchScore(&comp, "/music/Queen/Greatest Hits/01.mp3", nil)
	unhinted := matchScore(&comp, "/music/Queen/A Night at the Opera/01.mp3", nil)
	if hinted <= unhinted {
		t.Errorf("compilation hint not applied: %v vs %v", hinted, unhinted)
	}
}
