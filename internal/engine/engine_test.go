package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/config"
	"github.com/franz/music-minder/internal/organize"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.Open(filepath.Join(dir, "library.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	e := New(Options{
		Store:    store,
		Config:   &config.Config{},
		DataDir:  filepath.Join(dir, "data"),
		CacheDir: filepath.Join(dir, "cache"),
	})
	t.Cleanup(e.Close)
	return e
}

func intPtr(v int) *int { return &v }

func seedTrack(t *testing.T, e *Engine, path, title string) int64 {
	t.Helper()
	id, err := e.store.InsertOrUpdateTrack(&catalog.Track{
		Path:   path,
		Title:  title,
		Artist: "Artist",
		Album:  "Album",
		Year:   intPtr(2001),
	})
	if err != nil {
		t.Fatalf("seed track: %v", err)
	}
	return id
}

func TestScanEmptyDirectory(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Scan(context.Background(), ScanRequest{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.FilesFound != 0 || res.Indexed != 0 {
		t.Errorf("empty scan found %d indexed %d", res.FilesFound, res.Indexed)
	}
}

func TestRequestsRunInSubmissionOrder(t *testing.T) {
	e := newTestEngine(t)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	ctx := context.Background()

	// Queue from a single goroutine so submission order is defined,
	// then wait for all to run.
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		t := task{ctx: ctx, done: make(chan struct{}), run: func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}}
		e.tasks <- t
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestCancelledRequestIsSkipped(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := e.do(ctx, func(context.Context) { ran = true })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("do on cancelled ctx = %v", err)
	}
	// Give the worker a moment; the task must not execute.
	time.Sleep(20 * time.Millisecond)
	if ran {
		t.Error("cancelled request still ran")
	}
}

func TestDoAfterClose(t *testing.T) {
	e := newTestEngine(t)
	e.Close()
	if err := e.do(context.Background(), func(context.Context) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("do after Close = %v, want ErrClosed", err)
	}
}

func TestEnrichRequiresAPIKey(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Enrich(context.Background(), EnrichRequest{Paths: []string{"/x.mp3"}}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Enrich without key = %v, want ErrMissingAPIKey", err)
	}
	if _, err := e.Identify(context.Background(), IdentifyRequest{Path: "/x.mp3"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Identify without key = %v, want ErrMissingAPIKey", err)
	}
}

func TestAPIKeyFallsBackToConfig(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.Credentials.AcoustIDAPIKey = "from-config"
	if got := e.apiKey(""); got != "from-config" {
		t.Errorf("apiKey falls back to %q", got)
	}
	if got := e.apiKey("override"); got != "override" {
		t.Errorf("apiKey override = %q", got)
	}
}

func TestOrganizeDryRun(t *testing.T) {
	e := newTestEngine(t)
	seedTrack(t, e, "/music/a.mp3", "A")
	seedTrack(t, e, "/music/b.mp3", "B")

	var streamed int
	res, err := e.Organize(context.Background(), OrganizeRequest{
		Destination: t.TempDir(),
		Pattern:     "{Artist}/{Album}/{TrackNum} - {Title}.{ext}",
		DryRun:      true,
		OnMove:      func(organize.PlannedMove) { streamed++ },
	})
	if err != nil {
		t.Fatalf("Organize dry run: %v", err)
	}
	if res.Planned != 2 {
		t.Errorf("Planned = %d, want 2", res.Planned)
	}
	if streamed != 2 {
		t.Errorf("OnMove called %d times, want 2", streamed)
	}
	if res.Moved != 0 {
		t.Errorf("dry run moved %d files", res.Moved)
	}
}

func TestQualityScan(t *testing.T) {
	e := newTestEngine(t)
	seedTrack(t, e, "/music/a.mp3", "A")
	seedTrack(t, e, "/music/b.mp3", "B")
	seedTrack(t, e, "/music/c.mp3", "C")

	res, err := e.QualityScan(context.Background(), QualityScanRequest{})
	if err != nil {
		t.Fatalf("QualityScan: %v", err)
	}
	if res.Assessed != 3 {
		t.Errorf("Assessed = %d, want 3", res.Assessed)
	}
	if res.Stats == nil || res.Stats.Total != 3 {
		t.Errorf("Stats = %+v", res.Stats)
	}

	// A limited pass touches at most Limit tracks.
	res, err = e.QualityScan(context.Background(), QualityScanRequest{Limit: 2})
	if err != nil {
		t.Fatalf("limited QualityScan: %v", err)
	}
	if res.Assessed != 2 {
		t.Errorf("limited Assessed = %d, want 2", res.Assessed)
	}
}

func TestHasUndoInitiallyFalse(t *testing.T) {
	e := newTestEngine(t)
	if e.HasUndo() {
		t.Error("fresh engine reports an undo journal")
	}
}
