// Package engine is the host-independent command surface. Hosts (the CLI
// today, a UI later) talk to the library through request structs and get
// typed results back; progress flows through caller-supplied callbacks.
// Batch requests are executed one at a time in submission order; player
// commands bypass the queue because they must act immediately.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/franz/music-minder/internal/acoustid"
	"github.com/franz/music-minder/internal/audio"
	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/config"
	"github.com/franz/music-minder/internal/coverart"
	"github.com/franz/music-minder/internal/diagnostics"
	"github.com/franz/music-minder/internal/enrich"
	"github.com/franz/music-minder/internal/fingerprint"
	"github.com/franz/music-minder/internal/health"
	"github.com/franz/music-minder/internal/meta"
	"github.com/franz/music-minder/internal/musicbrainz"
	"github.com/franz/music-minder/internal/organize"
	"github.com/franz/music-minder/internal/scan"
	"github.com/franz/music-minder/internal/util"
)

// ErrClosed is returned for requests submitted after Close.
var ErrClosed = errors.New("engine closed")

// ErrMissingAPIKey is returned when a request requires an AcoustID key
// and none was configured.
var ErrMissingAPIKey = errors.New("acoustid api key required (set credentials.acoustid_api_key or ACOUSTID_API_KEY)")

// Options configures a new engine.
type Options struct {
	Store    *catalog.Store
	Config   *config.Config
	DataDir  string
	CacheDir string
}

// Engine owns the library services and serializes batch work.
type Engine struct {
	store    *catalog.Store
	cfg      *config.Config
	dataDir  string
	cacheDir string

	scanner   *scan.Scanner
	organizer *organize.Organizer

	tasks  chan task
	closed chan struct{}
	once   sync.Once

	playerMu sync.Mutex
	player   *audio.Engine
	stopPlay context.CancelFunc
}

type task struct {
	ctx  context.Context
	run  func(context.Context)
	done chan struct{}
}

// New wires up the engine. Close releases the worker; the catalog store
// stays owned by the caller.
func New(opts Options) *Engine {
	e := &Engine{
		store:     opts.Store,
		cfg:       opts.Config,
		dataDir:   opts.DataDir,
		cacheDir:  opts.CacheDir,
		scanner:   scan.New(&scan.Config{Store: opts.Store}),
		organizer: organize.New(opts.Store, opts.DataDir),
		tasks:     make(chan task, 16),
		closed:    make(chan struct{}),
	}
	go e.work()
	return e
}

// Close stops the worker and the player, if one was started.
func (e *Engine) Close() {
	e.once.Do(func() { close(e.closed) })

	e.playerMu.Lock()
	if e.player != nil {
		e.player.Send(audio.Command{Type: audio.CmdShutdown})
		if e.stopPlay != nil {
			e.stopPlay()
		}
		e.player = nil
	}
	e.playerMu.Unlock()
}

func (e *Engine) work() {
	for {
		select {
		case <-e.closed:
			return
		case t := <-e.tasks:
			// A request cancelled while queued is skipped, not run.
			select {
			case <-t.ctx.Done():
			default:
				t.run(t.ctx)
			}
			close(t.done)
		}
	}
}

// do queues fn and waits for it to finish. Cancelling ctx aborts the wait
// and, through the same ctx, the work itself.
func (e *Engine) do(ctx context.Context, fn func(context.Context)) error {
	t := task{ctx: ctx, run: fn, done: make(chan struct{})}
	select {
	case e.tasks <- t:
	case <-e.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScanRequest walks a directory tree into the catalog.
type ScanRequest struct {
	Root string
}

func (e *Engine) Scan(ctx context.Context, req ScanRequest) (*scan.Result, error) {
	var res *scan.Result
	var err error
	if qerr := e.do(ctx, func(ctx context.Context) {
		res, err = e.scanner.Scan(ctx, req.Root)
	}); qerr != nil {
		return nil, qerr
	}
	return res, err
}

// WatchRequest follows filesystem changes under Root, keeping the catalog
// current and forwarding each event to OnEvent. It blocks until ctx ends,
// so it runs outside the batch queue.
type WatchRequest struct {
	Root    string
	OnEvent func(scan.Event)
}

func (e *Engine) Watch(ctx context.Context, req WatchRequest) error {
	w, err := scan.Watch(req.Root)
	if err != nil {
		return err
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			e.applyWatchEvent(ev)
			if req.OnEvent != nil {
				req.OnEvent(ev)
			}
		}
	}
}

func (e *Engine) applyWatchEvent(ev scan.Event) {
	switch ev.Type {
	case scan.Created, scan.Modified:
		if err := e.scanner.ScanFile(ev.Path); err != nil {
			util.WarnLog("Watch ingest %s: %v", ev.Path, err)
		}
	case scan.Removed:
		if err := e.scanner.RemoveFile(ev.Path); err != nil {
			util.WarnLog("Watch remove %s: %v", ev.Path, err)
		}
	}
}

// OrganizeRequest renames the library into Destination following Pattern.
type OrganizeRequest struct {
	Destination string
	Pattern     string
	DryRun      bool
	// OnMove streams planned moves during a dry run.
	OnMove func(organize.PlannedMove)
}

// OrganizeResult reports a run; Planned is set for dry runs only.
type OrganizeResult struct {
	Planned int
	Moved   int
	Skipped int
	Failed  int
	Errors  []error
}

func (e *Engine) Organize(ctx context.Context, req OrganizeRequest) (*OrganizeResult, error) {
	var res *OrganizeResult
	var err error
	if qerr := e.do(ctx, func(ctx context.Context) {
		if req.DryRun {
			var planned []organize.PlannedMove
			planned, err = e.organizer.Preview(ctx, req.Destination, req.Pattern, req.OnMove)
			if err == nil {
				res = &OrganizeResult{Planned: len(planned)}
			}
			return
		}
		var run *organize.Result
		run, err = e.organizer.Execute(ctx, req.Destination, req.Pattern)
		if err == nil {
			res = &OrganizeResult{Moved: run.Moved, Skipped: run.Skipped, Failed: run.Failed, Errors: run.Errors}
		}
	}); qerr != nil {
		return nil, qerr
	}
	return res, err
}

// Undo reverses the last organize run from the journal.
func (e *Engine) Undo(ctx context.Context) (*organize.Result, error) {
	var res *organize.Result
	var err error
	if qerr := e.do(ctx, func(ctx context.Context) {
		res, err = e.organizer.Undo(ctx)
	}); qerr != nil {
		return nil, qerr
	}
	return res, err
}

// HasUndo reports whether an undo journal exists.
func (e *Engine) HasUndo() bool { return e.organizer.HasUndo() }

// EnrichRequest fingerprints and identifies a batch of files.
type EnrichRequest struct {
	Paths         []string
	APIKey        string
	MinConfidence float64
	Write         bool
	FillOnly      bool
	OnProgress    func(enrich.Progress)
}

func (e *Engine) Enrich(ctx context.Context, req EnrichRequest) (*enrich.Result, error) {
	key := e.apiKey(req.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	var res *enrich.Result
	var err error
	if qerr := e.do(ctx, func(ctx context.Context) {
		cache := coverart.NewCache(e.cacheDir)
		resolver := coverart.NewResolver(coverart.NewClient(), cache)
		orch := enrich.New(e.store, acoustid.NewClient(key), musicbrainz.NewClient(), resolver, enrich.Options{
			WriteTags:     req.Write,
			OnlyFillEmpty: req.FillOnly,
			MinConfidence: req.MinConfidence,
		})
		res, err = orch.Run(ctx, req.Paths, req.OnProgress)
	}); qerr != nil {
		return nil, qerr
	}
	return res, err
}

// IdentifyRequest looks up a single file by fingerprint.
type IdentifyRequest struct {
	Path   string
	APIKey string
}

func (e *Engine) Identify(ctx context.Context, req IdentifyRequest) ([]acoustid.Match, error) {
	key := e.apiKey(req.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	var matches []acoustid.Match
	var err error
	if qerr := e.do(ctx, func(ctx context.Context) {
		var fp *fingerprint.Fingerprint
		fp, err = fingerprint.Generate(ctx, req.Path)
		if err != nil {
			return
		}
		matches, err = acoustid.NewClient(key).Lookup(ctx, fp)
	}); qerr != nil {
		return nil, qerr
	}
	return matches, err
}

// WriteTagsRequest edits a file's tags. Preview returns the pending
// changes without touching the file.
type WriteTagsRequest struct {
	Path     string
	Fields   *meta.TagRecord
	FillOnly bool
	Preview  bool
}

// WriteTagsResult carries either the preview or the applied report.
type WriteTagsResult struct {
	Changes []meta.FieldChange
	Skipped []string
	Report  *meta.WriteReport
}

func (e *Engine) WriteTags(ctx context.Context, req WriteTagsRequest) (*WriteTagsResult, error) {
	var res WriteTagsResult
	var err error
	if qerr := e.do(ctx, func(context.Context) {
		opts := meta.WriteOptions{OnlyFillEmpty: req.FillOnly}
		if req.Preview {
			res.Changes, res.Skipped, err = meta.PreviewWrite(req.Path, req.Fields, opts)
			return
		}
		res.Report, err = meta.Write(req.Path, req.Fields, opts)
	}); qerr != nil {
		return nil, qerr
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RunDiagnostics collects an environment report.
func (e *Engine) RunDiagnostics(ctx context.Context) (diagnostics.Report, error) {
	var rep diagnostics.Report
	if qerr := e.do(ctx, func(ctx context.Context) {
		rep = diagnostics.Run(ctx, e.store, e.cacheDir, e.dataDir)
	}); qerr != nil {
		return diagnostics.Report{}, qerr
	}
	return rep, nil
}

// QualityScanRequest rescoring pass; Limit 0 means everything.
type QualityScanRequest struct {
	Limit int
}

// QualityScanResult is the pass outcome plus the resulting library stats.
type QualityScanResult struct {
	Assessed int
	Stats    *catalog.QualityStats
}

func (e *Engine) QualityScan(ctx context.Context, req QualityScanRequest) (*QualityScanResult, error) {
	var res QualityScanResult
	var err error
	if qerr := e.do(ctx, func(ctx context.Context) {
		var assessed int
		if req.Limit > 0 {
			assessed, err = e.assessLimited(ctx, req.Limit)
		} else {
			assessed, err = health.AssessAll(ctx, e.store)
		}
		if err != nil {
			return
		}
		res.Assessed = assessed
		res.Stats, err = e.store.GetQualityStats()
	}); qerr != nil {
		return nil, qerr
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (e *Engine) assessLimited(ctx context.Context, limit int) (int, error) {
	tracks, err := e.store.GetTracksPaginated(limit, 0)
	if err != nil {
		return 0, err
	}
	assessed := 0
	for _, t := range tracks {
		if ctx.Err() != nil {
			return assessed, ctx.Err()
		}
		a := health.Assess(t)
		if err := e.store.UpdateTrackQuality(t.ID, a.Score, int64(a.Flags)); err != nil {
			return assessed, err
		}
		assessed++
	}
	return assessed, nil
}

// Player returns the playback engine, starting it on first use.
func (e *Engine) Player() (*audio.Engine, error) {
	e.playerMu.Lock()
	defer e.playerMu.Unlock()

	if e.player != nil {
		return e.player, nil
	}

	cfg := audio.DefaultConfig()
	if e.cfg != nil {
		cfg.AutoQueue = e.cfg.Library.AutoQueue
		cfg.Visualization = audio.ParseVisualizationMode(e.cfg.Audio.VisualizationMode)
	}
	player := audio.NewEngine(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	if err := player.Start(ctx); err != nil {
		cancel()
		return nil, err
	}
	e.player = player
	e.stopPlay = cancel
	return player, nil
}

// PlayerCommand forwards a command to the playback engine, starting it if
// needed. Unlike batch requests this never queues behind library work.
func (e *Engine) PlayerCommand(cmd audio.Command) error {
	player, err := e.Player()
	if err != nil {
		return err
	}
	if !player.Send(cmd) {
		return errors.New("player command dropped: mailbox full")
	}
	return nil
}

func (e *Engine) apiKey(override string) string {
	if override != "" {
		return override
	}
	if e.cfg != nil {
		return e.cfg.Credentials.AcoustIDAPIKey
	}
	return ""
}
