package health

import (
	"context"
	"sync"
	"time"

	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/util"
)

// Command steers a running gardener.
type Command int

const (
	// Pause stops assessment work but keeps the loop alive.
	Pause Command = iota
	// Resume continues after a Pause.
	Resume
	// RescoreAll reassesses every track regardless of age.
	RescoreAll
	// Stop shuts the gardener down.
	Stop
)

// EventType classifies gardener notifications.
type EventType int

const (
	Paused EventType = iota
	Resumed
	BatchDone
	RescoreDone
	Stopped
)

// Event is a gardener notification.
type Event struct {
	Type     EventType
	Assessed int
}

// GardenerConfig tunes the background loop.
type GardenerConfig struct {
	// CheckInterval is how often the gardener looks for work.
	CheckInterval time.Duration
	// BatchSize is how many tracks one wakeup assesses.
	BatchSize int
	// TrackDelay spaces tracks within a batch so the gardener never
	// monopolizes the database.
	TrackDelay time.Duration
	// RecheckAfter is the age at which an assessment goes stale.
	RecheckAfter time.Duration
}

// DefaultGardenerConfig returns the production settings.
func DefaultGardenerConfig() GardenerConfig {
	return GardenerConfig{
		CheckInterval: 30 * time.Second,
		BatchSize:     10,
		TrackDelay:    100 * time.Millisecond,
		RecheckAfter:  7 * 24 * time.Hour,
	}
}

// Gardener gradually keeps quality assessments fresh. It wakes on a timer,
// scores a small batch of stale tracks, and goes back to sleep.
type Gardener struct {
	store    *catalog.Store
	config   GardenerConfig
	commands chan Command
	events   chan Event

	startOnce sync.Once
	doneWg    sync.WaitGroup
}

// NewGardener creates a gardener; Start launches it.
func NewGardener(store *catalog.Store, config GardenerConfig) *Gardener {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 30 * time.Second
	}
	return &Gardener{
		store:    store,
		config:   config,
		commands: make(chan Command, 8),
		events:   make(chan Event, 16),
	}
}

// Commands returns the channel used to steer the gardener.
func (g *Gardener) Commands() chan<- Command {
	return g.commands
}

// Events returns the notification channel. It closes when the gardener
// stops.
func (g *Gardener) Events() <-chan Event {
	return g.events
}

// Start runs the gardener until Stop is sent or the context ends.
func (g *Gardener) Start(ctx context.Context) {
	g.startOnce.Do(func() {
		g.doneWg.Add(1)
		go g.run(ctx)
	})
}

// Wait blocks until the gardener has stopped.
func (g *Gardener) Wait() {
	g.doneWg.Wait()
}

func (g *Gardener) run(ctx context.Context) {
	defer g.doneWg.Done()
	defer close(g.events)

	ticker := time.NewTicker(g.config.CheckInterval)
	defer ticker.Stop()

	paused := false
	util.DebugLog("Gardener started (interval %v, batch %d)", g.config.CheckInterval, g.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			g.emit(Event{Type: Stopped})
			return

		case cmd := <-g.commands:
			switch cmd {
			case Pause:
				paused = true
				g.emit(Event{Type: Paused})
			case Resume:
				paused = false
				g.emit(Event{Type: Resumed})
			case RescoreAll:
				if !paused {
					n := g.rescoreAll(ctx)
					g.emit(Event{Type: RescoreDone, Assessed: n})
				}
			case Stop:
				g.emit(Event{Type: Stopped})
				return
			}

		case <-ticker.C:
			if paused {
				continue
			}
			cutoff := time.Now().Add(-g.config.RecheckAfter)
			if n := g.processBatch(ctx, cutoff); n > 0 {
				g.emit(Event{Type: BatchDone, Assessed: n})
			}
		}
	}
}

// processBatch assesses one batch of tracks whose assessment is missing or
// older than cutoff. Returns how many were scored.
func (g *Gardener) processBatch(ctx context.Context, cutoff time.Time) int {
	tracks, err := g.store.GetTracksNeedingQualityCheck(g.config.BatchSize, cutoff)
	if err != nil {
		util.WarnLog("Gardener could not load tracks: %v", err)
		return 0
	}

	assessed := 0
	for _, t := range tracks {
		select {
		case <-ctx.Done():
			return assessed
		default:
		}

		a := Assess(t)
		if err := g.store.UpdateTrackQuality(t.ID, a.Score, int64(a.Flags)); err != nil {
			util.WarnLog("Gardener could not store assessment for %s: %v", t.Path, err)
			continue
		}
		assessed++

		if g.config.TrackDelay > 0 {
			select {
			case <-ctx.Done():
				return assessed
			case <-time.After(g.config.TrackDelay):
			}
		}
	}
	return assessed
}

// rescoreAll walks the whole library in batches. Tracks assessed after the
// rescore began are already fresh and are left alone.
func (g *Gardener) rescoreAll(ctx context.Context) int {
	start := time.Now()
	total := 0
	for {
		n := g.processBatch(ctx, start)
		total += n
		if n == 0 || ctx.Err() != nil {
			return total
		}
	}
}

func (g *Gardener) emit(ev Event) {
	select {
	case g.events <- ev:
	default:
	}
}

// AssessAll synchronously scores every track; the quality CLI command uses
// it for a one-shot pass.
func AssessAll(ctx context.Context, store *catalog.Store) (int, error) {
	start := time.Now()
	total := 0
	for {
		tracks, err := store.GetTracksNeedingQualityCheck(100, start)
		if err != nil {
			return total, err
		}
		if len(tracks) == 0 {
			return total, nil
		}
		for _, t := range tracks {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			a := Assess(t)
			if err := store.UpdateTrackQuality(t.ID, a.Score, int64(a.Flags)); err != nil {
				return total, err
			}
			total++
		}
	}
}
