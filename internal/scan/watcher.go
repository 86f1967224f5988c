package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"github.com/franz/music-minder/internal/meta"
	"github.com/franz/music-minder/internal/util"
)

// debounceWindow groups the bursts of filesystem events a single copy or
// tag write produces into one notification per file.
const debounceWindow = 500 * time.Millisecond

// eventBuffer bounds the outgoing channel. A slow consumer loses events
// rather than stalling the watch loop; a follow-up scan reconciles.
const eventBuffer = 256

// EventType classifies a watch notification.
type EventType int

const (
	Created EventType = iota
	Modified
	Removed
	DirCreated
	WatchError
)

func (t EventType) String() string {
	switch t {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	case DirCreated:
		return "dir-created"
	case WatchError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one debounced filesystem notification.
type Event struct {
	Type EventType
	Path string
	Err  error
}

// Watcher watches a library root recursively and emits debounced events.
// Receive from Events with select; the channel never blocks the watch loop.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	pending map[string]EventType
	closed  bool
}

// Watch starts watching root and every directory below it.
func Watch(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
		pending: make(map[string]EventType),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Events returns the notification channel. It is closed by Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops the watcher. Pending debounced events are dropped; the events
// channel closes once the watch loop exits.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer func() {
		// a late debounce flush must not hit a closed channel
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.events)
	}()
	flush := debounce.New(debounceWindow)

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if et, watchDir, relevant := classify(ev); relevant {
				if watchDir {
					// New directories must be watched before files land in them
					if err := w.fsw.Add(ev.Name); err != nil {
						util.WarnLog("Could not watch new directory %s: %v", ev.Name, err)
					}
				}
				w.record(ev.Name, et)
				flush(w.flushPending)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.emit(Event{Type: WatchError, Err: err})
		}
	}
}

// classify maps an fsnotify event to a watch event type. The second return
// is true when a newly created directory needs a watch added.
func classify(ev fsnotify.Event) (EventType, bool, bool) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return DirCreated, true, true
		}
		if meta.IsAudioFile(ev.Name) {
			return Created, false, true
		}
	case ev.Op.Has(fsnotify.Write):
		if meta.IsAudioFile(ev.Name) {
			return Modified, false, true
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		if meta.IsAudioFile(ev.Name) {
			return Removed, false, true
		}
	}
	return 0, false, false
}

// record coalesces events per path within one debounce window. A create
// followed by writes stays a create; a remove wins over everything.
func (w *Watcher) record(path string, et EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, exists := w.pending[path]
	switch {
	case !exists:
		w.pending[path] = et
	case et == Removed:
		w.pending[path] = Removed
	case prev == Created && et == Modified:
		// keep Created
	default:
		w.pending[path] = et
	}
}

func (w *Watcher) flushPending() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]EventType)
	w.mu.Unlock()

	// deterministic order keeps dir-created before the files inside it
	paths := make([]string, 0, len(batch))
	for p := range batch {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		w.emit(Event{Type: batch[p], Path: p})
	}
}

// emit delivers without blocking. Overflow is logged and dropped.
func (w *Watcher) emit(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	default:
		util.WarnLog("Watch event buffer full, dropping %s %s", ev.Type, ev.Path)
	}
}
