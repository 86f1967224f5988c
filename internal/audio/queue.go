package audio

import (
	"math/rand"
	"path/filepath"
	"strings"
)

// RepeatMode controls what happens at the end of the queue.
type RepeatMode int

const (
	// RepeatOff plays through the queue once.
	RepeatOff RepeatMode = iota
	// RepeatAll wraps to the first item after the last.
	RepeatAll
	// RepeatOne stays on the current item.
	RepeatOne
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// QueueItem is one entry in the play queue.
type QueueItem struct {
	TrackID int64
	Path    string
	Title   string
	Artist  string
	Album   string
}

// DisplayTitle falls back to the file name when no title is known.
func (it QueueItem) DisplayTitle() string {
	if it.Title != "" {
		return it.Title
	}
	base := filepath.Base(it.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Queue holds the pending items and the playback position. Position -1
// means playback has not started. Whenever playback is active the position
// indexes a valid item.
type Queue struct {
	items    []QueueItem
	position int
	repeat   RepeatMode
	shuffled bool
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{position: -1}
}

func (q *Queue) Len() int      { return len(q.items) }
func (q *Queue) IsEmpty() bool { return len(q.items) == 0 }

// Items returns a copy of the queue contents.
func (q *Queue) Items() []QueueItem {
	out := make([]QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Append adds an item at the end.
func (q *Queue) Append(item QueueItem) {
	q.items = append(q.items, item)
}

// InsertNext places an item directly after the current one.
func (q *Queue) InsertNext(item QueueItem) {
	pos := 0
	if q.position >= 0 {
		pos = q.position + 1
		if pos > len(q.items) {
			pos = len(q.items)
		}
	}
	q.items = append(q.items, QueueItem{})
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = item
}

// Remove deletes the item at index and keeps the position pointing at the
// same track. Returns false for an out-of-range index.
func (q *Queue) Remove(index int) bool {
	if index < 0 || index >= len(q.items) {
		return false
	}
	q.items = append(q.items[:index], q.items[index+1:]...)
	if index <= q.position {
		q.position--
		if q.position < -1 {
			q.position = -1
		}
	}
	return true
}

// Move relocates the item at from to index to, adjusting the position so
// the current track stays current.
func (q *Queue) Move(from, to int) bool {
	if from < 0 || from >= len(q.items) || to < 0 || to >= len(q.items) || from == to {
		return false
	}
	item := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items[:to], append([]QueueItem{item}, q.items[to:]...)...)

	switch {
	case from == q.position:
		q.position = to
	case from < q.position && to >= q.position:
		q.position--
	case from > q.position && to <= q.position:
		q.position++
	}
	return true
}

// MoveUp swaps the item one slot toward the front.
func (q *Queue) MoveUp(index int) bool {
	return q.Move(index, index-1)
}

// MoveDown swaps the item one slot toward the back.
func (q *Queue) MoveDown(index int) bool {
	return q.Move(index, index+1)
}

// Clear empties the queue and resets the position.
func (q *Queue) Clear() {
	q.items = nil
	q.position = -1
	q.shuffled = false
}

// CurrentIndex returns the playing index, or -1 before playback starts.
func (q *Queue) CurrentIndex() int {
	if q.position >= 0 && q.position < len(q.items) {
		return q.position
	}
	return -1
}

// Current returns the playing item.
func (q *Queue) Current() (QueueItem, bool) {
	i := q.CurrentIndex()
	if i < 0 {
		return QueueItem{}, false
	}
	return q.items[i], true
}

// JumpTo makes index the current item.
func (q *Queue) JumpTo(index int) (QueueItem, bool) {
	if index < 0 || index >= len(q.items) {
		return QueueItem{}, false
	}
	q.position = index
	return q.items[index], true
}

// Next advances per the repeat mode and returns the new current item.
// Returns false at the end of the queue with repeat off.
func (q *Queue) Next() (QueueItem, bool) {
	if len(q.items) == 0 {
		return QueueItem{}, false
	}
	switch q.repeat {
	case RepeatOne:
		if q.position < 0 {
			q.position = 0
		}
	case RepeatAll:
		q.position++
		if q.position >= len(q.items) {
			q.position = 0
		}
	default:
		q.position++
		if q.position >= len(q.items) {
			q.position = len(q.items) - 1
			return QueueItem{}, false
		}
	}
	return q.Current()
}

// Previous steps back per the repeat mode.
func (q *Queue) Previous() (QueueItem, bool) {
	if len(q.items) == 0 {
		return QueueItem{}, false
	}
	switch q.repeat {
	case RepeatOne:
		if q.position < 0 {
			q.position = 0
		}
	case RepeatAll:
		q.position--
		if q.position < 0 {
			q.position = len(q.items) - 1
		}
	default:
		q.position--
		if q.position < 0 {
			q.position = 0
			return QueueItem{}, false
		}
	}
	return q.Current()
}

// Shuffle randomizes the order of the items after the current one; played
// history and the current track stay put.
func (q *Queue) Shuffle() {
	start := q.position + 1
	if start < 0 {
		start = 0
	}
	tail := q.items[start:]
	rand.Shuffle(len(tail), func(i, j int) {
		tail[i], tail[j] = tail[j], tail[i]
	})
	q.shuffled = true
}

// Shuffled reports whether Shuffle has run since the last Clear.
func (q *Queue) Shuffled() bool { return q.shuffled }

// Repeat returns the active repeat mode.
func (q *Queue) Repeat() RepeatMode { return q.repeat }

// SetRepeat selects a repeat mode.
func (q *Queue) SetRepeat(mode RepeatMode) { q.repeat = mode }

// CycleRepeat steps off -> all -> one -> off.
func (q *Queue) CycleRepeat() RepeatMode {
	switch q.repeat {
	case RepeatOff:
		q.repeat = RepeatAll
	case RepeatAll:
		q.repeat = RepeatOne
	default:
		q.repeat = RepeatOff
	}
	return q.repeat
}

// Remaining counts the items after the current position.
func (q *Queue) Remaining() int {
	if q.position < 0 {
		return len(q.items)
	}
	rest := len(q.items) - q.position - 1
	if rest < 0 {
		return 0
	}
	return rest
}
