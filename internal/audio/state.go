package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// State is the playback state machine position.
type State int

const (
	StateStopped State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateSeeking
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateSeeking:
		return "seeking"
	case StateErrored:
		return "errored"
	default:
		return "stopped"
	}
}

// MaxVolume allows a modest boost above unity.
const MaxVolume = 1.1

// SharedState is the lock-free state shared with the device callback. The
// callback runs on a high-priority thread and must never take a lock, so
// everything here is atomic.
type SharedState struct {
	volumeBits    atomic.Uint32
	playing       atomic.Bool
	positionNanos atomic.Int64
	underruns     atomic.Uint32
	framesOut     atomic.Uint64
}

// NewSharedState returns shared state at unity volume.
func NewSharedState() *SharedState {
	s := &SharedState{}
	s.SetVolume(1.0)
	return s
}

// Volume returns the current volume.
func (s *SharedState) Volume() float32 {
	return math.Float32frombits(s.volumeBits.Load())
}

// SetVolume clamps to [0, MaxVolume] and stores.
func (s *SharedState) SetVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > MaxVolume {
		v = MaxVolume
	}
	s.volumeBits.Store(math.Float32bits(v))
}

// Playing reports whether the callback should emit audio.
func (s *SharedState) Playing() bool { return s.playing.Load() }

// SetPlaying flips the callback between audio and silence.
func (s *SharedState) SetPlaying(v bool) { s.playing.Store(v) }

// Position returns the playback position within the current track.
func (s *SharedState) Position() time.Duration {
	return time.Duration(s.positionNanos.Load())
}

// SetPosition records the playback position.
func (s *SharedState) SetPosition(d time.Duration) {
	s.positionNanos.Store(int64(d))
}

// Underruns counts device callbacks that found the ring empty.
func (s *SharedState) Underruns() uint32 { return s.underruns.Load() }

func (s *SharedState) recordUnderrun() { s.underruns.Add(1) }

// FramesOut is the total frames handed to the device.
func (s *SharedState) FramesOut() uint64 { return s.framesOut.Load() }

func (s *SharedState) addFramesOut(n uint64) { s.framesOut.Add(n) }

// CommandType identifies a player command.
type CommandType int

const (
	CmdPlay CommandType = iota
	CmdPause
	CmdToggle
	CmdStop
	CmdNext
	CmdPrevious
	CmdSeek
	CmdSeekBy
	CmdSetVolume
	CmdEnqueue
	CmdJumpTo
	CmdRemove
	CmdMove
	CmdShuffle
	CmdSetRepeat
	CmdShutdown
)

// Command is one message to the engine loop. Only the fields relevant to
// the Type are read.
type Command struct {
	Type   CommandType
	Seek   time.Duration
	Delta  time.Duration
	Volume float32
	Item   QueueItem
	Index  int
	To     int
	Repeat RepeatMode
}

// EventType identifies a player notification.
type EventType int

const (
	EventStateChanged EventType = iota
	EventTrackLoaded
	EventPosition
	EventFinished
	EventError
)

// Event is one notification from the engine loop.
type Event struct {
	Type       EventType
	State      State
	Item       QueueItem
	Duration   time.Duration
	SampleRate int
	Channels   int
	Position   time.Duration
	Err        error
}
