// Package platform integrates playback with OS media surfaces. On
// Windows this is the System Media Transport Controls overlay and the
// hardware media keys; elsewhere it is a no-op.
package platform

import (
	"time"

	"github.com/franz/music-minder/internal/audio"
)

// NowPlaying is the state pushed to the OS media surface.
type NowPlaying struct {
	TrackID     int64
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	Playing     bool
	Stopped     bool
	Position    time.Duration
	Duration    time.Duration
	QueueLength int
}

// MediaControls is the capability surface. Start may fail when the OS
// integration is unavailable; callers should log and continue without it.
type MediaControls interface {
	Start() error
	Stop() error
	// Update pushes fresh playback state. It never blocks; when the
	// integration is busy the previous pending update is replaced.
	Update(NowPlaying)
}

// SendFunc delivers a command to the playback engine.
type SendFunc func(audio.Command) bool
