//go:build !windows

package platform

import (
	"testing"

	"github.com/franz/music-minder/internal/audio"
)

func TestNoopControls(t *testing.T) {
	mc := NewMediaControls(func(audio.Command) bool { return true })
	if mc == nil {
		t.Fatal("NewMediaControls returned nil")
	}
	if err := mc.Start(); err != nil {
		t.Errorf("Start: %v", err)
	}
	mc.Update(NowPlaying{Title: "x", Playing: true})
	if err := mc.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
