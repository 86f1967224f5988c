//go:build !windows

package platform

type noopControls struct{}

// NewMediaControls returns the integration for this OS; outside Windows
// there is nothing to integrate with.
func NewMediaControls(_ SendFunc) MediaControls {
	return noopControls{}
}

func (noopControls) Start() error      { return nil }
func (noopControls) Stop() error       { return nil }
func (noopControls) Update(NowPlaying) {}
