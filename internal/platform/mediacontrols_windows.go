//go:build windows

package platform

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/zzl/go-com/com"
	"github.com/zzl/go-win32api/v2/win32"
	"github.com/zzl/go-winrtapi/winrt"

	"github.com/franz/music-minder/internal/audio"
	"github.com/franz/music-minder/internal/util"
)

const (
	smtcClassName           = "Windows.Media.SystemMediaTransportControls"
	timelineClassName       = "Windows.Media.SystemMediaTransportControlsTimelineProperties"
	appMediaID              = "MusicMinder"
	hiddenWindowClass       = "MinderMediaWindow"
	timespanTickPerMS int64 = 10000
	// The hidden window's message queue must be pumped or the SMTC
	// callbacks never fire.
	pumpInterval = 10 * time.Millisecond
)

type windowsControls struct {
	send SendFunc

	mu      sync.Mutex
	updates chan NowPlaying
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewMediaControls returns the SMTC integration.
func NewMediaControls(send SendFunc) MediaControls {
	return &windowsControls{send: send}
}

func (c *windowsControls) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}

	updates := make(chan NowPlaying, 1)
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	readyCh := make(chan error, 1)

	c.updates = updates
	c.stop = stopCh
	c.done = doneCh
	c.running = true
	c.mu.Unlock()

	go c.run(updates, stopCh, doneCh, readyCh)

	if err := <-readyCh; err != nil {
		c.mu.Lock()
		c.running = false
		c.updates = nil
		c.stop = nil
		c.done = nil
		c.mu.Unlock()
		<-doneCh
		return err
	}
	return nil
}

func (c *windowsControls) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	stopCh := c.stop
	doneCh := c.done
	c.running = false
	c.updates = nil
	c.stop = nil
	c.done = nil
	c.mu.Unlock()

	close(stopCh)
	<-doneCh
	return nil
}

func (c *windowsControls) Update(state NowPlaying) {
	c.mu.Lock()
	running := c.running
	updates := c.updates
	c.mu.Unlock()

	if !running || updates == nil {
		return
	}

	// Replace-on-full: only the latest state matters.
	select {
	case updates <- state:
	default:
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- state:
		default:
		}
	}
}

// run owns the WinRT objects for their whole lifetime. COM apartment
// rules tie them to the thread that created them, so everything happens
// on this goroutine.
func (c *windowsControls) run(
	updates <-chan NowPlaying,
	stopCh <-chan struct{},
	doneCh chan<- struct{},
	readyCh chan<- error,
) {
	defer close(doneCh)

	init := winrt.InitializeMt()
	defer init.Uninitialize()

	hwnd, err := createHiddenWindow()
	if err != nil {
		readyCh <- err
		return
	}
	defer win32.DestroyWindow(hwnd)

	rt, err := newSMTCRuntime(c.send, hwnd)
	if err != nil {
		readyCh <- err
		return
	}
	defer rt.shutdown()

	readyCh <- nil

	pump := time.NewTicker(pumpInterval)
	defer pump.Stop()

	for {
		select {
		case <-stopCh:
			return
		case state := <-updates:
			rt.apply(state)
		case <-pump.C:
			pumpMessages()
		}
	}
}

// createHiddenWindow registers a throwaway window class and creates an
// invisible top-level window. SMTC refuses to attach to a message-only
// window, so this must be a real one that simply never shows.
func createHiddenWindow() (win32.HWND, error) {
	hInstance := win32.GetModuleHandle(nil)
	className := win32.StrToPwstr(hiddenWindowClass)

	wc := win32.WNDCLASSEX{
		LpfnWndProc:   syscall.NewCallback(hiddenWndProc),
		HInstance:     hInstance,
		LpszClassName: className,
	}
	wc.CbSize = uint32(unsafe.Sizeof(wc))
	if atom, errno := win32.RegisterClassEx(&wc); atom == 0 {
		if errno != win32.ERROR_CLASS_ALREADY_EXISTS {
			return 0, fmt.Errorf("register window class: %v", errno)
		}
	}

	hwnd, errno := win32.CreateWindowEx(
		0,
		className,
		win32.StrToPwstr("Music Minder"),
		win32.WS_OVERLAPPED,
		0, 0, 0, 0,
		0, 0, hInstance, nil,
	)
	if hwnd == 0 {
		return 0, fmt.Errorf("create hidden window: %v", errno)
	}
	return hwnd, nil
}

func hiddenWndProc(hwnd win32.HWND, msg uint32, wParam win32.WPARAM, lParam win32.LPARAM) win32.LRESULT {
	return win32.DefWindowProc(hwnd, msg, wParam, lParam)
}

func pumpMessages() {
	var msg win32.MSG
	for win32.PeekMessage(&msg, 0, 0, 0, win32.PM_REMOVE) != win32.FALSE {
		win32.TranslateMessage(&msg)
		win32.DispatchMessage(&msg)
	}
}

type smtcRuntime struct {
	send        SendFunc
	controls    *winrt.ISystemMediaTransportControls
	controls2   *winrt.ISystemMediaTransportControls2
	updater     *winrt.ISystemMediaTransportControlsDisplayUpdater
	musicProps  *winrt.IMusicDisplayProperties
	musicProps2 *winrt.IMusicDisplayProperties2
	timeline      *winrt.ISystemMediaTransportControlsTimelineProperties
	buttonToken   winrt.EventRegistrationToken
	positionToken winrt.EventRegistrationToken
	hasTrack      bool
	lastTrackID   int64
}

func newSMTCRuntime(send SendFunc, hwnd win32.HWND) (*smtcRuntime, error) {
	if hwnd == 0 {
		return nil, errors.New("smtc requires a valid window handle")
	}

	hs := winrt.NewHStr(smtcClassName)
	defer hs.Dispose()

	var interop *win32.ISystemMediaTransportControlsInterop
	hr := win32.RoGetActivationFactory(hs.Ptr, &win32.IID_ISystemMediaTransportControlsInterop, unsafe.Pointer(&interop))
	if win32.FAILED(hr) {
		return nil, fmt.Errorf("smtc interop activation factory: %s", win32.HRESULT_ToString(hr))
	}
	if interop == nil {
		return nil, errors.New("smtc interop activation factory returned nil")
	}
	com.AddToScope(interop)

	var controls *winrt.ISystemMediaTransportControls
	controlsHR := interop.GetForWindow(hwnd, &winrt.IID_ISystemMediaTransportControls, unsafe.Pointer(&controls))
	if win32.FAILED(controlsHR) {
		return nil, fmt.Errorf("smtc GetForWindow: %s", win32.HRESULT_ToString(controlsHR))
	}
	if controls == nil {
		return nil, errors.New("smtc unavailable for this window")
	}
	com.AddToScope(controls)

	rt := &smtcRuntime{send: send, controls: controls}

	rt.controls.Put_IsEnabled(true)
	rt.controls.Put_IsPlayEnabled(true)
	rt.controls.Put_IsPauseEnabled(true)
	rt.controls.Put_IsStopEnabled(true)
	rt.controls.Put_IsNextEnabled(true)
	rt.controls.Put_IsPreviousEnabled(true)

	rt.updater = rt.controls.Get_DisplayUpdater()
	if rt.updater != nil {
		rt.updater.Put_Type(winrt.MediaPlaybackType_Music)
		rt.updater.Put_AppMediaId(appMediaID)
		rt.musicProps = rt.updater.Get_MusicProperties()
		if rt.musicProps != nil {
			var musicProps2 *winrt.IMusicDisplayProperties2
			queryHR := rt.musicProps.QueryInterface(&winrt.IID_IMusicDisplayProperties2, unsafe.Pointer(&musicProps2))
			if !win32.FAILED(queryHR) && musicProps2 != nil {
				com.AddToScope(musicProps2)
				rt.musicProps2 = musicProps2
			}
		}
		rt.updater.Update()
	}

	var controls2 *winrt.ISystemMediaTransportControls2
	queryHR := rt.controls.QueryInterface(&winrt.IID_ISystemMediaTransportControls2, unsafe.Pointer(&controls2))
	if !win32.FAILED(queryHR) && controls2 != nil {
		com.AddToScope(controls2)
		rt.controls2 = controls2
		rt.timeline = newTimelineProperties()
		rt.positionToken = rt.controls2.Add_PlaybackPositionChangeRequested(rt.onPositionChangeRequested)
	}

	rt.buttonToken = rt.controls.Add_ButtonPressed(rt.onButtonPressed)

	// Some Windows builds only materialize the overlay after seeing a
	// playing transition, so cycle Playing -> Paused once up front.
	rt.controls.Put_PlaybackStatus(winrt.MediaPlaybackStatus_Playing)
	rt.controls.Put_PlaybackStatus(winrt.MediaPlaybackStatus_Paused)

	return rt, nil
}

func (rt *smtcRuntime) shutdown() {
	if rt.controls == nil {
		return
	}
	if rt.controls2 != nil {
		rt.controls2.Remove_PlaybackPositionChangeRequested(rt.positionToken)
	}
	rt.controls.Remove_ButtonPressed(rt.buttonToken)
	rt.controls.Put_IsEnabled(false)
}

func (rt *smtcRuntime) apply(state NowPlaying) {
	if rt.controls == nil {
		return
	}

	rt.controls.Put_PlaybackStatus(mapPlaybackStatus(state))

	hasQueue := state.QueueLength > 0
	hasTrack := state.TrackID != 0 || state.Title != ""

	rt.controls.Put_IsPlayEnabled(hasQueue)
	rt.controls.Put_IsPauseEnabled(hasTrack)
	rt.controls.Put_IsStopEnabled(hasTrack)
	rt.controls.Put_IsNextEnabled(hasQueue)
	rt.controls.Put_IsPreviousEnabled(hasTrack)

	if !hasTrack {
		rt.clearTrack()
		rt.applyTimeline(0, 0)
		return
	}

	if !rt.hasTrack || rt.lastTrackID != state.TrackID {
		rt.applyMetadata(state)
		rt.hasTrack = true
		rt.lastTrackID = state.TrackID
	}

	pos := state.Position
	if pos < 0 {
		pos = 0
	}
	if state.Duration > 0 && pos > state.Duration {
		pos = state.Duration
	}
	rt.applyTimeline(pos, state.Duration)
}

func (rt *smtcRuntime) clearTrack() {
	if !rt.hasTrack {
		return
	}
	rt.hasTrack = false
	rt.lastTrackID = 0

	if rt.updater == nil {
		return
	}
	rt.updater.ClearAll()
	rt.updater.Put_Type(winrt.MediaPlaybackType_Music)
	rt.updater.Put_AppMediaId(appMediaID)
	rt.updater.Update()
}

func (rt *smtcRuntime) applyMetadata(state NowPlaying) {
	if rt.updater == nil {
		return
	}

	rt.updater.Put_Type(winrt.MediaPlaybackType_Music)
	rt.updater.Put_AppMediaId(appMediaID)

	if rt.musicProps != nil {
		artist := normalizeLabel(state.Artist, "Unknown Artist")
		rt.musicProps.Put_Title(normalizeLabel(state.Title, "Unknown Title"))
		rt.musicProps.Put_Artist(artist)
		rt.musicProps.Put_AlbumArtist(artist)
	}
	if rt.musicProps2 != nil {
		rt.musicProps2.Put_AlbumTitle(normalizeLabel(state.Album, "Unknown Album"))
		if state.TrackNumber > 0 {
			rt.musicProps2.Put_TrackNumber(uint32(state.TrackNumber))
		} else {
			rt.musicProps2.Put_TrackNumber(0)
		}
	}

	rt.updater.Update()
}

func (rt *smtcRuntime) applyTimeline(position, duration time.Duration) {
	if rt.controls2 == nil || rt.timeline == nil {
		return
	}

	rt.timeline.Put_StartTime(durationToTimeSpan(0))
	rt.timeline.Put_MinSeekTime(durationToTimeSpan(0))
	rt.timeline.Put_Position(durationToTimeSpan(position))
	rt.timeline.Put_EndTime(durationToTimeSpan(duration))
	rt.timeline.Put_MaxSeekTime(durationToTimeSpan(duration))

	rt.controls2.UpdateTimelineProperties(rt.timeline)
}

func (rt *smtcRuntime) onButtonPressed(
	_ *winrt.ISystemMediaTransportControls,
	args *winrt.ISystemMediaTransportControlsButtonPressedEventArgs,
) com.Error {
	if rt.send == nil || args == nil {
		return com.OK
	}

	var cmd audio.Command
	switch args.Get_Button() {
	case winrt.SystemMediaTransportControlsButton_Play:
		cmd = audio.Command{Type: audio.CmdPlay}
	case winrt.SystemMediaTransportControlsButton_Pause:
		cmd = audio.Command{Type: audio.CmdPause}
	case winrt.SystemMediaTransportControlsButton_Stop:
		cmd = audio.Command{Type: audio.CmdStop}
	case winrt.SystemMediaTransportControlsButton_Next:
		cmd = audio.Command{Type: audio.CmdNext}
	case winrt.SystemMediaTransportControlsButton_Previous:
		cmd = audio.Command{Type: audio.CmdPrevious}
	default:
		return com.OK
	}

	// The engine mailbox is non-blocking; never stall the COM callback.
	go func() {
		if !rt.send(cmd) {
			util.WarnLog("Media key command dropped: engine busy")
		}
	}()
	return com.OK
}

// onPositionChangeRequested forwards scrubbing on the OS overlay to the
// engine as an absolute seek.
func (rt *smtcRuntime) onPositionChangeRequested(
	_ *winrt.ISystemMediaTransportControls,
	args *winrt.IPlaybackPositionChangeRequestedEventArgs,
) com.Error {
	if rt.send == nil || args == nil {
		return com.OK
	}

	cmd := audio.Command{
		Type: audio.CmdSeek,
		Seek: timeSpanToDuration(args.Get_RequestedPlaybackPosition()),
	}
	go func() {
		if !rt.send(cmd) {
			util.WarnLog("Media seek request dropped: engine busy")
		}
	}()
	return com.OK
}

func newTimelineProperties() *winrt.ISystemMediaTransportControlsTimelineProperties {
	hs := winrt.NewHStr(timelineClassName)
	defer hs.Dispose()

	var inspect *win32.IInspectable
	hr := win32.RoActivateInstance(hs.Ptr, &inspect)
	if win32.FAILED(hr) || inspect == nil {
		return nil
	}

	timeline := (*winrt.ISystemMediaTransportControlsTimelineProperties)(unsafe.Pointer(inspect))
	com.AddToScope(timeline)
	return timeline
}

func mapPlaybackStatus(state NowPlaying) winrt.MediaPlaybackStatus {
	switch {
	case state.Stopped:
		return winrt.MediaPlaybackStatus_Stopped
	case state.Playing:
		return winrt.MediaPlaybackStatus_Playing
	default:
		return winrt.MediaPlaybackStatus_Paused
	}
}

func durationToTimeSpan(d time.Duration) winrt.TimeSpan {
	if d < 0 {
		d = 0
	}
	return winrt.TimeSpan{Duration: d.Milliseconds() * timespanTickPerMS}
}

func timeSpanToDuration(ts winrt.TimeSpan) time.Duration {
	if ts.Duration < 0 {
		return 0
	}
	return time.Duration(ts.Duration/timespanTickPerMS) * time.Millisecond
}

func normalizeLabel(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
