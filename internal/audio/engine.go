package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/franz/music-minder/internal/audio/simd"
	"github.com/franz/music-minder/internal/util"
)

// Config tunes the playback engine.
type Config struct {
	// SampleRate is the device rate; sources at other rates are
	// resampled.
	SampleRate int
	// Channels is the device channel count.
	Channels int
	// Use16Bit feeds the device signed 16-bit samples instead of f32.
	Use16Bit bool
	// AutoQueue advances to the next queue item at end of track.
	AutoQueue bool
	// Visualization selects the analyzer mode.
	Visualization VisualizationMode
	// RingCapacity is the sample buffer between decode and device;
	// zero means about half a second of stereo audio.
	RingCapacity int
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		Channels:   2,
		AutoQueue:  true,
	}
}

const decodeChunk = 4096

// outputDevice is the minimal surface the engine needs from the audio
// backend; a test fake can stand in for a real device.
type outputDevice interface {
	Play()
	Pause()
	Close() error
}

type otoDevice struct{ p *oto.Player }

func (d otoDevice) Play()        { d.p.Play() }
func (d otoDevice) Pause()       { d.p.Pause() }
func (d otoDevice) Close() error { return d.p.Close() }

func defaultDeviceFactory(cfg Config, src io.Reader) (outputDevice, error) {
	format := oto.FormatFloat32LE
	if cfg.Use16Bit {
		format = oto.FormatSignedInt16LE
	}
	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       format,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready
	return otoDevice{p: octx.NewPlayer(src)}, nil
}

// Engine drives the playback pipeline: decode, resample, mix, convert,
// device. It owns a dedicated OS thread for the decode loop; the device
// backend pulls converted samples through Read on its own thread. All
// control flows through a non-blocking command channel.
type Engine struct {
	cfg    Config
	shared *SharedState
	ring   *Ring
	viz    *Visualizer

	mu    sync.Mutex
	queue *Queue

	commands chan Command
	events   chan Event
	vizOut   chan SpectrumData

	deviceFactory func(Config, io.Reader) (outputDevice, error)
	device        outputDevice

	// Decode-loop state, touched only from run().
	state         State
	resumeTo      State
	dec           Decoder
	res           *Resampler
	current       QueueItem
	decodeBuf     []float32
	trackDuration time.Duration
	srcFrames     uint64
	srcRate       int
	srcChannels   int

	// Device-callback scratch, touched only from Read().
	readBuf []float32
	i16Buf  []int16
}

// NewEngine creates an engine; Start opens the device and launches the
// loop.
func NewEngine(cfg Config) *Engine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = cfg.SampleRate * cfg.Channels / 2
	}
	// The pump stalls forever if a full decode chunk can never fit.
	if cfg.RingCapacity < decodeChunk*4 {
		cfg.RingCapacity = decodeChunk * 4
	}
	return &Engine{
		cfg:           cfg,
		shared:        NewSharedState(),
		ring:          NewRing(cfg.RingCapacity),
		viz:           NewVisualizer(cfg.Visualization),
		queue:         NewQueue(),
		commands:      make(chan Command, 32),
		events:        make(chan Event, 64),
		vizOut:        make(chan SpectrumData, 4),
		deviceFactory: defaultDeviceFactory,
		state:         StateStopped,
	}
}

// Start opens the output device and runs the engine until the context
// ends or a shutdown command arrives. The events channel closes when the
// loop exits.
func (e *Engine) Start(ctx context.Context) error {
	device, err := e.deviceFactory(e.cfg, e)
	if err != nil {
		return err
	}
	e.device = device
	util.DebugLog("Audio engine started (%d Hz, %d ch, %s)",
		e.cfg.SampleRate, e.cfg.Channels, simd.DetectLevel())
	go e.run(ctx)
	return nil
}

// Send delivers a command without blocking; a full mailbox drops the
// command and returns false.
func (e *Engine) Send(cmd Command) bool {
	select {
	case e.commands <- cmd:
		return true
	default:
		return false
	}
}

// Events returns the notification channel. It closes when the engine
// stops.
func (e *Engine) Events() <-chan Event { return e.events }

// Shared exposes the lock-free state for volume and position reads.
func (e *Engine) Shared() *SharedState { return e.shared }

// Visualization returns the freshest spectrum snapshot, or nil.
func (e *Engine) Visualization() *SpectrumData {
	var latest *SpectrumData
	for {
		select {
		case snap := <-e.vizOut:
			latest = &snap
		default:
			return latest
		}
	}
}

// QueueSnapshot returns the queue contents and current index.
func (e *Engine) QueueSnapshot() ([]QueueItem, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Items(), e.queue.CurrentIndex()
}

func (e *Engine) run(ctx context.Context) {
	runtime.LockOSThread()
	defer func() {
		e.closeTrack()
		if e.device != nil {
			e.device.Close()
		}
		close(e.events)
	}()

	for {
		if (e.state == StatePlaying || e.state == StateLoading) && e.dec != nil {
			select {
			case <-ctx.Done():
				return
			case cmd := <-e.commands:
				if e.handle(cmd) {
					return
				}
			default:
				e.pump()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.commands:
			if e.handle(cmd) {
				return
			}
		}
	}
}

// pump decodes one chunk and pushes it downstream. Called only while
// Loading or Playing with an open decoder.
func (e *Engine) pump() {
	if e.ring.Free() < decodeChunk*2 {
		time.Sleep(5 * time.Millisecond)
		return
	}

	if e.decodeBuf == nil {
		e.decodeBuf = make([]float32, decodeChunk)
	}
	buf := e.decodeBuf
	n, err := e.dec.Read(buf)
	if n > 0 {
		if e.state == StateLoading {
			e.setState(StatePlaying)
			e.shared.SetPlaying(true)
			e.device.Play()
		}
		e.srcFrames += uint64(n / e.srcChannels)
		e.shared.SetPosition(time.Duration(float64(e.srcFrames) / float64(e.srcRate) * float64(time.Second)))

		samples := adaptChannels(buf[:n], e.srcChannels, e.cfg.Channels)
		e.push(e.res.Process(samples))
		e.feedViz(samples)
	}
	if err == nil {
		return
	}
	if errors.Is(err, io.EOF) {
		e.push(e.res.Flush())
		e.finishTrack()
		return
	}
	e.fail(fmt.Errorf("decode %s: %w", e.current.Path, err))
}

// push writes resampled output to the ring, waiting for the consumer when
// it is full.
func (e *Engine) push(samples []float32) {
	for len(samples) > 0 {
		n := e.ring.Write(samples)
		samples = samples[n:]
		if len(samples) > 0 {
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func (e *Engine) feedViz(samples []float32) {
	snap := e.viz.Process(samples)
	if snap == nil {
		return
	}
	select {
	case e.vizOut <- *snap:
	default:
		// Full: drop the oldest frame and retry once.
		select {
		case <-e.vizOut:
		default:
		}
		select {
		case e.vizOut <- *snap:
		default:
		}
	}
}

// handle runs one command; reports whether the engine should shut down.
func (e *Engine) handle(cmd Command) bool {
	switch cmd.Type {
	case CmdPlay:
		e.play()
	case CmdPause:
		if e.state == StatePlaying {
			e.setState(StatePaused)
			e.shared.SetPlaying(false)
		}
	case CmdToggle:
		switch e.state {
		case StatePlaying:
			e.setState(StatePaused)
			e.shared.SetPlaying(false)
		case StatePaused, StateStopped, StateErrored:
			e.play()
		}
	case CmdStop:
		e.stop()
	case CmdNext:
		e.mu.Lock()
		item, ok := e.queue.Next()
		e.mu.Unlock()
		if ok {
			e.loadTrack(item)
		} else {
			e.stop()
		}
	case CmdPrevious:
		// Restart the track when more than a few seconds in, as CD
		// players do.
		if e.shared.Position() > 3*time.Second {
			e.seekTo(0)
			break
		}
		e.mu.Lock()
		item, ok := e.queue.Previous()
		e.mu.Unlock()
		if ok {
			e.loadTrack(item)
		} else {
			e.seekTo(0)
		}
	case CmdSeek:
		e.seekTo(cmd.Seek)
	case CmdSeekBy:
		target := e.shared.Position() + cmd.Delta
		if target < 0 {
			target = 0
		}
		e.seekTo(target)
	case CmdSetVolume:
		e.shared.SetVolume(cmd.Volume)
	case CmdEnqueue:
		e.mu.Lock()
		e.queue.Append(cmd.Item)
		e.mu.Unlock()
	case CmdJumpTo:
		e.mu.Lock()
		item, ok := e.queue.JumpTo(cmd.Index)
		e.mu.Unlock()
		if ok {
			e.loadTrack(item)
		}
	case CmdRemove:
		e.mu.Lock()
		e.queue.Remove(cmd.Index)
		e.mu.Unlock()
	case CmdMove:
		e.mu.Lock()
		e.queue.Move(cmd.Index, cmd.To)
		e.mu.Unlock()
	case CmdShuffle:
		e.mu.Lock()
		e.queue.Shuffle()
		e.mu.Unlock()
	case CmdSetRepeat:
		e.mu.Lock()
		e.queue.SetRepeat(cmd.Repeat)
		e.mu.Unlock()
	case CmdShutdown:
		return true
	}
	return false
}

// play resumes from pause or starts the current queue item.
func (e *Engine) play() {
	switch e.state {
	case StatePlaying, StateLoading:
		return
	case StatePaused:
		e.setState(StatePlaying)
		e.shared.SetPlaying(true)
		e.device.Play()
		return
	}

	e.mu.Lock()
	item, ok := e.queue.Current()
	if !ok {
		item, ok = e.queue.Next()
	}
	e.mu.Unlock()
	if ok {
		e.loadTrack(item)
	}
}

func (e *Engine) stop() {
	e.closeTrack()
	e.ring.RequestDrain()
	e.shared.SetPlaying(false)
	e.shared.SetPosition(0)
	if e.state != StateStopped {
		e.setState(StateStopped)
	}
}

// loadTrack opens the item's decoder and enters Loading. On decode
// failure the engine reports Errored and skips to the next item; at most
// one full pass over the queue is attempted so a directory of bad files
// cannot spin the loop.
func (e *Engine) loadTrack(item QueueItem) {
	e.mu.Lock()
	attempts := e.queue.Len()
	e.mu.Unlock()

	for ; attempts > 0; attempts-- {
		e.closeTrack()
		e.ring.RequestDrain()
		e.setState(StateLoading)

		dec, err := OpenDecoder(item.Path)
		if err == nil {
			e.dec = dec
			e.srcRate = dec.SampleRate()
			e.srcChannels = dec.Channels()
			e.res = NewResampler(e.srcRate, e.cfg.SampleRate, e.cfg.Channels)
			e.current = item
			e.trackDuration = dec.Duration()
			e.srcFrames = 0
			e.shared.SetPosition(0)
			e.viz.Reset()
			e.emit(Event{
				Type:       EventTrackLoaded,
				Item:       item,
				Duration:   e.trackDuration,
				SampleRate: e.srcRate,
				Channels:   e.srcChannels,
			})
			return
		}

		e.setState(StateErrored)
		e.emit(Event{Type: EventError, Item: item, Err: err})
		util.WarnLog("Skipping unplayable %s: %v", item.Path, err)

		e.mu.Lock()
		next, ok := e.queue.Next()
		e.mu.Unlock()
		if !ok {
			e.stop()
			return
		}
		item = next
	}
	e.stop()
}

// fail handles a mid-stream decode error: report, then skip ahead.
func (e *Engine) fail(err error) {
	e.setState(StateErrored)
	e.emit(Event{Type: EventError, Item: e.current, Err: err})
	e.closeTrack()

	e.mu.Lock()
	item, ok := e.queue.Next()
	e.mu.Unlock()
	if ok {
		e.loadTrack(item)
	} else {
		e.stop()
	}
}

// finishTrack handles a clean end of stream.
func (e *Engine) finishTrack() {
	e.emit(Event{Type: EventFinished, Item: e.current})
	e.closeTrack()

	if e.cfg.AutoQueue {
		e.mu.Lock()
		item, ok := e.queue.Next()
		e.mu.Unlock()
		if ok {
			e.loadTrack(item)
			return
		}
	}
	e.stop()
}

// seekTo reopens the decoder and discards frames up to the target. The
// ring and resampler reset so no stale audio plays.
func (e *Engine) seekTo(target time.Duration) {
	if e.dec == nil || (e.state != StatePlaying && e.state != StatePaused) {
		return
	}
	prior := e.state
	e.setState(StateSeeking)
	e.shared.SetPlaying(false)

	dec, err := OpenDecoder(e.current.Path)
	if err != nil {
		e.fail(fmt.Errorf("reopen for seek: %w", err))
		return
	}
	e.dec.Close()
	e.dec = dec
	e.res.Reset()
	e.ring.RequestDrain()

	skipFrames := uint64(target.Seconds() * float64(e.srcRate))
	var skipped uint64
	buf := make([]float32, decodeChunk)
	for skipped < skipFrames {
		n, err := dec.Read(buf)
		if n > 0 {
			skipped += uint64(n / e.srcChannels)
		}
		if err != nil {
			break
		}
	}
	e.srcFrames = skipped
	e.shared.SetPosition(time.Duration(float64(skipped) / float64(e.srcRate) * float64(time.Second)))

	e.setState(prior)
	if prior == StatePlaying {
		e.shared.SetPlaying(true)
	}
}

func (e *Engine) closeTrack() {
	if e.dec != nil {
		e.dec.Close()
		e.dec = nil
	}
	if e.res != nil {
		e.res.Reset()
	}
}

func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.state = s
	e.emit(Event{Type: EventStateChanged, State: s})
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		util.DebugLog("Player event dropped: %d", ev.Type)
	}
}

// Read is the device pull path: it drains the ring, applies volume, and
// encodes to the device format. Runs on the backend's thread; silence is
// emitted whenever playback is inactive or the ring runs dry.
func (e *Engine) Read(p []byte) (int, error) {
	bytesPer := 4
	if e.cfg.Use16Bit {
		bytesPer = 2
	}
	n := len(p) / bytesPer
	if n == 0 {
		return 0, nil
	}

	if cap(e.readBuf) < n {
		e.readBuf = make([]float32, n)
	}
	buf := e.readBuf[:n]

	got := 0
	if e.shared.Playing() {
		got = e.ring.Read(buf)
		if got < n {
			e.shared.recordUnderrun()
		}
	} else {
		// Keep honoring drain requests while silent, or stale samples
		// would pin the ring full and stall the next track's decode.
		e.ring.ConsumeDrain()
	}
	for i := got; i < n; i++ {
		buf[i] = 0
	}

	vol := e.shared.Volume()
	if e.cfg.Use16Bit {
		if cap(e.i16Buf) < n {
			e.i16Buf = make([]int16, n)
		}
		out := e.i16Buf[:n]
		simd.F32ToI16WithVolume(out, buf, vol)
		for i, v := range out {
			binary.LittleEndian.PutUint16(p[i*2:], uint16(v))
		}
	} else {
		simd.ApplyVolume(buf[:got], vol)
		for i, v := range buf {
			binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
		}
	}

	e.shared.addFramesOut(uint64(n / e.cfg.Channels))
	return n * bytesPer, nil
}

// adaptChannels maps interleaved samples between channel counts: mono
// duplicates, stereo-to-mono averages, anything else keeps the shared
// leading channels and zero-fills the rest.
func adaptChannels(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}
	frames := len(samples) / from
	out := make([]float32, frames*to)
	switch {
	case from == 1:
		for f := 0; f < frames; f++ {
			for c := 0; c < to; c++ {
				out[f*to+c] = samples[f]
			}
		}
	case to == 1:
		for f := 0; f < frames; f++ {
			var sum float32
			for c := 0; c < from; c++ {
				sum += samples[f*from+c]
			}
			out[f] = sum / float32(from)
		}
	default:
		shared := from
		if to < shared {
			shared = to
		}
		for f := 0; f < frames; f++ {
			for c := 0; c < shared; c++ {
				out[f*to+c] = samples[f*from+c]
			}
		}
	}
	return out
}
