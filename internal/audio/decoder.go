package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	tmp3 "github.com/tcolgate/mp3"
)

// ErrUnsupportedFormat marks files no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder produces interleaved f32 frames from an audio file. Read fills
// dst with as many samples as are available and returns io.EOF at end of
// stream.
type Decoder interface {
	Read(dst []float32) (int, error)
	SampleRate() int
	Channels() int
	Duration() time.Duration
	Close() error
}

// OpenDecoder picks a decoder by file extension.
func OpenDecoder(path string) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return openFLAC(path)
	case ".mp3":
		return openMP3(path)
	case ".wav":
		return openWAV(path)
	case ".ogg", ".oga":
		return openOGG(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// flacDecoder streams frames via mewkiz/flac and normalizes the integer
// samples to [-1, 1].
type flacDecoder struct {
	f       *os.File
	stream  *flac.Stream
	pending []float32
	scale   float32
}

func openFLAC(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse flac stream: %w", err)
	}
	return &flacDecoder{
		f:      f,
		stream: stream,
		scale:  1.0 / float32(int64(1)<<(stream.Info.BitsPerSample-1)),
	}, nil
}

func (d *flacDecoder) Read(dst []float32) (int, error) {
	for len(d.pending) == 0 {
		frame, err := d.stream.ParseNext()
		if err != nil {
			return 0, err
		}
		channels := len(frame.Subframes)
		if channels == 0 {
			continue
		}
		samples := len(frame.Subframes[0].Samples)
		d.pending = make([]float32, 0, samples*channels)
		for i := 0; i < samples; i++ {
			for _, sub := range frame.Subframes {
				d.pending = append(d.pending, float32(sub.Samples[i])*d.scale)
			}
		}
	}
	n := copy(dst, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *flacDecoder) SampleRate() int { return int(d.stream.Info.SampleRate) }
func (d *flacDecoder) Channels() int   { return int(d.stream.Info.NChannels) }

func (d *flacDecoder) Duration() time.Duration {
	info := d.stream.Info
	if info.NSamples == 0 || info.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(info.NSamples) / float64(info.SampleRate) * float64(time.Second))
}

func (d *flacDecoder) Close() error { return d.f.Close() }

// mp3Decoder decodes PCM via go-mp3, which always yields 16-bit stereo at
// the stream rate. The duration comes from a fast frame walk at open time
// so it is known before any PCM is decoded.
type mp3Decoder struct {
	f        *os.File
	dec      *mp3.Decoder
	duration time.Duration
}

func openMP3(path string) (Decoder, error) {
	duration := probeMP3Duration(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse mp3 stream: %w", err)
	}
	return &mp3Decoder{f: f, dec: dec, duration: duration}, nil
}

// probeMP3Duration sums frame durations without decoding audio. Returns
// zero on any parse trouble; playback still works, only the progress
// display degrades.
func probeMP3Duration(path string) time.Duration {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	dec := tmp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	for {
		var frame tmp3.Frame
		if err := dec.Decode(&frame, &skipped); err != nil {
			break
		}
		total += frame.Duration()
	}
	return total
}

func (d *mp3Decoder) Read(dst []float32) (int, error) {
	// go-mp3 emits 16-bit little-endian stereo bytes.
	raw := make([]byte, len(dst)*2)
	n, err := d.dec.Read(raw)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	samples := n / 2
	for i := 0; i < samples; i++ {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		dst[i] = float32(v) / 32768.0
	}
	return samples, nil
}

func (d *mp3Decoder) SampleRate() int         { return d.dec.SampleRate() }
func (d *mp3Decoder) Channels() int           { return 2 }
func (d *mp3Decoder) Duration() time.Duration { return d.duration }
func (d *mp3Decoder) Close() error            { return d.f.Close() }

// wavDecoder reads PCM through go-audio/wav.
type wavDecoder struct {
	f        *os.File
	dec      *wav.Decoder
	scale    float32
	duration time.Duration
}

func openWAV(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnsupportedFormat)
	}
	duration, err := dec.Duration()
	if err != nil {
		duration = 0
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("locate wav data chunk: %w", err)
	}
	if dec.BitDepth == 0 || dec.BitDepth > 32 {
		f.Close()
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, dec.BitDepth)
	}
	return &wavDecoder{
		f:        f,
		dec:      dec,
		scale:    1.0 / float32(int64(1)<<(dec.BitDepth-1)),
		duration: duration,
	}, nil
}

func (d *wavDecoder) Read(dst []float32) (int, error) {
	buf := &goaudio.IntBuffer{Data: make([]int, len(dst))}
	n, err := d.dec.PCMBuffer(buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		dst[i] = float32(buf.Data[i]) * d.scale
	}
	return n, nil
}

func (d *wavDecoder) SampleRate() int         { return int(d.dec.SampleRate) }
func (d *wavDecoder) Channels() int           { return int(d.dec.NumChans) }
func (d *wavDecoder) Duration() time.Duration { return d.duration }
func (d *wavDecoder) Close() error            { return d.f.Close() }

// oggDecoder wraps jfreymuth/oggvorbis, which already yields interleaved
// f32.
type oggDecoder struct {
	f   *os.File
	dec *oggvorbis.Reader
}

func openOGG(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse ogg stream: %w", err)
	}
	return &oggDecoder{f: f, dec: dec}, nil
}

func (d *oggDecoder) Read(dst []float32) (int, error) {
	return d.dec.Read(dst)
}

func (d *oggDecoder) SampleRate() int { return d.dec.SampleRate() }
func (d *oggDecoder) Channels() int   { return d.dec.Channels() }

func (d *oggDecoder) Duration() time.Duration {
	if d.dec.SampleRate() == 0 {
		return 0
	}
	frames := d.dec.Length()
	return time.Duration(float64(frames) / float64(d.dec.SampleRate()) * float64(time.Second))
}

func (d *oggDecoder) Close() error { return d.f.Close() }
