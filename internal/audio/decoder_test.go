package audio

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV renders a 440 Hz sine as 16-bit mono PCM.
func writeTestWAV(t *testing.T, dir, name string, rate, frames int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           make([]int, frames),
	}
	for i := range buf.Data {
		buf.Data[i] = int(10000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize %s: %v", name, err)
	}
	return path
}

func TestOpenDecoderUnknownExtension(t *testing.T) {
	for _, name := range []string{"track.aiff", "track.m4a", "track", "notes.txt"} {
		_, err := OpenDecoder("/music/" + name)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("OpenDecoder(%q) err = %v, want ErrUnsupportedFormat", name, err)
		}
	}
}

func TestOpenDecoderMissingFile(t *testing.T) {
	_, err := OpenDecoder(filepath.Join(t.TempDir(), "gone.wav"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Error("a missing file is not an unsupported format")
	}
}

func TestOpenDecoderExtensionCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeTestWAV(t, dir, "loud.WAV", 8000, 800)

	dec, err := OpenDecoder(filepath.Join(dir, "loud.WAV"))
	if err != nil {
		t.Fatalf("OpenDecoder: %v", err)
	}
	dec.Close()
}

func TestWAVDecodeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	const rate, frames = 8000, 4000
	path := writeTestWAV(t, dir, "tone.wav", rate, frames)

	dec, err := OpenDecoder(path)
	if err != nil {
		t.Fatalf("OpenDecoder: %v", err)
	}
	defer dec.Close()

	if dec.SampleRate() != rate {
		t.Errorf("SampleRate = %d, want %d", dec.SampleRate(), rate)
	}
	if dec.Channels() != 1 {
		t.Errorf("Channels = %d, want 1", dec.Channels())
	}
	// Half a second of audio.
	if d := dec.Duration(); d < 450*time.Millisecond || d > 550*time.Millisecond {
		t.Errorf("Duration = %v, want ~500ms", d)
	}

	var all []float32
	buf := make([]float32, 1024)
	for {
		n, err := dec.Read(buf)
		all = append(all, buf[:n]...)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("Read: %v", err)
			}
			break
		}
	}
	if len(all) != frames {
		t.Fatalf("decoded %d samples, want %d", len(all), frames)
	}
	for i, s := range all {
		if s < -1 || s > 1 {
			t.Fatalf("sample %d = %v, out of [-1, 1]", i, s)
		}
	}
	// The sine peaks around 10000/32768.
	var peak float32
	for _, s := range all {
		if s > peak {
			peak = s
		}
	}
	if peak < 0.28 || peak > 0.32 {
		t.Errorf("peak = %v, want ~0.305", peak)
	}
}

func TestOpenDecoderRejectsGarbageWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.wav")
	if err := os.WriteFile(path, []byte("this is not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenDecoder(path); err == nil {
		t.Fatal("expected an error for a non-wav payload")
	}
}
