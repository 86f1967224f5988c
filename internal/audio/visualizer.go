package audio

import (
	"math"
	"strings"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

// VisualizationMode selects what the visualizer computes.
type VisualizationMode int

const (
	VizOff VisualizationMode = iota
	VizSpectrum
	VizWaveform
	VizVuMeter
)

func (m VisualizationMode) String() string {
	switch m {
	case VizSpectrum:
		return "spectrum"
	case VizWaveform:
		return "waveform"
	case VizVuMeter:
		return "vu_meter"
	default:
		return "off"
	}
}

// ParseVisualizationMode maps a config string to a mode; unknown values
// turn visualization off.
func ParseVisualizationMode(s string) VisualizationMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spectrum":
		return VizSpectrum
	case "waveform":
		return VizWaveform
	case "vu_meter", "vumeter", "vu":
		return VizVuMeter
	default:
		return VizOff
	}
}

// SpectrumData is one visualization snapshot.
type SpectrumData struct {
	// Spectrum holds per-band magnitudes in [0, 1], low frequencies
	// first.
	Spectrum []float32
	Bands    int
	// Peak and RMS levels in [0, 1] over the snapshot window.
	Peak float32
	RMS  float32
	// Waveform holds downsampled raw samples for an oscilloscope view.
	Waveform []float32
}

const (
	vizFFTSize   = 2048
	vizBands     = 32
	vizMaxRate   = 60 // snapshots per second, at most
	vizWavePts   = 256
	vizSmoothing = 0.7
)

// Visualizer turns decoded samples into spectrum snapshots. It buffers a
// Hann-windowed FFT frame and emits at most vizMaxRate snapshots per
// second; extra audio just refreshes the window.
type Visualizer struct {
	mode VisualizationMode

	window   []float64
	input    []float64
	inputPos int

	prev     []float32
	lastEmit time.Time
}

// NewVisualizer starts in the given mode.
func NewVisualizer(mode VisualizationMode) *Visualizer {
	window := make([]float64, vizFFTSize)
	for i := range window {
		x := 2 * math.Pi * float64(i) / float64(vizFFTSize-1)
		window[i] = 0.5 * (1 - math.Cos(x))
	}
	return &Visualizer{
		mode:   mode,
		window: window,
		input:  make([]float64, vizFFTSize),
		prev:   make([]float32, vizBands),
	}
}

// Mode returns the active mode.
func (v *Visualizer) Mode() VisualizationMode { return v.mode }

// SetMode switches modes and clears smoothing history.
func (v *Visualizer) SetMode(mode VisualizationMode) {
	v.mode = mode
	v.Reset()
}

// Reset clears the FFT window and smoothing history.
func (v *Visualizer) Reset() {
	v.inputPos = 0
	for i := range v.input {
		v.input[i] = 0
	}
	for i := range v.prev {
		v.prev[i] = 0
	}
}

// Process feeds decoded samples in. Returns a snapshot when a full FFT
// window has accumulated and the rate cap allows one, otherwise nil.
func (v *Visualizer) Process(samples []float32) *SpectrumData {
	if v.mode == VizOff || len(samples) == 0 {
		return nil
	}

	var peak, sumSq float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
		sumSq += s * s
	}
	rms := float32(math.Sqrt(float64(sumSq) / float64(len(samples))))

	var snapshot *SpectrumData
	for _, s := range samples {
		v.input[v.inputPos] = float64(s)
		v.inputPos++
		if v.inputPos < vizFFTSize {
			continue
		}
		v.inputPos = 0

		now := time.Now()
		if now.Sub(v.lastEmit) < time.Second/vizMaxRate {
			continue
		}
		v.lastEmit = now

		snapshot = &SpectrumData{
			Spectrum: v.computeBands(),
			Bands:    vizBands,
			Peak:     minf32(peak, 1),
			RMS:      minf32(rms, 1),
			Waveform: downsample(samples, vizWavePts),
		}
	}
	return snapshot
}

// computeBands windows the buffered frame, runs the FFT, and folds the
// bins into logarithmically spaced bands normalized from a -60 dB floor.
func (v *Visualizer) computeBands() []float32 {
	windowed := make([]float64, vizFFTSize)
	for i := range windowed {
		windowed[i] = v.input[i] * v.window[i]
	}
	spec := fft.FFTReal(windowed)
	nyquist := vizFFTSize / 2

	bands := make([]float32, vizBands)
	for b := range bands {
		lowRatio := math.Pow(float64(b)/vizBands, 2)
		highRatio := math.Pow(float64(b+1)/vizBands, 2)
		low := int(lowRatio * float64(nyquist))
		high := int(math.Ceil(highRatio * float64(nyquist)))
		if high > nyquist {
			high = nyquist
		}
		if low >= high {
			continue
		}

		var sum float64
		for bin := low; bin < high; bin++ {
			re := real(spec[bin])
			im := imag(spec[bin])
			sum += math.Sqrt(re*re + im*im)
		}
		avg := sum / float64(high-low)

		db := -60.0
		if avg > 0 {
			db = 20 * math.Log10(avg)
		}
		norm := (db + 60) / 60
		if norm < 0 {
			norm = 0
		} else if norm > 1 {
			norm = 1
		}

		smoothed := v.prev[b]*vizSmoothing + float32(norm)*(1-vizSmoothing)
		v.prev[b] = smoothed
		bands[b] = smoothed
	}
	return bands
}

func downsample(samples []float32, points int) []float32 {
	if len(samples) <= points {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	step := len(samples) / points
	out := make([]float32, 0, points)
	for i := 0; i < len(samples) && len(out) < points; i += step {
		out = append(out, samples[i])
	}
	return out
}

func minf32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
