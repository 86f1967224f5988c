// Package simd provides vectorized kernels for the audio hot path:
// volume scaling and f32-to-i16 format conversion. The CPU feature level
// is detected once at startup and cached; every buffer size is handled,
// with non-vector-width tails processed in scalar code.
package simd

import (
	"math"
	"sync"
)

// Level is the SIMD capability selected for the audio kernels.
type Level int

const (
	// LevelScalar processes one sample per iteration.
	LevelScalar Level = iota
	// LevelSSE41 processes four samples per iteration (128-bit vectors).
	LevelSSE41
	// LevelAVX2 processes eight samples per iteration (256-bit vectors).
	LevelAVX2
)

func (l Level) String() string {
	switch l {
	case LevelAVX2:
		return "AVX2 (256-bit)"
	case LevelSSE41:
		return "SSE4.1 (128-bit)"
	default:
		return "Scalar (no SIMD)"
	}
}

var (
	levelOnce   sync.Once
	cachedLevel Level
)

// DetectLevel returns the best supported kernel level. The probe runs once;
// later calls return the cached result. Safe from any goroutine.
func DetectLevel() Level {
	levelOnce.Do(func() {
		cachedLevel = detect()
	})
	return cachedLevel
}

const epsilon = 1e-7

// ApplyVolume scales samples in place by volume. Unity gain returns without
// touching the buffer; zero volume zeroes it.
func ApplyVolume(samples []float32, volume float32) {
	if math.Abs(float64(volume-1.0)) < epsilon {
		return
	}
	if math.Abs(float64(volume)) < epsilon {
		for i := range samples {
			samples[i] = 0
		}
		return
	}
	applyVolume(samples, volume)
}

// F32ToI16WithVolume converts f32 samples to i16 with volume applied in the
// same pass. Values outside [-1, 1] saturate. dst must be at least as long
// as src.
func F32ToI16WithVolume(dst []int16, src []float32, volume float32) {
	if len(dst) < len(src) {
		panic("simd: destination shorter than source")
	}
	f32ToI16(dst[:len(src)], src, volume)
}

func applyVolumeScalar(samples []float32, volume float32) {
	for i := range samples {
		samples[i] *= volume
	}
}

// f32ToI16Scalar mirrors the vector kernels exactly: clamp in the float
// domain, then round to nearest even as CVTPS2DQ does.
func f32ToI16Scalar(dst []int16, src []float32, volume float32) {
	scale := volume * 32767.0
	for i, s := range src {
		v := s * scale
		if v > 32767.0 {
			v = 32767.0
		} else if v < -32768.0 {
			v = -32768.0
		}
		dst[i] = int16(math.RoundToEven(float64(v)))
	}
}
