//go:build amd64

package simd

import "github.com/klauspost/cpuid/v2"

func detect() Level {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX2):
		return LevelAVX2
	case cpuid.CPU.Supports(cpuid.SSE4):
		return LevelSSE41
	default:
		return LevelScalar
	}
}

func applyVolume(samples []float32, volume float32) {
	if len(samples) == 0 {
		return
	}
	var done int
	switch DetectLevel() {
	case LevelAVX2:
		done = len(samples) &^ 7
		if done > 0 {
			applyVolumeAVX2(&samples[0], done, volume)
		}
	case LevelSSE41:
		done = len(samples) &^ 3
		if done > 0 {
			applyVolumeSSE(&samples[0], done, volume)
		}
	}
	applyVolumeScalar(samples[done:], volume)
}

func f32ToI16(dst []int16, src []float32, volume float32) {
	if len(src) == 0 {
		return
	}
	scale := volume * 32767.0
	var done int
	switch DetectLevel() {
	case LevelAVX2:
		done = len(src) &^ 7
		if done > 0 {
			f32ToI16AVX2(&dst[0], &src[0], done, scale)
		}
	case LevelSSE41:
		done = len(src) &^ 3
		if done > 0 {
			f32ToI16SSE(&dst[0], &src[0], done, scale)
		}
	}
	f32ToI16Scalar(dst[done:], src[done:], volume)
}

//go:noescape
func applyVolumeAVX2(ptr *float32, n int, volume float32)

//go:noescape
func applyVolumeSSE(ptr *float32, n int, volume float32)

//go:noescape
func f32ToI16AVX2(dst *int16, src *float32, n int, scale float32)

//go:noescape
func f32ToI16SSE(dst *int16, src *float32, n int, scale float32)
