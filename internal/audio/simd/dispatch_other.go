//go:build !amd64

package simd

func detect() Level {
	return LevelScalar
}

func applyVolume(samples []float32, volume float32) {
	applyVolumeScalar(samples, volume)
}

func f32ToI16(dst []int16, src []float32, volume float32) {
	f32ToI16Scalar(dst, src, volume)
}
