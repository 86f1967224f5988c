package audio

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// resampleChunk is how many input frames are buffered before a
	// conversion pass runs.
	resampleChunk = 1024
	// resampleSubChunk is the FFT window; each chunk is processed as two
	// of these.
	resampleSubChunk = 512
)

// Resampler converts interleaved f32 audio between sample rates with an
// FFT-based spectral method. Input accumulates per channel until a full
// chunk is available; output frame counts track the exact rational ratio
// so long streams never drift.
type Resampler struct {
	inRate   int
	outRate  int
	channels int

	buf [][]float64

	framesIn  uint64
	framesOut uint64
}

// NewResampler creates a resampler. When the rates match, Process passes
// audio through untouched.
func NewResampler(inRate, outRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	r := &Resampler{
		inRate:   inRate,
		outRate:  outRate,
		channels: channels,
	}
	if r.Active() {
		r.buf = make([][]float64, channels)
	}
	return r
}

// Active reports whether any conversion happens.
func (r *Resampler) Active() bool {
	return r.inRate != r.outRate
}

// Ratio is output frames per input frame.
func (r *Resampler) Ratio() float64 {
	return float64(r.outRate) / float64(r.inRate)
}

// Process accepts interleaved samples and returns whatever resampled
// interleaved output is ready. Input shorter than a chunk is buffered and
// returns nothing.
func (r *Resampler) Process(input []float32) []float32 {
	if !r.Active() {
		return input
	}

	for i, s := range input {
		ch := i % r.channels
		r.buf[ch] = append(r.buf[ch], float64(s))
	}

	var out []float32
	for len(r.buf[0]) >= resampleChunk {
		out = append(out, r.convertSubChunk()...)
		out = append(out, r.convertSubChunk()...)
	}
	return out
}

// Flush zero-pads whatever is buffered to a full window, converts it, and
// returns exactly ceil(remaining x ratio) frames. Call at end of stream.
func (r *Resampler) Flush() []float32 {
	if !r.Active() || len(r.buf[0]) == 0 {
		return nil
	}

	remaining := len(r.buf[0])
	target := int(math.Ceil(float64(remaining) * r.Ratio()))

	pad := (resampleSubChunk - remaining%resampleSubChunk) % resampleSubChunk
	for c := range r.buf {
		for i := 0; i < pad; i++ {
			r.buf[c] = append(r.buf[c], 0)
		}
	}

	var out []float32
	for len(r.buf[0]) >= resampleSubChunk {
		out = append(out, r.convertSubChunk()...)
	}

	if frames := len(out) / r.channels; frames > target {
		out = out[:target*r.channels]
	} else if frames < target {
		out = append(out, make([]float32, (target-frames)*r.channels)...)
	}

	r.Reset()
	return out
}

// Reset drops buffered input and frame accounting. Call after a seek so
// stale samples never reach the device.
func (r *Resampler) Reset() {
	for c := range r.buf {
		r.buf[c] = r.buf[c][:0]
	}
	r.framesIn = 0
	r.framesOut = 0
}

// convertSubChunk consumes one FFT window per channel. The output length
// comes from the running frame accounts, so rounding error never
// accumulates: after N input frames exactly floor(N x out/in) frames have
// been emitted.
func (r *Resampler) convertSubChunk() []float32 {
	r.framesIn += resampleSubChunk
	want := r.framesIn * uint64(r.outRate) / uint64(r.inRate)
	emit := int(want - r.framesOut)
	r.framesOut = want

	out := make([]float32, emit*r.channels)
	for c := 0; c < r.channels; c++ {
		resized := spectralResize(r.buf[c][:resampleSubChunk], emit)
		for i, v := range resized {
			out[i*r.channels+c] = float32(v)
		}
		r.buf[c] = append(r.buf[c][:0], r.buf[c][resampleSubChunk:]...)
	}
	return out
}

// spectralResize maps a window of samples onto outLen samples by resizing
// its spectrum: forward FFT, copy the shared low bins into an outLen-sized
// conjugate-symmetric spectrum, inverse FFT.
func spectralResize(in []float64, outLen int) []float64 {
	if outLen == 0 {
		return nil
	}
	n := len(in)
	spec := fft.FFTReal(in)

	out := make([]complex128, outLen)
	scale := complex(float64(outLen)/float64(n), 0)
	half := n / 2
	if outLen/2 < half {
		half = outLen / 2
	}
	for k := 0; k <= half && k < outLen; k++ {
		out[k] = spec[k] * scale
	}
	for k := 1; k < half; k++ {
		out[outLen-k] = cmplx.Conj(spec[k]) * scale
	}

	res := fft.IFFT(out)
	samples := make([]float64, outLen)
	for i, c := range res {
		samples[i] = real(c)
	}
	return samples
}
