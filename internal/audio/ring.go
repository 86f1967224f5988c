package audio

import "sync/atomic"

// Ring is a single-producer single-consumer lock-free ring buffer of f32
// samples. The decode loop writes, the device callback reads; neither side
// ever blocks or allocates. Capacity rounds up to a power of two.
type Ring struct {
	buf  []float32
	mask uint64
	head atomic.Uint64 // next read index, consumer side
	tail atomic.Uint64 // next write index, producer side

	// drainTo is a read-index floor published by the producer; the
	// consumer advances past it before its next copy. Only the consumer
	// ever moves head, so requesting a drain is race-free from the
	// producer side.
	drainTo atomic.Uint64
}

// NewRing creates a ring holding at least capacity samples.
func NewRing(capacity int) *Ring {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring{
		buf:  make([]float32, size),
		mask: uint64(size - 1),
	}
}

// Cap is the total sample capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Len is the number of samples currently buffered.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Free is the remaining write capacity.
func (r *Ring) Free() int {
	return r.Cap() - r.Len()
}

// Write copies as much of src as fits and returns how many samples it
// took. Producer side only.
func (r *Ring) Write(src []float32) int {
	head := r.head.Load()
	tail := r.tail.Load()
	free := r.Cap() - int(tail-head)
	n := len(src)
	if n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		r.buf[(tail+uint64(i))&r.mask] = src[i]
	}
	r.tail.Store(tail + uint64(n))
	return n
}

// Read copies up to len(dst) samples out and returns how many it got.
// Consumer side only. Samples the producer has asked to drain are skipped,
// never copied.
func (r *Ring) Read(dst []float32) int {
	r.ConsumeDrain()
	head := r.head.Load()
	tail := r.tail.Load()
	n := int(tail - head)
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(head+uint64(i))&r.mask]
	}
	r.head.Store(head + uint64(n))
	return n
}

// RequestDrain asks the consumer to discard everything written so far.
// Producer side; used on seek and stop so stale audio never reaches the
// device. Samples written after the request are unaffected.
func (r *Ring) RequestDrain() {
	r.drainTo.Store(r.tail.Load())
}

// ConsumeDrain advances the read index past any pending drain request.
// Consumer side only; Read calls it, and the device pull path calls it
// directly when it is emitting silence instead of reading.
func (r *Ring) ConsumeDrain() {
	if to := r.drainTo.Load(); to > r.head.Load() {
		r.head.Store(to)
	}
}
