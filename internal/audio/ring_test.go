package audio

import (
	"sync"
	"testing"
)

func TestRingRoundTrip(t *testing.T) {
	r := NewRing(8)

	src := []float32{1, 2, 3, 4, 5}
	if n := r.Write(src); n != 5 {
		t.Fatalf("Write = %d, want 5", n)
	}
	if r.Len() != 5 {
		t.Fatalf("Len = %d, want 5", r.Len())
	}

	dst := make([]float32, 5)
	if n := r.Read(dst); n != 5 {
		t.Fatalf("Read = %d, want 5", n)
	}
	for i, v := range src {
		if dst[i] != v {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], v)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len after drain = %d, want 0", r.Len())
	}
}

func TestRingCapacityRoundsUp(t *testing.T) {
	cases := []struct{ ask, want int }{
		{1, 1},
		{3, 4},
		{8, 8},
		{100, 128},
		{1000, 1024},
	}
	for _, tc := range cases {
		if got := NewRing(tc.ask).Cap(); got != tc.want {
			t.Errorf("NewRing(%d).Cap() = %d, want %d", tc.ask, got, tc.want)
		}
	}
}

func TestRingWriteStopsWhenFull(t *testing.T) {
	r := NewRing(4)

	if n := r.Write([]float32{1, 2, 3, 4, 5, 6}); n != 4 {
		t.Fatalf("Write into capacity-4 ring = %d, want 4", n)
	}
	if n := r.Write([]float32{7}); n != 0 {
		t.Fatalf("Write into full ring = %d, want 0", n)
	}

	dst := make([]float32, 2)
	r.Read(dst)
	if n := r.Write([]float32{7, 8, 9}); n != 2 {
		t.Fatalf("Write after partial read = %d, want 2", n)
	}
}

func TestRingWrapAround(t *testing.T) {
	r := NewRing(4)
	dst := make([]float32, 3)

	// Push the indices past the buffer length several times.
	for round := 0; round < 10; round++ {
		base := float32(round * 3)
		src := []float32{base, base + 1, base + 2}
		if n := r.Write(src); n != 3 {
			t.Fatalf("round %d: Write = %d, want 3", round, n)
		}
		if n := r.Read(dst); n != 3 {
			t.Fatalf("round %d: Read = %d, want 3", round, n)
		}
		for i := range src {
			if dst[i] != src[i] {
				t.Fatalf("round %d: dst[%d] = %v, want %v", round, i, dst[i], src[i])
			}
		}
	}
}

func TestRingDrainRequestHonoredByConsumer(t *testing.T) {
	r := NewRing(16)
	r.Write(make([]float32, 10))
	r.RequestDrain()

	// The request alone does not move the read index; the consumer side
	// applies it.
	r.ConsumeDrain()
	if r.Len() != 0 {
		t.Errorf("Len after drain = %d, want 0", r.Len())
	}
	if r.Free() != 16 {
		t.Errorf("Free after drain = %d, want 16", r.Free())
	}
}

func TestRingDrainDiscardsOnlyOlderSamples(t *testing.T) {
	r := NewRing(16)
	r.Write([]float32{1, 2, 3})
	r.RequestDrain()
	// Written after the request, so these must survive the drain.
	r.Write([]float32{7, 8})

	dst := make([]float32, 8)
	n := r.Read(dst)
	if n != 2 || dst[0] != 7 || dst[1] != 8 {
		t.Errorf("Read after drain = %v (n=%d), want [7 8]", dst[:n], n)
	}
}

func TestRingReadSkipsDrainedSamples(t *testing.T) {
	r := NewRing(16)
	r.Write([]float32{1, 2, 3, 4})
	r.RequestDrain()

	// Read applies the pending drain itself; no stale sample may come out.
	dst := make([]float32, 4)
	if n := r.Read(dst); n != 0 {
		t.Errorf("Read returned %d stale samples: %v", n, dst[:n])
	}
}

func TestRingSingleProducerSingleConsumer(t *testing.T) {
	const total = 1 << 16
	r := NewRing(256)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		next := float32(0)
		chunk := make([]float32, 64)
		sent := 0
		for sent < total {
			n := len(chunk)
			if total-sent < n {
				n = total - sent
			}
			for i := 0; i < n; i++ {
				chunk[i] = next + float32(i)
			}
			w := r.Write(chunk[:n])
			next += float32(w)
			sent += w
		}
	}()

	got := 0
	expect := float32(0)
	buf := make([]float32, 64)
	for got < total {
		n := r.Read(buf)
		for i := 0; i < n; i++ {
			if buf[i] != expect {
				t.Fatalf("sample %d = %v, want %v", got+i, buf[i], expect)
			}
			expect++
		}
		got += n
	}
	wg.Wait()
}
