package segment

import (
	"math"
	"testing"
)

func TestTimes(t *testing.T) {
	w := Windowing{ChunkSeconds: 20, OverlapSeconds: 2}

	for i := 1; i <= 100; i++ {
		start, end := w.Times(i)

		wantStart := float64(i-1) * 18
		if start != wantStart {
			t.Errorf("Times(%d) start = %v, want %v", i, start, wantStart)
		}
		if end-start != 20 {
			t.Errorf("Times(%d) window length = %v, want 20", i, end-start)
		}

		if i > 1 {
			_, prevEnd := w.Times(i - 1)
			overlap := prevEnd - start
			if math.Abs(overlap-2) > 1e-9 {
				t.Errorf("overlap between windows %d and %d = %v, want 2", i-1, i, overlap)
			}
		}
	}
}

func TestCount(t *testing.T) {
	w := Windowing{ChunkSeconds: 20, OverlapSeconds: 2}

	tests := []struct {
		total float64
		want  int
	}{
		{0, 1},
		{5, 1},
		{18, 1},
		{18.5, 2},
		{36, 2},
		{45, 3}, // 45s recording slices into windows starting at 0, 18, 36
		{54, 3},
		{54.1, 4},
	}

	for _, tt := range tests {
		if got := w.Count(tt.total); got != tt.want {
			t.Errorf("Count(%v) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestIndexForTime(t *testing.T) {
	w := Windowing{ChunkSeconds: 20, OverlapSeconds: 2}
	total := 45.0 // 3 windows

	tests := []struct {
		t    float64
		want int
	}{
		{-5, 1},
		{0, 1},
		{17.9, 1},
		{18, 2},
		{35.9, 2},
		{36, 3},
		{100, 3}, // clamped to the last window
	}

	for _, tt := range tests {
		if got := w.IndexForTime(tt.t, total); got != tt.want {
			t.Errorf("IndexForTime(%v, %v) = %d, want %d", tt.t, total, got, tt.want)
		}
	}
}

func TestIndexForTimeMonotonic(t *testing.T) {
	w := Windowing{ChunkSeconds: 20, OverlapSeconds: 2}
	total := 120.0
	maxIdx := w.MaxIndex(total)

	prev := 0
	for ts := -1.0; ts < 200; ts += 0.5 {
		idx := w.IndexForTime(ts, total)
		if idx < prev {
			t.Fatalf("IndexForTime not monotonic: t=%v gave %d after %d", ts, idx, prev)
		}
		if idx < 1 || idx > maxIdx {
			t.Fatalf("IndexForTime(%v) = %d, out of [1, %d]", ts, idx, maxIdx)
		}
		prev = idx
	}
}

func TestMaxIndexNeverBelowOne(t *testing.T) {
	w := Windowing{ChunkSeconds: 20, OverlapSeconds: 2}

	for _, total := range []float64{0, 0.5, 1, 2} {
		if got := w.MaxIndex(total); got != 1 {
			t.Errorf("MaxIndex(%v) = %d, want 1", total, got)
		}
	}
}
