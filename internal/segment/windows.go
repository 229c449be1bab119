package segment

import "math"

// Windowing holds the fixed slicing parameters of a recording. Every window
// is ChunkSeconds long and consecutive windows overlap by OverlapSeconds, so
// window starts advance by ChunkSeconds-OverlapSeconds.
type Windowing struct {
	ChunkSeconds   float64
	OverlapSeconds float64
}

// Step returns the distance in seconds between consecutive window starts.
func (w Windowing) Step() float64 {
	return w.ChunkSeconds - w.OverlapSeconds
}

// Times returns the [start, end) time range covered by the 1-based window
// index. Defined for index >= 1.
func (w Windowing) Times(index int) (start, end float64) {
	start = float64(index-1) * w.Step()
	return start, start + w.ChunkSeconds
}

// Count returns the number of windows needed to cover total seconds of
// audio. The last window may extend past the true end of the audio; slicing
// truncates at the buffer end, no padding is implied.
func (w Windowing) Count(total float64) int {
	n := int(math.Ceil(total / w.Step()))
	if n < 1 {
		return 1
	}
	return n
}

// MaxIndex returns the highest index IndexForTime may return for a recording
// of the given total duration.
func (w Windowing) MaxIndex(total float64) int {
	n := int(math.Ceil((total - w.OverlapSeconds) / w.Step()))
	if n < 1 {
		return 1
	}
	return n
}

// IndexForTime returns the index of the window whose start lies at or before
// t. Negative t is clamped to zero and the result is clamped to
// [1, MaxIndex(total)]. Because windows overlap, t may also fall inside the
// tail of the previous window; callers that need every covering window must
// use a range query over the stored segments instead.
func (w Windowing) IndexForTime(t, total float64) int {
	if t < 0 {
		t = 0
	}
	idx := int(math.Floor(t/w.Step())) + 1
	if maxIdx := w.MaxIndex(total); idx > maxIdx {
		idx = maxIdx
	}
	if idx < 1 {
		idx = 1
	}
	return idx
}
