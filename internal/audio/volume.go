package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// RMS returns the root-mean-square loudness of the samples after normalizing
// them to [-1, 1]. Silence yields 0; a full-scale sine yields ~0.707.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s) / 32768.0
	}

	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// Gate decides whether a segment is loud enough to be worth transcribing.
// Segments below the threshold waste inference cost and tend to produce
// garbage transcriptions.
type Gate struct {
	Threshold float64
}

// Silent reports whether a segment at the given loudness should skip
// transcription. The volume is still recorded either way.
func (g Gate) Silent(volume float64) bool {
	return volume < g.Threshold
}
