package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// sine generates a canonical test tone at the given frequency and amplitude.
func sine(seconds float64, freq float64, amplitude float64) []int16 {
	n := int(seconds * SampleRate)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
	}
	return samples
}

// buildWAV writes an arbitrary PCM WAV container for normalizer tests.
func buildWAV(t *testing.T, samples []int16, sampleRate, channels int) []byte {
	t.Helper()

	dataSize := uint32(len(samples) * 2)
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * 2),
		BlockAlign:    uint16(channels * 2),
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("failed to write test WAV header: %v", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, samples); err != nil {
		t.Fatalf("failed to write test WAV data: %v", err)
	}
	return buf.Bytes()
}

func TestEncodeNormalizeRoundTrip(t *testing.T) {
	original := sine(1.0, 440, 8000)

	data, err := EncodeWAV(original, SampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	n := NewNormalizer(t.TempDir())
	decoded, err := n.Normalize(context.Background(), data, "wav")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if len(decoded) != len(original) {
		t.Fatalf("round trip changed sample count: got %d, want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Fatalf("sample %d changed: got %d, want %d", i, decoded[i], original[i])
		}
	}
}

func TestNormalizeDownmixesStereo(t *testing.T) {
	// Interleave identical left/right channels; the mono mix must equal either.
	mono := sine(0.5, 200, 5000)
	stereo := make([]int16, len(mono)*2)
	for i, s := range mono {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}

	n := NewNormalizer(t.TempDir())
	decoded, err := n.Normalize(context.Background(), buildWAV(t, stereo, SampleRate, 2), "wav")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if len(decoded) != len(mono) {
		t.Fatalf("downmix sample count = %d, want %d", len(decoded), len(mono))
	}
	for i := range mono {
		if diff := int(decoded[i]) - int(mono[i]); diff < -1 || diff > 1 {
			t.Fatalf("sample %d after downmix = %d, want ~%d", i, decoded[i], mono[i])
		}
	}
}

func TestNormalizeResamples(t *testing.T) {
	// One second at 8kHz must come out as one second at 16kHz.
	in := make([]int16, 8000)
	for i := range in {
		in[i] = int16(4000 * math.Sin(2*math.Pi*100*float64(i)/8000))
	}

	n := NewNormalizer(t.TempDir())
	decoded, err := n.Normalize(context.Background(), buildWAV(t, in, 8000, 1), "wav")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if got := Duration(decoded); math.Abs(got-1.0) > 0.01 {
		t.Errorf("resampled duration = %v, want ~1.0", got)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	n := NewNormalizer(t.TempDir())

	for _, data := range [][]byte{nil, []byte("not audio at all")} {
		_, err := n.Normalize(context.Background(), data, "xyz")
		if err == nil {
			t.Fatal("Normalize accepted undecodable input")
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Errorf("expected DecodeError, got %T: %v", err, err)
		}
	}
}

func TestSlice(t *testing.T) {
	samples := make([]int16, 10*SampleRate) // 10 seconds

	tests := []struct {
		start, end float64
		wantLen    int
	}{
		{0, 1, SampleRate},
		{2, 4, 2 * SampleRate},
		{8, 12, 2 * SampleRate}, // truncated at buffer end
		{15, 20, 0},             // entirely past the audio
	}

	for _, tt := range tests {
		if got := len(Slice(samples, tt.start, tt.end)); got != tt.wantLen {
			t.Errorf("Slice(%v, %v) length = %d, want %d", tt.start, tt.end, got, tt.wantLen)
		}
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(make([]int16, 1000)); got != 0 {
		t.Errorf("RMS of silence = %v, want 0", got)
	}

	if got := RMS(nil); got != 0 {
		t.Errorf("RMS of empty input = %v, want 0", got)
	}

	// Full-scale sine has RMS ~1/sqrt(2).
	tone := sine(1.0, 440, 32000)
	got := RMS(tone)
	want := (32000.0 / 32768.0) / math.Sqrt2
	if math.Abs(got-want) > 0.01 {
		t.Errorf("RMS of sine = %v, want ~%v", got, want)
	}
}

func TestGate(t *testing.T) {
	g := Gate{Threshold: 0.01}

	if !g.Silent(0) {
		t.Error("zero volume should be gated")
	}
	if !g.Silent(0.005) {
		t.Error("volume below threshold should be gated")
	}
	if g.Silent(0.02) {
		t.Error("volume above threshold should pass")
	}
}

func TestStitch(t *testing.T) {
	n := NewNormalizer(t.TempDir())
	dir := t.TempDir()

	var paths []string
	total := 0
	for i, seconds := range []float64{1.0, 0.5, 2.0} {
		samples := sine(seconds, 300, 6000)
		total += len(samples)
		path := dir + "/" + "chunk_" + string(rune('a'+i)) + ".wav"
		if err := WriteWAVFile(path, samples); err != nil {
			t.Fatalf("WriteWAVFile failed: %v", err)
		}
		paths = append(paths, path)
	}

	stitched, err := n.Stitch(paths)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if len(stitched) != total {
		t.Errorf("stitched length = %d, want %d", len(stitched), total)
	}
}
