package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeError reports input audio bytes that could not be decoded for the
// declared or inferred source format. It is fatal to the ingest call that
// produced it; the recording is left in its prior state.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s audio: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Normalizer converts arbitrary input audio into canonical mono 16kHz 16-bit
// PCM samples. PCM WAV input of any rate, channel count, or bit depth is
// decoded in-process; other containers are converted through an ffmpeg
// subprocess before decoding.
type Normalizer struct {
	tmpDir string
}

// NewNormalizer creates a normalizer. tmpDir holds intermediate files for the
// ffmpeg fallback; empty means the system temp directory.
func NewNormalizer(tmpDir string) *Normalizer {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Normalizer{tmpDir: tmpDir}
}

// Normalize decodes data into canonical samples. sourceFormat is the file
// extension of the upload (without dot), used to name the intermediate file
// when falling back to ffmpeg and to report decode failures.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, sourceFormat string) ([]int16, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: sourceFormat, Err: errors.New("empty input")}
	}

	if isRIFF(data) {
		return n.decodeWAV(data)
	}

	converted, err := n.ffmpegToWAV(ctx, data, sourceFormat)
	if err != nil {
		return nil, &DecodeError{Format: sourceFormat, Err: err}
	}

	return n.decodeWAV(converted)
}

// Stitch concatenates pre-normalized chunk files, in slice order, into one
// canonical buffer, re-normalizing each chunk on the way through.
func (n *Normalizer) Stitch(paths []string) ([]int16, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no chunk files to stitch")
	}

	var out []int16
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %s: %w", path, err)
		}

		samples, err := n.decodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", path, err)
		}

		out = append(out, samples...)
	}

	return out, nil
}

// decodeWAV decodes a PCM WAV container and canonicalizes the result.
func (n *Normalizer) decodeWAV(data []byte) ([]int16, error) {
	d := wav.NewDecoder(bytes.NewReader(data))

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Format: "wav", Err: err}
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, &DecodeError{Format: "wav", Err: errors.New("no audio data")}
	}

	return canonicalize(buf), nil
}

// canonicalize downmixes to mono, resamples to 16kHz, and requantizes the
// decoded buffer to 16-bit samples.
func canonicalize(buf *gaudio.IntBuffer) []int16 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		mono[i] = sum / float64(channels) / scale
	}

	if buf.Format.SampleRate != SampleRate && buf.Format.SampleRate > 0 {
		mono = resample(mono, buf.Format.SampleRate, SampleRate)
	}

	out := make([]int16, len(mono))
	for i, v := range mono {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = int16(math.Round(v * 32767))
	}

	return out
}

// resample converts mono samples between sample rates by linear interpolation.
func resample(samples []float64, from, to int) []float64 {
	if from == to || len(samples) == 0 {
		return samples
	}

	n := int(float64(len(samples)) * float64(to) / float64(from))
	if n < 1 {
		n = 1
	}

	out := make([]float64, n)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		i0 := int(pos)
		if i0 >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(i0)
		out[i] = samples[i0]*(1-frac) + samples[i0+1]*frac
	}

	return out
}

// ffmpegToWAV converts non-WAV input bytes into a 16kHz mono WAV container
// via an ffmpeg subprocess.
func (n *Normalizer) ffmpegToWAV(ctx context.Context, data []byte, sourceFormat string) ([]byte, error) {
	ext := strings.TrimPrefix(sourceFormat, ".")
	if ext == "" {
		ext = "bin"
	}

	in, err := os.CreateTemp(n.tmpDir, "normalize-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp input: %w", err)
	}
	defer os.Remove(in.Name())

	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}
	in.Close()

	out := filepath.Join(n.tmpDir, filepath.Base(in.Name())+".wav")
	defer os.Remove(out)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", in.Name(),
		"-ac", "1", "-ar", fmt.Sprintf("%d", SampleRate),
		"-f", "wav",
		out,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	converted, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted audio: %w", err)
	}

	return converted, nil
}

// isRIFF reports whether data starts with a RIFF/WAVE header.
func isRIFF(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}
