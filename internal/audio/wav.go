package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// Canonical audio format. All downstream processing assumes samples in this
// form; Normalizer converts everything else into it.
const (
	SampleRate = 16000
	Channels   = 1
	BitDepth   = 16
)

// WAVHeader represents the 44-byte header of a PCM WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// EncodeWAV encodes canonical PCM-16 samples into a mono WAV container
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(Channels)
	bitsPerSample := uint16(BitDepth)
	dataSize := uint32(len(samples) * 2) // 2 bytes per sample
	fileSize := 36 + dataSize

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     fileSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteWAVFile encodes canonical samples and writes them to path
func WriteWAVFile(path string, samples []int16) error {
	data, err := EncodeWAV(samples, SampleRate)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write WAV file %s: %w", path, err)
	}

	return nil
}

// Duration returns the playback length in seconds of canonical samples
func Duration(samples []int16) float64 {
	return float64(len(samples)) / float64(SampleRate)
}

// Slice extracts the [start, end) seconds of canonical samples, truncating
// at the buffer end. Returns an empty slice when start lies past the audio.
func Slice(samples []int16, start, end float64) []int16 {
	s := int(start * SampleRate)
	e := int(end * SampleRate)

	if s < 0 {
		s = 0
	}
	if e > len(samples) {
		e = len(samples)
	}
	if s >= e {
		return nil
	}

	return samples[s:e]
}
