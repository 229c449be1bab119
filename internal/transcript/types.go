package transcript

import (
	"fmt"
	"strconv"
	"strings"
)

// PlaceholderText marks a segment field whose value has not been computed yet.
const PlaceholderText = "processing"

const (
	transcriptionFailurePrefix = "[transcription error"
	summarizationFailurePrefix = "[summarization error"
)

// Segment is one fixed-length, overlapping time window of a recording.
// BatchStart and BatchEnd record the index range of the summary batch the
// segment belongs to once that batch completes; they are the structured
// counterpart of the human-readable tag inside Summary.
type Segment struct {
	Index      int     `json:"index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Summary    string  `json:"summary"`
	Volume     float64 `json:"volume"`
	BatchStart int     `json:"batch_start,omitempty"`
	BatchEnd   int     `json:"batch_end,omitempty"`
}

// Transcript is the ordered list of all segments of a recording plus the
// windowing it was sliced with. Partial state with placeholder fields is
// valid and queryable mid-pipeline.
type Transcript struct {
	BaseName       string    `json:"base_name"`
	ChunkSeconds   float64   `json:"chunk_seconds"`
	OverlapSeconds float64   `json:"overlap_seconds"`
	Segments       []Segment `json:"segments"`
}

// SegmentSummary pairs a segment index with its resolved summary string.
type SegmentSummary struct {
	Index   int    `json:"index"`
	Summary string `json:"summary"`
}

// Summary is the whole-recording summary, written only once every segment
// has been transcribed and batch-summarized.
type Summary struct {
	BaseName       string           `json:"base_name"`
	ChunkSeconds   float64          `json:"chunk_seconds"`
	OverlapSeconds float64          `json:"overlap_seconds"`
	PerSegment     []SegmentSummary `json:"per_segment"`
	OverallSummary string           `json:"overall_summary"`
}

// SummaryPlaceholder builds the pending-batch sentinel for a segment at the
// given 1-based position within a batch of the given size.
func SummaryPlaceholder(position, batchSize int) string {
	return fmt.Sprintf("processing(%d/%d)", position, batchSize)
}

// IsSummaryPlaceholder reports whether s is a pending-summary sentinel.
func IsSummaryPlaceholder(s string) bool {
	return s == PlaceholderText || strings.HasPrefix(s, "processing(")
}

// TranscriptionFailureText converts a transcription error into the in-band
// marker stored as segment text. A single bad segment must not abort the
// whole recording.
func TranscriptionFailureText(err error) string {
	return fmt.Sprintf("%s: %v]", transcriptionFailurePrefix, err)
}

// SummarizationFailureText converts a summarization error into the in-band
// marker stored as summary text.
func SummarizationFailureText(err error) string {
	return fmt.Sprintf("%s: %v]", summarizationFailurePrefix, err)
}

// IsTranscriptionFailure reports whether text is a transcription failure
// marker.
func IsTranscriptionFailure(text string) bool {
	return strings.HasPrefix(text, transcriptionFailurePrefix)
}

// IsSummarizationFailure reports whether s contains a summarization failure
// marker, including one embedded in a batch tag.
func IsSummarizationFailure(s string) bool {
	return strings.Contains(s, summarizationFailurePrefix)
}

// IsSubstantive reports whether segment text carries real transcription
// content, as opposed to a placeholder, failure marker, or gated-out empty
// string.
func IsSubstantive(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == PlaceholderText {
		return false
	}
	return !IsTranscriptionFailure(trimmed)
}

// BatchTag renders a batch summary with its index range, e.g.
// "4 ~ 6 summary: ...". ParseBatchTag must stay able to read this format:
// the range identifies which stored summaries belong to a completed batch.
func BatchTag(start, end int, text string) string {
	return fmt.Sprintf("%d ~ %d summary: %s", start, end, text)
}

// ParseBatchTag extracts the index range from a batch-tagged summary string.
// It is the legacy fallback for transcripts that predate the structured
// BatchStart/BatchEnd fields.
func ParseBatchTag(s string) (start, end int, ok bool) {
	head, _, found := strings.Cut(s, " summary: ")
	if !found {
		return 0, 0, false
	}

	left, right, found := strings.Cut(head, " ~ ")
	if !found {
		return 0, 0, false
	}

	start, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, false
	}
	end, err = strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, false
	}
	if start < 1 || end < start {
		return 0, 0, false
	}

	return start, end, true
}

// SegmentsInRange returns every segment whose [Start, End) interval
// intersects the half-open query interval [start, end).
func SegmentsInRange(segments []Segment, start, end float64) ([]Segment, error) {
	if end <= start {
		return nil, fmt.Errorf("%w: [%g, %g)", ErrInvalidRange, start, end)
	}

	out := make([]Segment, 0)
	for _, s := range segments {
		if s.End <= start || s.Start >= end {
			continue
		}
		out = append(out, s)
	}

	return out, nil
}
