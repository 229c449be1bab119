package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xiao901202/EdgeMeet/internal/transcript"
)

// DefaultBatchSize is the number of segments grouped into one summary batch.
const DefaultBatchSize = 3

// Batcher groups consecutive segments and summarizes each group as one unit.
// Summarization errors never propagate: a failed batch is recorded as an
// in-band failure marker so the pipeline keeps moving.
type Batcher struct {
	summarizer Summarizer
	batchSize  int
	logger     *slog.Logger
}

// NewBatcher creates a batcher. batchSize falls back to DefaultBatchSize when
// not positive.
func NewBatcher(summarizer Summarizer, batchSize int, logger *slog.Logger) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		summarizer: summarizer,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// BatchSize returns the configured batch size.
func (b *Batcher) BatchSize() int {
	return b.batchSize
}

// BatchSummary summarizes one batch of segments. The returned string is
// always a batch tag covering [batchStart, batchStart+len(segs)-1]: a real
// summary, a no-speech note when every segment was silent or failed, or a
// failure marker when the summarizer errored.
func (b *Batcher) BatchSummary(ctx context.Context, segs []transcript.Segment, batchStart int) string {
	batchEnd := batchStart + len(segs) - 1

	var texts []string
	for _, seg := range segs {
		if transcript.IsSubstantive(seg.Text) {
			texts = append(texts, seg.Text)
		}
	}

	if len(texts) == 0 {
		return transcript.BatchTag(batchStart, batchEnd, "no speech content")
	}

	prompt := fmt.Sprintf(
		"Summarize the following meeting transcript excerpt in 2-3 sentences:\n\n%s",
		strings.Join(texts, "\n"),
	)

	summary, err := b.summarizer.Summarize(ctx, prompt)
	if err != nil {
		b.logger.Error("batch summarization failed",
			"batch_start", batchStart,
			"batch_end", batchEnd,
			"error", err)
		return transcript.BatchTag(batchStart, batchEnd, transcript.SummarizationFailureText(err))
	}

	return transcript.BatchTag(batchStart, batchEnd, summary)
}

// OverallSummary condenses the per-batch summaries of a finished recording
// into one whole-recording summary. It reads each batch summary once, using
// the structured batch range when present and falling back to parsing the
// tag for older transcripts.
func (b *Batcher) OverallSummary(ctx context.Context, segs []transcript.Segment, baseName string) string {
	var parts []string
	consumed := make(map[int]bool)

	for _, seg := range segs {
		if consumed[seg.Index] {
			continue
		}

		start, end := seg.BatchStart, seg.BatchEnd
		if start == 0 {
			var ok bool
			start, end, ok = transcript.ParseBatchTag(seg.Summary)
			if !ok {
				continue
			}
		}
		// The segment closing the range anchors the batch; a batch only
		// completes once its last segment is summarized.
		if seg.Index != end {
			continue
		}
		for i := start; i <= end; i++ {
			consumed[i] = true
		}

		_, _, ok := transcript.ParseBatchTag(seg.Summary)
		if !ok || transcript.IsSummaryPlaceholder(seg.Summary) {
			continue
		}
		if transcript.IsSummarizationFailure(seg.Summary) {
			continue
		}
		parts = append(parts, seg.Summary)
	}

	// No usable batch summaries; fall back to raw transcript text.
	if len(parts) == 0 {
		for _, seg := range segs {
			if transcript.IsSubstantive(seg.Text) {
				parts = append(parts, seg.Text)
			}
		}
	}
	if len(parts) == 0 {
		return "no speech content"
	}

	prompt := fmt.Sprintf(
		"The following are sequential summaries of a meeting recording named %q. "+
			"Write a final summary covering the main topic, key points, and conclusions:\n\n%s",
		baseName,
		strings.Join(parts, "\n"),
	)

	summary, err := b.summarizer.Summarize(ctx, prompt)
	if err != nil {
		b.logger.Error("overall summarization failed",
			"base_name", baseName,
			"error", err)
		return transcript.SummarizationFailureText(err)
	}

	return summary
}
