package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xiao901202/EdgeMeet/internal/transcript"
)

// fakeSummarizer records prompts and returns canned output or an error.
type fakeSummarizer struct {
	prompts []string
	reply   string
	err     error
}

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestBatchSummary(t *testing.T) {
	fake := &fakeSummarizer{reply: "they discussed the budget"}
	b := NewBatcher(fake, 3, nil)

	segs := []transcript.Segment{
		{Index: 4, Text: "first part"},
		{Index: 5, Text: ""},
		{Index: 6, Text: "second part"},
	}
	got := b.BatchSummary(context.Background(), segs, 4)

	want := transcript.BatchTag(4, 6, "they discussed the budget")
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}

	if len(fake.prompts) != 1 {
		t.Fatalf("summarizer called %d times, want 1", len(fake.prompts))
	}
	if strings.Contains(fake.prompts[0], "processing") {
		t.Error("prompt contains placeholder text")
	}
	if !strings.Contains(fake.prompts[0], "first part") || !strings.Contains(fake.prompts[0], "second part") {
		t.Errorf("prompt missing segment text: %q", fake.prompts[0])
	}
}

func TestBatchSummarySkipsNonSubstantive(t *testing.T) {
	fake := &fakeSummarizer{reply: "unused"}
	b := NewBatcher(fake, 3, nil)

	segs := []transcript.Segment{
		{Index: 1, Text: ""},
		{Index: 2, Text: transcript.PlaceholderText},
		{Index: 3, Text: transcript.TranscriptionFailureText(errors.New("boom"))},
	}
	got := b.BatchSummary(context.Background(), segs, 1)

	if got != transcript.BatchTag(1, 3, "no speech content") {
		t.Errorf("summary = %q", got)
	}
	if len(fake.prompts) != 0 {
		t.Error("summarizer called for an all-silent batch")
	}
}

func TestBatchSummaryFailureIsInBand(t *testing.T) {
	fake := &fakeSummarizer{err: errors.New("model unavailable")}
	b := NewBatcher(fake, 3, nil)

	got := b.BatchSummary(context.Background(), []transcript.Segment{{Index: 1, Text: "hello"}}, 1)

	start, end, ok := transcript.ParseBatchTag(got)
	if !ok || start != 1 || end != 1 {
		t.Errorf("failure summary lost its batch tag: %q", got)
	}
	if !transcript.IsSummarizationFailure(got) {
		t.Errorf("failure not marked: %q", got)
	}
}

func TestOverallSummaryReadsEachBatchOnce(t *testing.T) {
	fake := &fakeSummarizer{reply: "full meeting recap"}
	b := NewBatcher(fake, 3, nil)

	tagA := transcript.BatchTag(1, 3, "opening topics")
	tagB := transcript.BatchTag(4, 5, "closing topics")
	segs := []transcript.Segment{
		{Index: 1, Summary: tagA, BatchStart: 1, BatchEnd: 3},
		{Index: 2, Summary: tagA, BatchStart: 1, BatchEnd: 3},
		{Index: 3, Summary: tagA, BatchStart: 1, BatchEnd: 3},
		{Index: 4, Summary: tagB, BatchStart: 4, BatchEnd: 5},
		{Index: 5, Summary: tagB, BatchStart: 4, BatchEnd: 5},
	}

	got := b.OverallSummary(context.Background(), segs, "meeting")
	if got != "full meeting recap" {
		t.Errorf("overall = %q", got)
	}

	if len(fake.prompts) != 1 {
		t.Fatalf("summarizer called %d times, want 1", len(fake.prompts))
	}
	if n := strings.Count(fake.prompts[0], "opening topics"); n != 1 {
		t.Errorf("first batch summary appears %d times in prompt, want 1", n)
	}
	if n := strings.Count(fake.prompts[0], "closing topics"); n != 1 {
		t.Errorf("second batch summary appears %d times in prompt, want 1", n)
	}
}

func TestOverallSummaryAnchorsOnBatchEnd(t *testing.T) {
	fake := &fakeSummarizer{reply: "recap"}
	b := NewBatcher(fake, 3, nil)

	// The first segment of the batch lost its summary; the batch is still
	// recognized from the segment closing the range.
	tag := transcript.BatchTag(1, 2, "recovered content")
	segs := []transcript.Segment{
		{Index: 1, Summary: transcript.SummaryPlaceholder(1, 2)},
		{Index: 2, Summary: tag, BatchStart: 1, BatchEnd: 2},
	}

	if got := b.OverallSummary(context.Background(), segs, "rec"); got != "recap" {
		t.Errorf("overall = %q", got)
	}
	if len(fake.prompts) != 1 {
		t.Fatalf("summarizer called %d times, want 1", len(fake.prompts))
	}
	if n := strings.Count(fake.prompts[0], "recovered content"); n != 1 {
		t.Errorf("batch summary appears %d times in prompt, want 1", n)
	}
}

func TestOverallSummaryLegacyTagFallback(t *testing.T) {
	fake := &fakeSummarizer{reply: "recap"}
	b := NewBatcher(fake, 3, nil)

	// Older transcripts carry only the textual tag, no structured range.
	tag := transcript.BatchTag(1, 2, "legacy content")
	segs := []transcript.Segment{
		{Index: 1, Summary: tag},
		{Index: 2, Summary: tag},
	}

	if got := b.OverallSummary(context.Background(), segs, "old"); got != "recap" {
		t.Errorf("overall = %q", got)
	}
	if n := strings.Count(fake.prompts[0], "legacy content"); n != 1 {
		t.Errorf("legacy batch summary appears %d times, want 1", n)
	}
}

func TestOverallSummaryFallsBackToRawText(t *testing.T) {
	fake := &fakeSummarizer{reply: "from raw text"}
	b := NewBatcher(fake, 3, nil)

	segs := []transcript.Segment{
		{Index: 1, Text: "spoken words", Summary: transcript.SummaryPlaceholder(1, 3)},
	}

	if got := b.OverallSummary(context.Background(), segs, "rec"); got != "from raw text" {
		t.Errorf("overall = %q", got)
	}
	if !strings.Contains(fake.prompts[0], "spoken words") {
		t.Errorf("prompt missing raw text fallback: %q", fake.prompts[0])
	}
}

func TestOverallSummaryNoContent(t *testing.T) {
	fake := &fakeSummarizer{reply: "unused"}
	b := NewBatcher(fake, 3, nil)

	segs := []transcript.Segment{
		{Index: 1, Text: "", Summary: transcript.BatchTag(1, 1, "no speech content")},
	}
	// A no-speech tag still parses, so it feeds the prompt. Force emptiness.
	segs[0].Summary = transcript.SummaryPlaceholder(1, 1)

	if got := b.OverallSummary(context.Background(), segs, "silent"); got != "no speech content" {
		t.Errorf("overall = %q, want no speech content", got)
	}
	if len(fake.prompts) != 0 {
		t.Error("summarizer called with nothing to summarize")
	}
}

func TestBatchSummaryErrorKeepsRangeOrder(t *testing.T) {
	fake := &fakeSummarizer{err: fmt.Errorf("down")}
	b := NewBatcher(fake, 3, nil)

	got := b.BatchSummary(context.Background(), []transcript.Segment{
		{Index: 7, Text: "tail"},
	}, 7)

	start, end, ok := transcript.ParseBatchTag(got)
	if !ok {
		t.Fatalf("no tag in %q", got)
	}
	if start != 7 || end != 7 {
		t.Errorf("range = [%d, %d], want [7, 7]", start, end)
	}
}
