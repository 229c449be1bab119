package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xiao901202/EdgeMeet/internal/audio"
	"github.com/xiao901202/EdgeMeet/internal/metrics"
	"github.com/xiao901202/EdgeMeet/internal/registry"
	"github.com/xiao901202/EdgeMeet/internal/segment"
	"github.com/xiao901202/EdgeMeet/internal/summarize"
	"github.com/xiao901202/EdgeMeet/internal/transcript"
	"github.com/xiao901202/EdgeMeet/internal/transcription"
)

// Options wires the orchestrator's collaborators. Registry and Metrics may
// be nil; the orchestrator then skips cataloging and instrumentation.
type Options struct {
	Store       *transcript.Store
	Registry    *registry.Registry
	Normalizer  *audio.Normalizer
	Transcriber transcription.Transcriber
	Batcher     *summarize.Batcher
	Sessions    SessionStore
	Windowing   segment.Windowing
	Gate        audio.Gate
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Orchestrator runs recordings through the transcription and summarization
// chain and answers queries over their persisted state.
type Orchestrator struct {
	store       *transcript.Store
	registry    *registry.Registry
	normalizer  *audio.Normalizer
	transcriber transcription.Transcriber
	batcher     *summarize.Batcher
	sessions    SessionStore
	windowing   segment.Windowing
	gate        audio.Gate
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Result describes a completed ingestion.
type Result struct {
	BaseName      string            `json:"base_name"`
	TotalSegments int               `json:"total_segments"`
	Paths         map[string]string `json:"paths"`
}

// Status is a point-in-time progress snapshot of a recording.
type Status struct {
	BaseName              string `json:"base_name"`
	TotalSegments         int    `json:"total_segments"`
	CompletedTranscripts  int    `json:"completed_transcripts"`
	GatedSegments         int    `json:"gated_segments"`
	TranscriptionFailures int    `json:"transcription_failures"`
	ProcessingSummaries   int    `json:"processing_summaries"`
	CompletedSummaries    int    `json:"completed_summaries"`
	SummarizationFailures int    `json:"summarization_failures"`
	Streaming             bool   `json:"streaming"`
}

// NewOrchestrator creates an orchestrator from its collaborators.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sessions == nil {
		opts.Sessions = NewSessionStore()
	}
	return &Orchestrator{
		store:       opts.Store,
		registry:    opts.Registry,
		normalizer:  opts.Normalizer,
		transcriber: opts.Transcriber,
		batcher:     opts.Batcher,
		sessions:    opts.Sessions,
		windowing:   opts.Windowing,
		gate:        opts.Gate,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// IngestWholeRecording processes one complete uploaded recording end to end:
// decode, segment, transcribe, batch-summarize, and finalize. It returns
// once the transcript and summary files are fully written.
func (o *Orchestrator) IngestWholeRecording(ctx context.Context, baseName, sourceFormat string, data []byte) (*Result, error) {
	started := time.Now()

	samples, err := o.normalizer.Normalize(ctx, data, sourceFormat)
	if err != nil {
		return nil, err
	}

	total := audio.Duration(samples)
	count := o.windowing.Count(total)

	o.logger.Info("ingesting recording",
		"base_name", baseName,
		"duration_seconds", total,
		"segments", count)

	if err := o.store.InitIfAbsent(baseName, o.windowing.ChunkSeconds, o.windowing.OverlapSeconds, count); err != nil {
		return nil, err
	}
	if err := audio.WriteWAVFile(o.audioPath(baseName), samples); err != nil {
		return nil, fmt.Errorf("failed to persist canonical audio: %w", err)
	}
	o.catalog(baseName, baseName+"."+sourceFormat, registry.StatusProcessing, count)

	batchSize := o.batcher.BatchSize()
	for batchStart := 1; batchStart <= count; batchStart += batchSize {
		batchEnd := batchStart + batchSize - 1
		if batchEnd > count {
			batchEnd = count
		}

		batch := o.transcribeBatch(ctx, baseName, samples, total, batchStart, batchEnd)
		for pos, seg := range batch {
			seg.Summary = transcript.SummaryPlaceholder(pos+1, batchSize)
			if err := o.store.UpsertSegment(baseName, seg); err != nil {
				return nil, err
			}
		}

		tag := o.batchSummary(ctx, batch, batchStart)
		if err := o.store.ApplyBatchSummary(baseName, batchStart, batchEnd, tag); err != nil {
			return nil, err
		}
	}

	if err := o.finalize(ctx, baseName); err != nil {
		return nil, err
	}

	o.catalog(baseName, baseName+"."+sourceFormat, registry.StatusCompleted, count)
	if o.metrics != nil {
		o.metrics.RecordRecordingIngested(time.Since(started).Seconds())
	}

	return o.result(baseName, count), nil
}

// IngestStreamChunk appends one live chunk to a streaming session as the
// segment at the given 1-based index and returns the segment as persisted.
// Indices must arrive in order; index 1 opens the session. Transcription
// happens before the call returns; batch summaries flush every time the
// pending batch fills.
func (o *Orchestrator) IngestStreamChunk(ctx context.Context, baseName string, index int, sourceFormat string, data []byte) (*transcript.Segment, error) {
	samples, err := o.normalizer.Normalize(ctx, data, sourceFormat)
	if err != nil {
		return nil, err
	}

	// Only a valid first chunk may open a session; a bogus index must not
	// leave an empty session behind.
	session := o.sessions.Get(baseName)
	if session == nil {
		if index != 1 {
			return nil, fmt.Errorf("no open stream for %q, chunk index must be 1, got %d", baseName, index)
		}
		session = o.sessions.GetOrCreate(baseName)
	}
	session.Lock()
	defer session.Unlock()

	if index != session.NextIndex {
		return nil, fmt.Errorf("chunk index %d out of order for %q, expected %d", index, baseName, session.NextIndex)
	}

	if index == 1 {
		if err := o.store.InitIfAbsent(baseName, o.windowing.ChunkSeconds, o.windowing.OverlapSeconds, 0); err != nil {
			return nil, err
		}
		o.catalog(baseName, baseName+"."+sourceFormat, registry.StatusStreaming, 0)
		if o.metrics != nil {
			o.metrics.SetActiveSessions(o.sessions.Count())
		}
	}
	session.NextIndex++

	chunkPath := filepath.Join(o.store.RecordingDir(baseName), "chunks", fmt.Sprintf("chunk_%03d.wav", index))
	if err := os.MkdirAll(filepath.Dir(chunkPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}
	if err := audio.WriteWAVFile(chunkPath, samples); err != nil {
		return nil, fmt.Errorf("failed to persist chunk: %w", err)
	}
	session.ChunkPaths = append(session.ChunkPaths, chunkPath)

	start, _ := o.windowing.Times(index)
	seg := o.processSegment(ctx, baseName, index, start, start+audio.Duration(samples), samples)

	batchSize := o.batcher.BatchSize()
	session.Pending = append(session.Pending, seg)

	if o.metrics != nil {
		o.metrics.RecordStreamChunk()
	}

	if len(session.Pending) < batchSize {
		// Not at a batch boundary yet; publish the text with a pending
		// summary marker.
		seg.Summary = transcript.SummaryPlaceholder(len(session.Pending), batchSize)
		if err := o.store.UpsertSegment(baseName, seg); err != nil {
			return nil, err
		}
		return &seg, nil
	}

	if err := o.flushPending(ctx, baseName, session); err != nil {
		return nil, err
	}
	return o.storedSegment(baseName, index)
}

// storedSegment reads one segment back from the persisted transcript.
func (o *Orchestrator) storedSegment(baseName string, index int) (*transcript.Segment, error) {
	tr, err := o.store.Load(baseName)
	if err != nil {
		return nil, err
	}
	for i := range tr.Segments {
		if tr.Segments[i].Index == index {
			return &tr.Segments[i], nil
		}
	}
	return nil, fmt.Errorf("segment %d of %q: %w", index, baseName, transcript.ErrNotFound)
}

// FinalizeStream closes a streaming session: flushes any short final batch,
// stitches the received chunks into the canonical recording file, writes the
// overall summary, and removes the session.
func (o *Orchestrator) FinalizeStream(ctx context.Context, baseName string) (*Result, error) {
	session := o.sessions.Get(baseName)
	if session == nil {
		return nil, fmt.Errorf("stream session %q: %w", baseName, transcript.ErrNotFound)
	}
	session.Lock()
	defer session.Unlock()

	if len(session.Pending) > 0 {
		if err := o.flushPending(ctx, baseName, session); err != nil {
			return nil, err
		}
	}

	if len(session.ChunkPaths) > 0 {
		stitched, err := o.normalizer.Stitch(session.ChunkPaths)
		if err != nil {
			return nil, fmt.Errorf("failed to stitch stream chunks: %w", err)
		}
		if err := audio.WriteWAVFile(o.audioPath(baseName), stitched); err != nil {
			return nil, fmt.Errorf("failed to persist stitched audio: %w", err)
		}
		// Chunk files are only needed until the stitched artifact exists.
		if err := os.RemoveAll(filepath.Join(o.store.RecordingDir(baseName), "chunks")); err != nil {
			o.logger.Warn("failed to remove chunk files",
				"base_name", baseName,
				"error", err)
		}
	}

	if err := o.finalize(ctx, baseName); err != nil {
		return nil, err
	}

	count := session.NextIndex - 1
	o.sessions.Delete(baseName)
	o.catalog(baseName, baseName+".wav", registry.StatusCompleted, count)
	if o.metrics != nil {
		o.metrics.RecordSessionFinished()
		o.metrics.SetActiveSessions(o.sessions.Count())
	}

	o.logger.Info("stream finalized",
		"base_name", baseName,
		"segments", count,
		"elapsed", time.Since(session.StartedAt))

	return o.result(baseName, count), nil
}

// SegmentAtTime returns the segment covering time t seconds into the
// recording. Returns ErrNotFound when t lies outside the transcribed range.
func (o *Orchestrator) SegmentAtTime(baseName string, t float64) (*transcript.Segment, error) {
	tr, err := o.store.Load(baseName)
	if err != nil {
		return nil, err
	}
	if len(tr.Segments) == 0 {
		return nil, fmt.Errorf("recording %q has no segments: %w", baseName, transcript.ErrNotFound)
	}

	lastEnd := tr.Segments[len(tr.Segments)-1].End
	if t < 0 || t >= lastEnd {
		return nil, fmt.Errorf("time %.2f outside recording %q: %w", t, baseName, transcript.ErrNotFound)
	}

	w := segment.Windowing{ChunkSeconds: tr.ChunkSeconds, OverlapSeconds: tr.OverlapSeconds}
	index := w.IndexForTime(t, lastEnd)
	for i := range tr.Segments {
		if tr.Segments[i].Index == index {
			return &tr.Segments[i], nil
		}
	}
	return nil, fmt.Errorf("segment %d of %q: %w", index, baseName, transcript.ErrNotFound)
}

// SegmentsInRange returns every segment overlapping [start, end).
func (o *Orchestrator) SegmentsInRange(baseName string, start, end float64) ([]transcript.Segment, error) {
	tr, err := o.store.Load(baseName)
	if err != nil {
		return nil, err
	}
	return transcript.SegmentsInRange(tr.Segments, start, end)
}

// GetTranscript returns the current transcript, placeholders included.
func (o *Orchestrator) GetTranscript(baseName string) (*transcript.Transcript, error) {
	return o.store.Load(baseName)
}

// GetSummary returns the finalized whole-recording summary.
func (o *Orchestrator) GetSummary(baseName string) (*transcript.Summary, error) {
	return o.store.LoadSummary(baseName)
}

// Status reports transcription and summarization progress for a recording.
func (o *Orchestrator) Status(baseName string) (*Status, error) {
	tr, err := o.store.Load(baseName)
	if err != nil {
		return nil, err
	}

	st := &Status{
		BaseName:      baseName,
		TotalSegments: len(tr.Segments),
		Streaming:     o.sessions.Get(baseName) != nil,
	}
	for _, seg := range tr.Segments {
		switch {
		case seg.Text == "":
			st.GatedSegments++
		case transcript.IsTranscriptionFailure(seg.Text):
			st.TranscriptionFailures++
		case seg.Text != transcript.PlaceholderText:
			st.CompletedTranscripts++
		}

		switch {
		case transcript.IsSummaryPlaceholder(seg.Summary):
			st.ProcessingSummaries++
		case transcript.IsSummarizationFailure(seg.Summary):
			st.SummarizationFailures++
		case seg.Summary != "":
			st.CompletedSummaries++
		}
	}
	return st, nil
}

// RegenerateSummaries recomputes every batch summary and the overall summary
// from the stored transcript text, without re-transcribing any audio. It is
// the recovery path after summarizer outages left failure markers behind.
func (o *Orchestrator) RegenerateSummaries(ctx context.Context, baseName string) error {
	tr, err := o.store.Load(baseName)
	if err != nil {
		return err
	}

	batchSize := o.batcher.BatchSize()
	count := len(tr.Segments)
	for batchStart := 1; batchStart <= count; batchStart += batchSize {
		batchEnd := batchStart + batchSize - 1
		if batchEnd > count {
			batchEnd = count
		}

		var batch []transcript.Segment
		for _, seg := range tr.Segments {
			if seg.Index >= batchStart && seg.Index <= batchEnd {
				batch = append(batch, seg)
			}
		}

		tag := o.batchSummary(ctx, batch, batchStart)
		if err := o.store.ApplyBatchSummary(baseName, batchStart, batchEnd, tag); err != nil {
			return err
		}
	}

	return o.finalize(ctx, baseName)
}

// transcribeBatch processes segments [batchStart, batchEnd] of a decoded
// recording in index order and returns them. Segments of one recording are
// strictly sequential: segment i+1 is not touched until segment i's volume
// check and transcription attempt have completed.
func (o *Orchestrator) transcribeBatch(ctx context.Context, baseName string, samples []int16, total float64, batchStart, batchEnd int) []transcript.Segment {
	out := make([]transcript.Segment, 0, batchEnd-batchStart+1)

	for index := batchStart; index <= batchEnd; index++ {
		start, end := o.windowing.Times(index)
		if end > total {
			end = total
		}
		out = append(out, o.processSegment(ctx, baseName, index, start, end, audio.Slice(samples, start, end)))
	}

	return out
}

// processSegment gates and transcribes one segment's samples. Transcription
// failures are folded into the segment text so one bad segment never stops
// the recording.
func (o *Orchestrator) processSegment(ctx context.Context, baseName string, index int, start, end float64, samples []int16) transcript.Segment {
	seg := transcript.Segment{
		Index:  index,
		Start:  start,
		End:    end,
		Volume: audio.RMS(samples),
	}

	if o.gate.Silent(seg.Volume) {
		o.logger.Debug("segment gated as silence",
			"base_name", baseName,
			"index", index,
			"volume", seg.Volume)
		if o.metrics != nil {
			o.metrics.RecordSegmentGated(seg.Volume)
		}
		return seg
	}

	segPath := filepath.Join(o.store.RecordingDir(baseName), fmt.Sprintf("segment_%03d.wav", index))
	if err := audio.WriteWAVFile(segPath, samples); err != nil {
		seg.Text = transcript.TranscriptionFailureText(err)
		return seg
	}
	defer os.Remove(segPath)

	started := time.Now()
	text, err := o.transcriber.Transcribe(ctx, segPath)
	if err != nil {
		o.logger.Error("segment transcription failed",
			"base_name", baseName,
			"index", index,
			"error", err)
		seg.Text = transcript.TranscriptionFailureText(err)
		if o.metrics != nil {
			o.metrics.RecordTranscriptionFailure()
		}
		return seg
	}

	seg.Text = text
	if o.metrics != nil {
		o.metrics.RecordSegmentTranscribed(time.Since(started).Seconds(), seg.Volume)
	}
	return seg
}

// flushPending summarizes the session's pending batch and writes text and
// summary together in one store update. Callers must hold the session lock.
func (o *Orchestrator) flushPending(ctx context.Context, baseName string, session *Session) error {
	batchStart := session.Pending[0].Index
	batchEnd := session.Pending[len(session.Pending)-1].Index

	tag := o.batchSummary(ctx, session.Pending, batchStart)

	segs := make([]transcript.Segment, len(session.Pending))
	for i, seg := range session.Pending {
		seg.Summary = tag
		seg.BatchStart = batchStart
		seg.BatchEnd = batchEnd
		segs[i] = seg
	}
	session.Pending = session.Pending[:0]

	return o.store.WriteBatch(baseName, segs)
}

// batchSummary runs the batcher and records metrics around it.
func (o *Orchestrator) batchSummary(ctx context.Context, batch []transcript.Segment, batchStart int) string {
	started := time.Now()
	tag := o.batcher.BatchSummary(ctx, batch, batchStart)
	if o.metrics != nil {
		o.metrics.RecordBatchSummary(time.Since(started).Seconds(), transcript.IsSummarizationFailure(tag))
	}
	return tag
}

// finalize writes the whole-recording summary from the current transcript.
func (o *Orchestrator) finalize(ctx context.Context, baseName string) error {
	tr, err := o.store.Load(baseName)
	if err != nil {
		return err
	}

	overall := o.batcher.OverallSummary(ctx, tr.Segments, baseName)
	if err := o.store.FinalizeSummary(baseName, tr.ChunkSeconds, tr.OverlapSeconds, tr.Segments, overall); err != nil {
		return err
	}
	if o.metrics != nil {
		o.metrics.RecordOverallSummary()
	}
	return nil
}

func (o *Orchestrator) audioPath(baseName string) string {
	return filepath.Join(o.store.RecordingDir(baseName), baseName+".wav")
}

func (o *Orchestrator) result(baseName string, count int) *Result {
	return &Result{
		BaseName:      baseName,
		TotalSegments: count,
		Paths: map[string]string{
			"audio":      "/uploads/" + baseName + "/" + baseName + ".wav",
			"transcript": "/uploads/" + baseName + "/transcript.json",
			"summary":    "/uploads/" + baseName + "/summary.json",
		},
	}
}

// catalog upserts the recording's registry entry when a registry is wired.
func (o *Orchestrator) catalog(baseName, filename, status string, segments int) {
	if o.registry == nil {
		return
	}
	if err := o.registry.Upsert(registry.Recording{
		BaseName: baseName,
		Filename: filename,
		Status:   status,
		Segments: segments,
	}); err != nil {
		o.logger.Error("failed to update recording catalog",
			"base_name", baseName,
			"error", err)
	}
}
