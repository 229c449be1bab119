package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store persists transcripts and summaries as JSON files under a root
// directory, one subdirectory per recording. Every update is a whole-file
// read-modify-write guarded by a per-recording mutex, so updates to one
// recording never clobber each other and recordings never interfere.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{
		root:  dir,
		locks: make(map[string]*sync.Mutex),
	}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// RecordingDir returns the directory holding all artifacts of a recording.
func (s *Store) RecordingDir(baseName string) string {
	return filepath.Join(s.root, baseName)
}

// TranscriptPath returns the transcript file path of a recording.
func (s *Store) TranscriptPath(baseName string) string {
	return filepath.Join(s.root, baseName, "transcript.json")
}

// SummaryPath returns the summary file path of a recording.
func (s *Store) SummaryPath(baseName string) string {
	return filepath.Join(s.root, baseName, "summary.json")
}

// lockFor returns the mutex guarding one recording's files.
func (s *Store) lockFor(baseName string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[baseName]
	if !ok {
		l = &sync.Mutex{}
		s.locks[baseName] = l
	}
	return l
}

// InitIfAbsent creates the transcript file with estimated placeholder
// segments if it does not exist yet. It is an idempotent no-op when the
// transcript is already present. estimated may be zero when the total is
// unknown (streaming mode).
func (s *Store) InitIfAbsent(baseName string, chunkSeconds, overlapSeconds float64, estimated int) error {
	l := s.lockFor(baseName)
	l.Lock()
	defer l.Unlock()

	path := s.TranscriptPath(baseName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(s.RecordingDir(baseName), 0755); err != nil {
		return fmt.Errorf("failed to create recording directory: %w", err)
	}

	step := chunkSeconds - overlapSeconds
	tr := &Transcript{
		BaseName:       baseName,
		ChunkSeconds:   chunkSeconds,
		OverlapSeconds: overlapSeconds,
		Segments:       make([]Segment, 0, estimated),
	}
	for i := 1; i <= estimated; i++ {
		start := float64(i-1) * step
		tr.Segments = append(tr.Segments, Segment{
			Index:   i,
			Start:   start,
			End:     start + chunkSeconds,
			Text:    PlaceholderText,
			Summary: PlaceholderText,
		})
	}

	return s.writeTranscript(baseName, tr)
}

// Load reads the current transcript of a recording. Returns ErrNotFound when
// no transcript exists yet.
func (s *Store) Load(baseName string) (*Transcript, error) {
	l := s.lockFor(baseName)
	l.Lock()
	defer l.Unlock()

	return s.loadLocked(baseName)
}

func (s *Store) loadLocked(baseName string) (*Transcript, error) {
	data, err := os.ReadFile(s.TranscriptPath(baseName))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("transcript for %q: %w", baseName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript for %q: %w", baseName, err)
	}

	var tr Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse transcript for %q: %w", baseName, err)
	}

	return &tr, nil
}

// LoadSummary reads the finalized summary of a recording. Returns ErrNotFound
// when no summary has been written yet.
func (s *Store) LoadSummary(baseName string) (*Summary, error) {
	l := s.lockFor(baseName)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.SummaryPath(baseName))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("summary for %q: %w", baseName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary for %q: %w", baseName, err)
	}

	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("failed to parse summary for %q: %w", baseName, err)
	}

	return &sum, nil
}

// UpsertSegment replaces the stored entry matching seg.Index, or appends it
// and re-sorts by index when absent. Calling it twice with the same content
// leaves the transcript unchanged after the first call.
func (s *Store) UpsertSegment(baseName string, seg Segment) error {
	l := s.lockFor(baseName)
	l.Lock()
	defer l.Unlock()

	tr, err := s.loadLocked(baseName)
	if err != nil {
		return err
	}

	upsert(tr, seg)

	return s.writeTranscript(baseName, tr)
}

// WriteBatch upserts all given segments in one read-modify-write. It is the
// path used when a summary batch completes, so a new segment's text and its
// batch summary land in the same write.
func (s *Store) WriteBatch(baseName string, segs []Segment) error {
	l := s.lockFor(baseName)
	l.Lock()
	defer l.Unlock()

	tr, err := s.loadLocked(baseName)
	if err != nil {
		return err
	}

	for _, seg := range segs {
		upsert(tr, seg)
	}

	return s.writeTranscript(baseName, tr)
}

// ApplyBatchSummary overwrites the summary field and batch range of every
// stored segment whose index falls in [batchStart, batchEnd].
func (s *Store) ApplyBatchSummary(baseName string, batchStart, batchEnd int, summary string) error {
	l := s.lockFor(baseName)
	l.Lock()
	defer l.Unlock()

	tr, err := s.loadLocked(baseName)
	if err != nil {
		return err
	}

	for i := range tr.Segments {
		if idx := tr.Segments[i].Index; idx >= batchStart && idx <= batchEnd {
			tr.Segments[i].Summary = summary
			tr.Segments[i].BatchStart = batchStart
			tr.Segments[i].BatchEnd = batchEnd
		}
	}

	return s.writeTranscript(baseName, tr)
}

// FinalizeSummary builds and writes the whole-recording summary. Each
// segment's displayed summary is whatever string it currently carries:
// still-processing placeholders stay visible, completed batches show their
// tagged summary.
func (s *Store) FinalizeSummary(baseName string, chunkSeconds, overlapSeconds float64, segs []Segment, overall string) error {
	l := s.lockFor(baseName)
	l.Lock()
	defer l.Unlock()

	sum := &Summary{
		BaseName:       baseName,
		ChunkSeconds:   chunkSeconds,
		OverlapSeconds: overlapSeconds,
		PerSegment:     make([]SegmentSummary, 0, len(segs)),
		OverallSummary: overall,
	}
	for _, seg := range segs {
		sum.PerSegment = append(sum.PerSegment, SegmentSummary{
			Index:   seg.Index,
			Summary: seg.Summary,
		})
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary for %q: %w", baseName, err)
	}

	return atomicWrite(s.SummaryPath(baseName), data)
}

// writeTranscript persists a transcript. Callers must hold the recording
// lock.
func (s *Store) writeTranscript(baseName string, tr *Transcript) error {
	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript for %q: %w", baseName, err)
	}

	return atomicWrite(s.TranscriptPath(baseName), data)
}

// atomicWrite replaces path contents via a temp file and rename, so readers
// never observe a partially written file.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// upsert replaces the segment with a matching index, or inserts it keeping
// the list sorted by index.
func upsert(tr *Transcript, seg Segment) {
	for i := range tr.Segments {
		if tr.Segments[i].Index == seg.Index {
			tr.Segments[i] = seg
			return
		}
	}

	tr.Segments = append(tr.Segments, seg)
	sort.Slice(tr.Segments, func(i, j int) bool {
		return tr.Segments[i].Index < tr.Segments[j].Index
	})
}
