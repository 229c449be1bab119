package registry

import (
	"path/filepath"
	"testing"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestUpsertAndGet(t *testing.T) {
	r := openTestRegistry(t)

	rec := Recording{
		BaseName: "standup",
		Filename: "standup.mp3",
		Status:   StatusProcessing,
		Segments: 3,
	}
	if err := r.Upsert(rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := r.Get("standup")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing recording")
	}
	if got.Filename != "standup.mp3" || got.Status != StatusProcessing || got.Segments != 3 {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestGetMissing(t *testing.T) {
	r := openTestRegistry(t)

	got, err := r.Get("nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get returned %+v for missing recording", got)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	r := openTestRegistry(t)

	if err := r.Upsert(Recording{BaseName: "call", Filename: "call.wav", Status: StatusStreaming}); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if err := r.Upsert(Recording{BaseName: "call", Filename: "call.wav", Status: StatusCompleted, Segments: 5}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	recs, err := r.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d recordings, want 1", len(recs))
	}
	if recs[0].Status != StatusCompleted || recs[0].Segments != 5 {
		t.Errorf("update not applied: %+v", recs[0])
	}
}

func TestList(t *testing.T) {
	r := openTestRegistry(t)

	for _, name := range []string{"a", "b", "c"} {
		if err := r.Upsert(Recording{BaseName: name, Filename: name + ".wav", Status: StatusCompleted}); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", name, err)
		}
	}

	recs, err := r.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("got %d recordings, want 3", len(recs))
	}
}
