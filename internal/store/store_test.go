package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/valpere/chunktran/internal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_New(t *testing.T) {
	s := newTestStore(t)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &internal.Run{
		InputPath:  "book.md",
		OutputPath: "book.uk.md",
		Backend:    "ollama",
		Model:      "gemma3:12b-it-qat",
		TargetLang: "uk",
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated run ID")
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != internal.RunRunning || got.Backend != "ollama" || got.SourceLang != "" {
		t.Errorf("unexpected run %+v", got)
	}
	if !got.FinishedAt.IsZero() {
		t.Error("unfinished run should have zero FinishedAt")
	}

	if err := s.FinishRun(ctx, run.ID, internal.RunCompleted, 3, 1, ""); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	got, _ = s.GetRun(ctx, run.ID)
	if got.Status != internal.RunCompleted || got.Chunks != 3 || got.Failed != 1 {
		t.Errorf("unexpected finished run %+v", got)
	}
	if got.FinishedAt.IsZero() {
		t.Error("expected FinishedAt to be set")
	}
}

func TestStore_GetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.FinishRun(context.Background(), "missing", internal.RunFailed, 0, 0, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from FinishRun, got %v", err)
	}
}

func TestStore_ListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		run := &internal.Run{ID: id, InputPath: "in", OutputPath: "out", Backend: "ollama", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("expected [c b], got %+v", runs)
	}

	all, _ := s.ListRuns(ctx, 0)
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}
}

func TestStore_Chunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &internal.Run{InputPath: "in", OutputPath: "out", Backend: "gemini"}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	recs := []internal.ChunkRecord{
		{RunID: run.ID, Index: 1, Source: "b\n", Status: internal.ChunkFailed, ErrorKind: "network", Error: "connection refused", Attempts: 3},
		{RunID: run.ID, Index: 0, Source: "a\n", Draft: "а\n", Final: "а\n", Status: internal.ChunkTranslated, Attempts: 1, Latency: 1500 * time.Millisecond},
	}
	for _, rec := range recs {
		if err := s.RecordChunk(ctx, rec); err != nil {
			t.Fatalf("RecordChunk failed: %v", err)
		}
	}

	got, err := s.ListChunks(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListChunks failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].Index != 0 || got[0].Final != "а\n" || got[0].Latency != 1500*time.Millisecond {
		t.Errorf("unexpected first chunk %+v", got[0])
	}
	if got[1].Status != internal.ChunkFailed || got[1].ErrorKind != "network" || got[1].Attempts != 3 {
		t.Errorf("unexpected second chunk %+v", got[1])
	}

	if err := s.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if left, _ := s.ListChunks(ctx, run.ID); len(left) != 0 {
		t.Errorf("expected chunks removed with run, got %d", len(left))
	}
	if err := s.DeleteRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStore_ChunkMemory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LookupChunk(ctx, "fp1", "Hello\n"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.SaveChunk(ctx, "fp1", "Hello\n", "Привіт\n"); err != nil {
		t.Fatalf("SaveChunk failed: %v", err)
	}

	got, ok, err := s.LookupChunk(ctx, "fp1", "Hello\n")
	if err != nil || !ok || got != "Привіт\n" {
		t.Errorf("expected hit, got %q ok=%v err=%v", got, ok, err)
	}

	// a different fingerprint (other model or prompt) must not hit
	if _, ok, _ := s.LookupChunk(ctx, "fp2", "Hello\n"); ok {
		t.Error("expected miss for a different fingerprint")
	}
	// whitespace is part of the chunk
	if _, ok, _ := s.LookupChunk(ctx, "fp1", "Hello"); ok {
		t.Error("expected miss when the trailing newline differs")
	}
}

func TestStore_ChunkMemory_NFC(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// "é" precomposed vs "e" + combining acute
	if err := s.SaveChunk(ctx, "fp", "caf\u00e9\n", "кафе\n"); err != nil {
		t.Fatalf("SaveChunk failed: %v", err)
	}
	got, ok, err := s.LookupChunk(ctx, "fp", "cafe\u0301\n")
	if err != nil || !ok || got != "кафе\n" {
		t.Errorf("expected NFC-equivalent hit, got %q ok=%v err=%v", got, ok, err)
	}
}

func TestStore_MemoryStatsAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveChunk(ctx, "fp1", "a", "а")
	s.SaveChunk(ctx, "fp1", "b", "б")
	s.SaveChunk(ctx, "fp2", "a", "a!")
	s.LookupChunk(ctx, "fp1", "a")

	stats, err := s.MemoryStats(ctx)
	if err != nil {
		t.Fatalf("MemoryStats failed: %v", err)
	}
	if stats.TotalEntries != 3 || stats.Fingerprints != 2 || stats.TotalUsage != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}

	entries, err := s.ListMemory(ctx, 0)
	if err != nil || len(entries) != 3 {
		t.Fatalf("ListMemory: %d entries, err=%v", len(entries), err)
	}

	n, err := s.ClearMemory(ctx)
	if err != nil {
		t.Fatalf("ClearMemory failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows deleted, got %d", n)
	}
	stats, _ = s.MemoryStats(ctx)
	if stats.TotalEntries != 0 {
		t.Errorf("expected empty memory, got %+v", stats)
	}
}

func TestStore_Glossary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddGlossaryTerm(ctx, "en", "uk", " Dobby ", "Доббі"); err != nil {
		t.Fatalf("AddGlossaryTerm failed: %v", err)
	}
	id, err := s.AddGlossaryTerm(ctx, "en", "uk", "house-elf", "домовик")
	if err != nil {
		t.Fatalf("AddGlossaryTerm failed: %v", err)
	}
	s.AddGlossaryTerm(ctx, "en", "de", "house-elf", "Hauself")

	terms, err := s.GetGlossaryTerms(ctx, "en", "uk")
	if err != nil {
		t.Fatalf("GetGlossaryTerms failed: %v", err)
	}
	if len(terms) != 2 || terms["Dobby"] != "Доббі" {
		t.Errorf("unexpected terms %v", terms)
	}

	all, _ := s.ListGlossaryTerms(ctx, "", "")
	if len(all) != 3 {
		t.Errorf("expected 3 entries, got %d", len(all))
	}
	de, _ := s.ListGlossaryTerms(ctx, "", "de")
	if len(de) != 1 || de[0].TargetTerm != "Hauself" {
		t.Errorf("unexpected filtered entries %+v", de)
	}

	if err := s.DeleteGlossaryTerm(ctx, id); err != nil {
		t.Fatalf("DeleteGlossaryTerm failed: %v", err)
	}
	terms, _ = s.GetGlossaryTerms(ctx, "en", "uk")
	if _, ok := terms["house-elf"]; ok {
		t.Error("expected term to be deleted")
	}
	if err := s.DeleteGlossaryTerm(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
