package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"lectura/internal/index"
	"lectura/internal/notes"
	"lectura/internal/store"
	"lectura/internal/transcriber"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls atomic.Int64
}

func (f *fakeTranscriber) Transcribe(context.Context, string, string) (transcriber.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return transcriber.Result{}, f.err
	}
	return transcriber.Result{Text: f.text}, nil
}

type fakeSynth struct {
	markdown string
	err      error
	calls    atomic.Int64
}

func (f *fakeSynth) Generate(_ context.Context, req notes.Request) (notes.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return notes.Result{}, f.err
	}
	return notes.Result{Markdown: f.markdown, Provider: "test", Model: "test-model"}, nil
}

func writeAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(t *testing.T, tr transcriber.Transcriber, synth Synthesizer) (*Pipeline, *store.Store, *index.Index) {
	t.Helper()
	st := store.New(t.TempDir())
	idx, err := index.Open(":memory:")
	if err != nil {
		t.Fatalf("opening index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return New(st, tr, synth, idx), st, idx
}

func TestProcess(t *testing.T) {
	tr := &fakeTranscriber{text: "Newton's laws state that objects persist in motion"}
	synth := &fakeSynth{markdown: "# Lecture\n\n- inertia"}
	p, st, idx := newTestPipeline(t, tr, synth)

	res, err := p.Process(context.Background(), writeAudio(t, "Lecture-1700000000000-123456.mp3"), Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Title != "Lecture" {
		t.Errorf("Title = %q, want Lecture", res.Title)
	}
	if res.AudioID == "" {
		t.Fatal("empty audioId")
	}
	if res.Fallback {
		t.Error("Fallback = true, want false")
	}
	if res.Notes != "# Lecture\n\n- inertia" {
		t.Errorf("Notes = %q", res.Notes)
	}

	gotTr, err := st.GetTranscript(res.AudioID)
	if err != nil || gotTr != tr.text {
		t.Errorf("stored transcript = %q, %v", gotTr, err)
	}
	gotNotes, err := st.GetNotes(res.AudioID)
	if err != nil || gotNotes != res.Notes {
		t.Errorf("stored notes = %q, %v", gotNotes, err)
	}

	records, err := st.ListAll()
	if err != nil || len(records) != 1 {
		t.Fatalf("ListAll = %d records, %v", len(records), err)
	}
	if records[0].Title != "Lecture" {
		t.Errorf("record title = %q", records[0].Title)
	}

	gens, err := idx.GenerationsForAudio(res.AudioID)
	if err != nil || len(gens) != 1 {
		t.Fatalf("generations = %d, %v", len(gens), err)
	}
	if gens[0].Status != "ok" || gens[0].Provider != "test" {
		t.Errorf("generation = %+v", gens[0])
	}
}

func TestProcessMissingAudio(t *testing.T) {
	tr := &fakeTranscriber{text: "x"}
	p, _, _ := newTestPipeline(t, tr, &fakeSynth{markdown: "n"})

	_, err := p.Process(context.Background(), filepath.Join(t.TempDir(), "gone.mp3"), Options{})
	if err == nil {
		t.Fatal("expected error for missing audio")
	}
	if tr.calls.Load() != 0 {
		t.Error("transcriber invoked despite missing file")
	}
}

func TestProcessEmptyTranscript(t *testing.T) {
	p, st, _ := newTestPipeline(t, &fakeTranscriber{text: "   "}, &fakeSynth{markdown: "n"})

	_, err := p.Process(context.Background(), writeAudio(t, "talk.mp3"), Options{})
	if err == nil {
		t.Fatal("expected error for empty transcript")
	}
	records, _ := st.ListAll()
	if len(records) != 0 {
		t.Error("record persisted despite empty transcript")
	}
}

func TestProcessTranscriptionFailure(t *testing.T) {
	synth := &fakeSynth{markdown: "n"}
	p, st, _ := newTestPipeline(t, &fakeTranscriber{err: errors.New("whisper exploded")}, synth)

	_, err := p.Process(context.Background(), writeAudio(t, "talk.mp3"), Options{})
	if err == nil {
		t.Fatal("expected transcription error")
	}
	if synth.calls.Load() != 0 {
		t.Error("synthesizer invoked despite transcription failure")
	}
	records, _ := st.ListAll()
	if len(records) != 0 {
		t.Error("record persisted despite transcription failure")
	}
}

func TestProcessSynthesisFailureWritesFallbackNotes(t *testing.T) {
	transcript := strings.Repeat("lecture content ", 60) // > 500 chars
	p, st, idx := newTestPipeline(t,
		&fakeTranscriber{text: transcript},
		&fakeSynth{err: errors.New("provider down")})

	res, err := p.Process(context.Background(), writeAudio(t, "physics.mp3"), Options{Provider: "openai", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Process: %v (synthesis failure must not fail the pipeline)", err)
	}
	if !res.Fallback {
		t.Error("Fallback = false, want true")
	}

	saved, err := st.GetNotes(res.AudioID)
	if err != nil {
		t.Fatalf("GetNotes: %v", err)
	}
	if !strings.HasPrefix(saved, "# Notes: Physics") {
		t.Errorf("fallback notes title heading missing: %q", saved[:40])
	}
	if !strings.Contains(saved, "## Transcription") {
		t.Error("fallback notes missing transcription section")
	}
	if !strings.Contains(saved, "Automated note generation failed") {
		t.Error("fallback notes missing explanation")
	}
	if strings.Contains(saved, transcript) {
		t.Error("fallback notes should carry an excerpt, not the full transcript")
	}

	gens, _ := idx.GenerationsForAudio(res.AudioID)
	if len(gens) != 1 || gens[0].Status != "fallback" || !gens[0].Fallback {
		t.Fatalf("generations = %+v, want one fallback entry", gens)
	}
	if gens[0].Error == "" || gens[0].Provider != "openai" {
		t.Errorf("generation = %+v", gens[0])
	}
}

func TestRegenerateUsesCachedTranscript(t *testing.T) {
	tr := &fakeTranscriber{text: "original transcript"}
	synth := &fakeSynth{markdown: "# First"}
	p, st, _ := newTestPipeline(t, tr, synth)

	res, err := p.Process(context.Background(), writeAudio(t, "intro.mp3"), Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	synth.markdown = "# Second"
	reres, err := p.Regenerate(context.Background(), res.AudioID, Options{})
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	if tr.calls.Load() != 1 {
		t.Errorf("transcriber calls = %d, want 1 (regenerate must not transcribe)", tr.calls.Load())
	}
	if reres.Title != "Intro" {
		t.Errorf("Title = %q, want stored title Intro", reres.Title)
	}
	if reres.Transcription != "original transcript" {
		t.Errorf("Transcription = %q", reres.Transcription)
	}
	saved, _ := st.GetNotes(res.AudioID)
	if saved != "# Second" {
		t.Errorf("notes = %q, want overwritten # Second", saved)
	}
}

func TestRegenerateUnknownRecord(t *testing.T) {
	p, _, _ := newTestPipeline(t, &fakeTranscriber{text: "x"}, &fakeSynth{markdown: "n"})

	_, err := p.Regenerate(context.Background(), "deadbeef", Options{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound", err)
	}
}

func TestRegenerateTitleOverride(t *testing.T) {
	p, _, _ := newTestPipeline(t, &fakeTranscriber{text: "text"}, &fakeSynth{markdown: "n"})

	res, err := p.Process(context.Background(), writeAudio(t, "a.mp3"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	reres, err := p.Regenerate(context.Background(), res.AudioID, Options{Title: "Custom Title"})
	if err != nil {
		t.Fatal(err)
	}
	if reres.Title != "Custom Title" {
		t.Errorf("Title = %q", reres.Title)
	}
}

func TestProcessBatch(t *testing.T) {
	tr := &fakeTranscriber{text: "batch transcript"}
	p, st, _ := newTestPipeline(t, tr, &fakeSynth{markdown: "# Batch"})

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"one.mp3", "two.mp3", "three.mp3"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	// A missing file must not sink the rest of the batch.
	paths = append(paths, filepath.Join(dir, "missing.mp3"))

	failed := p.ProcessBatch(context.Background(), paths, 2)
	if len(failed) != 1 || failed[0] != paths[3] {
		t.Errorf("failed = %v, want the missing file only", failed)
	}
	records, err := st.ListAll()
	if err != nil || len(records) != 3 {
		t.Fatalf("ListAll = %d records, %v; want 3", len(records), err)
	}
}
