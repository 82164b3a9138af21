// Package pipeline orchestrates the audio-to-notes flow: transcribe,
// persist, synthesize notes, and degrade to fallback notes when the
// synthesizer cannot deliver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"lectura/internal/index"
	"lectura/internal/notes"
	"lectura/internal/pdf"
	"lectura/internal/store"
	"lectura/internal/transcriber"
)

// Synthesizer is the note-generation dependency. *notes.Synthesizer
// satisfies it; tests use doubles.
type Synthesizer interface {
	Generate(ctx context.Context, req notes.Request) (notes.Result, error)
}

// Pipeline wires the transcriber, the store, the synthesizer, and the
// generation history index together.
type Pipeline struct {
	store       *store.Store
	transcriber transcriber.Transcriber
	synth       Synthesizer
	index       *index.Index // optional; nil disables history
}

// New returns a Pipeline. idx may be nil when no history is wanted.
func New(st *store.Store, tr transcriber.Transcriber, synth Synthesizer, idx *index.Index) *Pipeline {
	return &Pipeline{store: st, transcriber: tr, synth: synth, index: idx}
}

// Options adjusts a single Process or Regenerate call.
type Options struct {
	Title        string
	Provider     string
	Model        string
	WhisperModel string
	SlidesPath   string
}

// Result is a completed pipeline run.
type Result struct {
	AudioID       string `json:"audioId"`
	Title         string `json:"title"`
	Transcription string `json:"transcription"`
	Notes         string `json:"notes"`
	Fallback      bool   `json:"fallback"`
}

// Process transcribes the audio file, persists the transcript, and
// generates notes for it. Synthesis failures degrade to fallback notes;
// once the transcript is saved the record always ends up with notes.
func (p *Pipeline) Process(ctx context.Context, audioPath string, opts Options) (Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return Result{}, fmt.Errorf("audio file not accessible: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = CleanTitle(audioPath)
	}

	tr, err := p.transcriber.Transcribe(ctx, audioPath, opts.WhisperModel)
	if err != nil {
		return Result{}, fmt.Errorf("transcription: %w", err)
	}
	if strings.TrimSpace(tr.Text) == "" {
		return Result{}, errors.New("transcription produced no text")
	}

	saved, err := p.store.SaveTranscript(audioPath, tr.Text, title)
	if err != nil {
		return Result{}, fmt.Errorf("saving transcript: %w", err)
	}
	slog.Info("transcript saved", "audioId", saved.AudioID, "title", title)

	res, err := p.generateAndSave(ctx, saved.AudioID, title, tr.Text, opts)
	if err != nil {
		return Result{}, err
	}
	res.Transcription = tr.Text
	return res, nil
}

// Regenerate re-runs note synthesis against the cached transcript. The
// audio is never transcribed again.
func (p *Pipeline) Regenerate(ctx context.Context, audioID string, opts Options) (Result, error) {
	meta, err := p.store.GetMetadata(audioID)
	if err != nil {
		return Result{}, fmt.Errorf("loading record: %w", err)
	}
	transcript, err := p.store.GetTranscript(audioID)
	if err != nil {
		return Result{}, fmt.Errorf("loading transcript: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = meta.Title
	}

	res, err := p.generateAndSave(ctx, audioID, title, transcript, opts)
	if err != nil {
		return Result{}, err
	}
	res.Transcription = transcript
	return res, nil
}

// generateAndSave runs the synthesizer and persists the outcome. Provider
// failures are absorbed into fallback notes; only storage failures
// propagate.
func (p *Pipeline) generateAndSave(ctx context.Context, audioID, title, transcript string, opts Options) (Result, error) {
	start := time.Now()
	nres, synthErr := p.synth.Generate(ctx, notes.Request{
		Title:      title,
		Transcript: transcript,
		Provider:   opts.Provider,
		Model:      opts.Model,
	})

	gen := index.Generation{
		ID:         uuid.NewString(),
		AudioID:    audioID,
		Provider:   nres.Provider,
		Model:      nres.Model,
		Status:     "ok",
		DurationMs: time.Since(start).Milliseconds(),
	}

	md := nres.Markdown
	fallback := false
	if synthErr != nil {
		slog.Warn("note generation failed, writing fallback notes",
			"audioId", audioID, "error", synthErr)
		md = fallbackNotes(title, transcript)
		fallback = true
		gen.Provider = opts.Provider
		gen.Model = opts.Model
		gen.Status = "fallback"
		gen.Fallback = true
		gen.Error = synthErr.Error()
	}

	if opts.SlidesPath != "" {
		if slides, err := pdf.Extract(opts.SlidesPath); err != nil {
			slog.Warn("slides extraction failed, keeping notes without slides",
				"audioId", audioID, "error", err)
		} else if slides != "" {
			md += "\n\n## From Slides\n\n" + slides
		}
	}

	if err := p.store.SaveNotes(audioID, md); err != nil {
		return Result{}, fmt.Errorf("saving notes: %w", err)
	}
	if p.index != nil {
		if err := p.index.SaveGeneration(gen); err != nil {
			slog.Warn("recording generation history failed", "audioId", audioID, "error", err)
		}
	}

	return Result{AudioID: audioID, Title: title, Notes: md, Fallback: fallback}, nil
}

const fallbackExcerptLen = 500

// fallbackNotes wraps a transcript excerpt in minimal markdown so a
// record is never left without notes after a failed generation.
func fallbackNotes(title, transcript string) string {
	excerpt := transcript
	if r := []rune(excerpt); len(r) > fallbackExcerptLen {
		excerpt = string(r[:fallbackExcerptLen])
	}
	return fmt.Sprintf("# Notes: %s\n\n## Transcription\n\n%s...\n\n(Note: Automated note generation failed. This is the raw transcription.)", title, excerpt)
}
