package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// runner executes the transcription binary and returns its combined
// output. Tests substitute it to avoid spawning real processes.
type runner func(ctx context.Context, bin string, args []string) ([]byte, error)

func execRunner(ctx context.Context, bin string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, bin, args...).CombinedOutput()
}

// Whisper invokes the whisper CLI as a subprocess. The CLI writes a JSON
// result file next to its other outputs; that side file is read, repaired,
// and decoded instead of scraping stdout.
type Whisper struct {
	binary     string
	model      string
	retries    int
	retryDelay time.Duration

	run runner
}

// NewWhisper returns an invoker for the given binary and default model.
// retries is the total attempt bound; retryDelay is the fixed wait between
// attempts.
func NewWhisper(binary, model string, retries int, retryDelay time.Duration) *Whisper {
	if retries < 1 {
		retries = 1
	}
	return &Whisper{
		binary:     binary,
		model:      model,
		retries:    retries,
		retryDelay: retryDelay,
		run:        execRunner,
	}
}

func (w *Whisper) Transcribe(ctx context.Context, audioPath, model string) (Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return Result{}, fmt.Errorf("audio file not accessible: %w", err)
	}
	if model == "" || model == "default" {
		model = w.model
	}

	var lastErr error
	for attempt := 1; attempt <= w.retries; attempt++ {
		res, err := w.transcribeOnce(ctx, audioPath, model)
		if err == nil {
			return res, nil
		}
		lastErr = err

		var pe *ParseError
		if !errors.As(err, &pe) || !pe.Retryable {
			return Result{}, err
		}
		if attempt == w.retries {
			break
		}

		slog.Warn("transcription output malformed, retrying",
			"audio", filepath.Base(audioPath),
			"attempt", attempt,
			"error", err)
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(w.retryDelay):
		}
	}
	return Result{}, fmt.Errorf("transcription failed after %d attempts: %w", w.retries, lastErr)
}

func (w *Whisper) transcribeOnce(ctx context.Context, audioPath, model string) (Result, error) {
	outDir, err := os.MkdirTemp("", "lectura-whisper-")
	if err != nil {
		return Result{}, fmt.Errorf("creating whisper output dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(outDir); err != nil {
			slog.Warn("failed to clean up whisper output dir", "dir", outDir, "error", err)
		}
	}()

	args := []string{
		audioPath,
		"--model", model,
		"--output_dir", outDir,
		"--output_format", "json",
	}
	out, err := w.run(ctx, w.binary, args)
	if err != nil {
		return Result{}, fmt.Errorf("whisper run failed: %w: %s", err, trimOutput(out))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	raw, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return Result{}, fmt.Errorf("reading whisper result file: %w", err)
	}

	repaired := RepairRawJSON(raw)
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(repaired, &payload); err != nil {
		return Result{}, &ParseError{
			Err:       err,
			Retryable: bytes.Contains(raw, []byte("NaN")),
		}
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return Result{}, errors.New("transcription produced no text")
	}
	return Result{Text: text, Raw: repaired}, nil
}

func trimOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 400 {
		s = s[:400] + "..."
	}
	return s
}
