package transcriber

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRunner writes a canned result file into the --output_dir argument,
// emulating the whisper CLI side file.
func fakeRunner(payloads []string, calls *int) runner {
	return func(_ context.Context, _ string, args []string) ([]byte, error) {
		idx := *calls
		*calls++
		if idx >= len(payloads) {
			idx = len(payloads) - 1
		}

		var outDir, audio string
		for i, a := range args {
			if a == "--output_dir" && i+1 < len(args) {
				outDir = args[i+1]
			}
		}
		audio = args[0]
		base := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
		err := os.WriteFile(filepath.Join(outDir, base+".json"), []byte(payloads[idx]), 0o644)
		return nil, err
	}
}

func testAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lecture.mp3")
	if err := os.WriteFile(path, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	calls := 0
	w := NewWhisper("whisper", "base", 3, time.Millisecond)
	w.run = fakeRunner([]string{`{"text":" hello world \n"}`}, &calls)

	res, err := w.Transcribe(context.Background(), testAudio(t), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q, want %q", res.Text, "hello world")
	}
	if calls != 1 {
		t.Errorf("runner calls = %d, want 1", calls)
	}
}

func TestTranscribeRepairsNaN(t *testing.T) {
	calls := 0
	w := NewWhisper("whisper", "base", 3, time.Millisecond)
	w.run = fakeRunner([]string{`{"text":"talk","segments":[{"compression_ratio":NaN}]}`}, &calls)

	res, err := w.Transcribe(context.Background(), testAudio(t), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "talk" {
		t.Errorf("Text = %q, want %q", res.Text, "talk")
	}
	if calls != 1 {
		t.Errorf("runner calls = %d, want 1 (repair should avoid a retry)", calls)
	}
}

func TestTranscribeRetriesThenSucceeds(t *testing.T) {
	calls := 0
	w := NewWhisper("whisper", "base", 3, time.Millisecond)
	// First payload stays broken even after token repair (NaN inside a
	// truncated structure); second is clean.
	w.run = fakeRunner([]string{`{"text":"x","p":NaN`, `{"text":"recovered"}`}, &calls)

	res, err := w.Transcribe(context.Background(), testAudio(t), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "recovered" {
		t.Errorf("Text = %q, want %q", res.Text, "recovered")
	}
	if calls != 2 {
		t.Errorf("runner calls = %d, want 2", calls)
	}
}

func TestTranscribeExhaustsRetries(t *testing.T) {
	calls := 0
	w := NewWhisper("whisper", "base", 3, time.Millisecond)
	w.run = fakeRunner([]string{`{"text":"x","p":NaN`}, &calls)

	_, err := w.Transcribe(context.Background(), testAudio(t), "")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls != 3 {
		t.Errorf("runner calls = %d, want 3", calls)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error = %v, want attempt count", err)
	}
}

func TestTranscribeNonRetryableParseError(t *testing.T) {
	calls := 0
	w := NewWhisper("whisper", "base", 3, time.Millisecond)
	w.run = fakeRunner([]string{`not json at all`}, &calls)

	_, err := w.Transcribe(context.Background(), testAudio(t), "")
	if err == nil {
		t.Fatal("expected parse error")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %T, want *ParseError", err)
	}
	if pe.Retryable {
		t.Error("parse error without NaN symptom should not be retryable")
	}
	if calls != 1 {
		t.Errorf("runner calls = %d, want 1 (no retry)", calls)
	}
}

func TestTranscribeRunFailure(t *testing.T) {
	w := NewWhisper("whisper", "base", 3, time.Millisecond)
	calls := 0
	w.run = func(context.Context, string, []string) ([]byte, error) {
		calls++
		return []byte("CUDA out of memory"), errors.New("exit status 1")
	}

	_, err := w.Transcribe(context.Background(), testAudio(t), "")
	if err == nil || !strings.Contains(err.Error(), "whisper run failed") {
		t.Fatalf("error = %v, want run failure", err)
	}
	if calls != 1 {
		t.Errorf("runner calls = %d, want 1 (execution failures are not retried)", calls)
	}
}

func TestTranscribeMissingAudio(t *testing.T) {
	w := NewWhisper("whisper", "base", 3, time.Millisecond)
	if _, err := w.Transcribe(context.Background(), filepath.Join(t.TempDir(), "gone.mp3"), ""); err == nil {
		t.Fatal("expected error for missing audio file")
	}
}

func TestTranscribeEmptyText(t *testing.T) {
	calls := 0
	w := NewWhisper("whisper", "base", 3, time.Millisecond)
	w.run = fakeRunner([]string{`{"text":"   "}`}, &calls)

	if _, err := w.Transcribe(context.Background(), testAudio(t), ""); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}
