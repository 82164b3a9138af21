package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
)

// Result is a finished transcription. Text is the plain transcript;
// Raw carries the full engine payload (segments, language, timings) for
// callers that want more than the text.
type Result struct {
	Text string
	Raw  json.RawMessage
}

// Transcriber turns an audio file into a transcript. The model hint may be
// empty, in which case the implementation's configured default applies.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, model string) (Result, error)
}

// ParseError reports engine output that could not be decoded even after
// repair. Retryable is set when the output shows the known transient
// symptom (bare NaN tokens) and a re-run may produce a clean payload.
type ParseError struct {
	Err       error
	Retryable bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing transcription output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
