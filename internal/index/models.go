package index

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Generation records one note-generation run against a stored recording.
// Status is "ok" when the provider produced the notes and "fallback" when
// the pipeline substituted fallback content after a provider failure.
type Generation struct {
	ID         string
	AudioID    string
	Provider   string
	Model      string
	Status     string
	Fallback   bool
	DurationMs int64
	Error      string
	CreatedAt  time.Time
}

// Job is a queued background task: "process_audio" or "regenerate_notes".
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
