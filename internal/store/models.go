package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Record is the metadata persisted alongside each transcript/notes pair.
type Record struct {
	AudioID          string     `json:"audioId"`
	Title            string     `json:"title"`
	OriginalFilePath string     `json:"originalFilePath"`
	OriginalFileName string     `json:"originalFileName"`
	DateProcessed    time.Time  `json:"dateProcessed"`
	LastNotesGenerated *time.Time `json:"lastNotesGenerated,omitempty"`
}

// SaveResult identifies a newly created record.
type SaveResult struct {
	AudioID   string
	Directory string
}
