// Package store persists transcripts, generated notes, and record metadata
// on the filesystem. Each record owns a directory named by its audioId
// containing metadata.json, transcription.txt, and notes.md.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	metadataFile   = "metadata.json"
	transcriptFile = "transcription.txt"
	notesFile      = "notes.md"
)

// Store reads and writes records under a single root directory. There is no
// in-memory cache; every operation hits the filesystem so concurrent
// processes observe each other's writes. The root is created lazily.
type Store struct {
	root string
	// now is injectable for deterministic IDs in tests.
	now func() time.Time
}

// New creates a Store rooted at dir. The directory is not created until the
// first write.
func New(dir string) *Store {
	return &Store{root: dir, now: time.Now}
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) recordDir(audioID string) string {
	return filepath.Join(s.root, audioID)
}

// SaveTranscript mints a new audioId for the audio file, creates its record
// directory, and writes metadata and transcript. Each call creates a new
// record; identical audio is not deduplicated.
func (s *Store) SaveTranscript(audioPath, transcript, title string) (SaveResult, error) {
	if title == "" {
		base := filepath.Base(audioPath)
		title = base[:len(base)-len(filepath.Ext(base))]
	}

	now := s.now().UTC()
	audioID := NewAudioID(audioPath, title, now)
	dir := s.recordDir(audioID)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SaveResult{}, fmt.Errorf("creating record directory: %w", err)
	}

	rec := Record{
		AudioID:          audioID,
		Title:            title,
		OriginalFilePath: audioPath,
		OriginalFileName: filepath.Base(audioPath),
		DateProcessed:    now,
	}
	if err := s.writeMetadata(audioID, rec); err != nil {
		return SaveResult{}, err
	}

	if err := os.WriteFile(filepath.Join(dir, transcriptFile), []byte(transcript), 0o644); err != nil {
		return SaveResult{}, fmt.Errorf("writing transcript: %w", err)
	}

	return SaveResult{AudioID: audioID, Directory: dir}, nil
}

// SaveNotes writes the notes file for audioID and advances
// lastNotesGenerated in its metadata. The record directory is created on
// demand so fallback paths can always persist something; a metadata update
// failure is logged, not escalated.
func (s *Store) SaveNotes(audioID, notes string) error {
	dir := s.recordDir(audioID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating record directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, notesFile), []byte(notes), 0o644); err != nil {
		return fmt.Errorf("writing notes: %w", err)
	}

	rec, err := s.GetMetadata(audioID)
	if err != nil {
		slog.Warn("could not update notes timestamp", "audio_id", audioID, "error", err)
		return nil
	}
	now := s.now().UTC()
	rec.LastNotesGenerated = &now
	if err := s.writeMetadata(audioID, rec); err != nil {
		slog.Warn("could not update notes timestamp", "audio_id", audioID, "error", err)
	}
	return nil
}

// GetTranscript returns the stored transcript text for audioID.
func (s *Store) GetTranscript(audioID string) (string, error) {
	return s.readFile(audioID, transcriptFile)
}

// GetNotes returns the stored notes for audioID.
func (s *Store) GetNotes(audioID string) (string, error) {
	return s.readFile(audioID, notesFile)
}

// GetMetadata returns the record metadata for audioID.
func (s *Store) GetMetadata(audioID string) (Record, error) {
	data, err := s.readFile(audioID, metadataFile)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return Record{}, fmt.Errorf("parsing metadata for %s: %w", audioID, err)
	}
	return rec, nil
}

// ListAll scans the storage root and returns metadata for every record,
// newest first. Entries whose metadata cannot be read or parsed are skipped
// with a warning so one corrupt record does not hide the rest.
func (s *Store) ListAll() ([]Record, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading storage root: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := s.GetMetadata(entry.Name())
		if err != nil {
			slog.Warn("skipping unreadable record", "dir", entry.Name(), "error", err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].DateProcessed.After(records[j].DateProcessed)
	})
	return records, nil
}

// Delete removes the record directory and everything in it. Deleting a
// record that does not exist returns ErrNotFound.
func (s *Store) Delete(audioID string) error {
	dir := s.recordDir(audioID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("record %s: %w", audioID, ErrNotFound)
		}
		return fmt.Errorf("checking record %s: %w", audioID, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting record %s: %w", audioID, err)
	}
	return nil
}

func (s *Store) readFile(audioID, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.recordDir(audioID), name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("record %s: %w", audioID, ErrNotFound)
		}
		return "", fmt.Errorf("reading %s for %s: %w", name, audioID, err)
	}
	return string(data), nil
}

func (s *Store) writeMetadata(audioID string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.recordDir(audioID), metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}
