package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"lectura/internal/index"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []index.Job
	ch   chan index.Job
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{ch: make(chan index.Job, 16)}
}

func (q *recordingQueue) EnqueueJob(job index.Job) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.ch <- job
	return nil
}

type recordingBatch struct {
	paths  []string
	failed []string
}

func (b *recordingBatch) ProcessBatch(_ context.Context, paths []string, _ int) []string {
	b.paths = paths
	return b.failed
}

func TestIsAudioFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"lecture.mp3", true},
		{"lecture.M4A", true},
		{"lecture.wav", true},
		{"lecture.flac", true},
		{"lecture.ogg", true},
		{"lecture.aac", true},
		{"notes.txt", false},
		{"slides.pdf", false},
		{"lecture.mp3.part", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := isAudioFile(tt.name); got != tt.want {
			t.Errorf("isAudioFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "broken.mp3")
	consumed := filepath.Join(dir, "good.mp3")
	for _, p := range []string{keep, consumed} {
		if err := os.WriteFile(p, []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-audio files are not swept.
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(dir, time.Millisecond, newRecordingQueue())
	batch := &recordingBatch{failed: []string{keep}}
	if err := w.Sweep(context.Background(), batch, 2); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(batch.paths) != 2 {
		t.Fatalf("batch got %d paths, want 2 audio files", len(batch.paths))
	}
	if _, err := os.Stat(consumed); !os.IsNotExist(err) {
		t.Error("successfully processed file not removed")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("failed file should remain for the next sweep")
	}
}

func TestSweep_EmptyDir(t *testing.T) {
	w := New(t.TempDir(), time.Millisecond, newRecordingQueue())
	batch := &recordingBatch{}
	if err := w.Sweep(context.Background(), batch, 2); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if batch.paths != nil {
		t.Errorf("batch invoked with %v for empty dir", batch.paths)
	}
}

func TestHandleEventDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drop.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	queue := newRecordingQueue()
	w := New(dir, 20*time.Millisecond, queue)

	// A burst of writes for the same file collapses to one job.
	for i := 0; i < 5; i++ {
		w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	}
	// Non-audio events are ignored entirely.
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "slides.pdf"), Op: fsnotify.Create})

	select {
	case job := <-queue.ch:
		if job.Type != "process_audio" {
			t.Errorf("job type = %q", job.Type)
		}
		var payload map[string]string
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			t.Fatal(err)
		}
		if payload["audio_path"] != path {
			t.Errorf("audio_path = %q, want %q", payload["audio_path"], path)
		}
	case <-time.After(time.Second):
		t.Fatal("no job enqueued")
	}

	select {
	case job := <-queue.ch:
		t.Fatalf("burst produced a second job: %+v", job)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleEventSkipsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.mp3")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	queue := newRecordingQueue()
	w := New(dir, 5*time.Millisecond, queue)
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Create})

	select {
	case job := <-queue.ch:
		t.Fatalf("empty file enqueued: %+v", job)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRun_EnqueuesDroppedFile(t *testing.T) {
	dir := t.TempDir()
	queue := newRecordingQueue()
	w := New(dir, 10*time.Millisecond, queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "seminar.mp3")
	if err := os.WriteFile(path, []byte("audio bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case job := <-queue.ch:
		if job.Type != "process_audio" {
			t.Errorf("job type = %q", job.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("dropped file never enqueued")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
