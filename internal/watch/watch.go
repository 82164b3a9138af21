// Package watch monitors a drop directory and feeds new audio files into
// the processing queue.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"lectura/internal/index"
)

// audioExtensions is the set of file extensions taken from the drop
// directory; anything else is ignored.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

func isAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// Enqueuer is the job queue slice the watcher needs. *index.Index
// satisfies it.
type Enqueuer interface {
	EnqueueJob(job index.Job) error
}

// BatchProcessor runs a set of audio files through the pipeline with
// bounded concurrency, returning the paths that failed.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, paths []string, limit int) []string
}

// Watcher enqueues a process_audio job for every audio file dropped into
// dir. Events are debounced per file so a recording still being written
// is only picked up once it goes quiet.
type Watcher struct {
	dir      string
	debounce time.Duration
	queue    Enqueuer

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Watcher for dir. debounce <= 0 defaults to 500ms.
func New(dir string, debounce time.Duration, queue Enqueuer) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		queue:    queue,
		timers:   make(map[string]*time.Timer),
	}
}

// Sweep processes audio files already sitting in the directory, removing
// the ones that were consumed successfully. Files that fail stay put for
// the next sweep.
func (w *Watcher) Sweep(ctx context.Context, batch BatchProcessor, concurrency int) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading watch directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isAudioFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(w.dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil
	}

	slog.Info("sweeping watch directory", "dir", w.dir, "files", len(paths))
	failed := batch.ProcessBatch(ctx, paths, concurrency)

	failedSet := make(map[string]bool, len(failed))
	for _, p := range failed {
		failedSet[p] = true
	}
	for _, p := range paths {
		if failedSet[p] {
			continue
		}
		if err := os.Remove(p); err != nil {
			slog.Warn("failed to remove swept file", "path", p, "error", err)
		}
	}
	return nil
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	slog.Info("watching drop directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// handleEvent debounces create/write events per path and enqueues once
// the file goes quiet.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !isAudioFile(event.Name) {
		return
	}

	path := event.Name
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.enqueue(path)
	})
}

func (w *Watcher) enqueue(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}

	payload, err := json.Marshal(map[string]string{"audio_path": path})
	if err != nil {
		slog.Error("failed to marshal watch payload", "path", path, "error", err)
		return
	}
	job := index.Job{
		ID:          uuid.New().String(),
		Type:        "process_audio",
		PayloadJSON: string(payload),
	}
	if err := w.queue.EnqueueJob(job); err != nil {
		slog.Error("failed to enqueue watched file", "path", path, "error", err)
		return
	}
	slog.Info("queued watched file", "path", path, "job_id", job.ID)
}
