// Package worker drains the background job queue: queued uploads get
// processed, queued regenerations get re-synthesized.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"lectura/internal/index"
	"lectura/internal/pipeline"
)

// JobStore abstracts the job queue operations. *index.Index satisfies it.
type JobStore interface {
	ClaimNextJob(types []string) (*index.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Processor is the pipeline surface the worker drives.
type Processor interface {
	Process(ctx context.Context, audioPath string, opts pipeline.Options) (pipeline.Result, error)
	Regenerate(ctx context.Context, audioID string, opts pipeline.Options) (pipeline.Result, error)
}

var jobTypes = []string{"process_audio", "regenerate_notes"}

// Worker claims and runs queued pipeline jobs.
type Worker struct {
	store    JobStore
	pipeline Processor
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 1s.
func NewWorker(store JobStore, p Processor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		store:    store,
		pipeline: p,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. Returns true if a job was
// processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(jobTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type processPayload struct {
	AudioPath    string `json:"audio_path"`
	Title        string `json:"title"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	WhisperModel string `json:"whisper_model"`
	SlidesPath   string `json:"slides_path"`
}

type regeneratePayload struct {
	AudioID  string `json:"audio_id"`
	Title    string `json:"title"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (w *Worker) processJob(ctx context.Context, job *index.Job) error {
	switch job.Type {
	case "process_audio":
		var p processPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		res, err := w.pipeline.Process(ctx, p.AudioPath, pipeline.Options{
			Title:        p.Title,
			Provider:     p.Provider,
			Model:        p.Model,
			WhisperModel: p.WhisperModel,
			SlidesPath:   p.SlidesPath,
		})
		if err != nil {
			return fmt.Errorf("processing %s: %w", p.AudioPath, err)
		}
		// The upload has served its purpose once the transcript is stored.
		if err := os.Remove(p.AudioPath); err != nil {
			w.logger.Warn("failed to remove processed upload", "path", p.AudioPath, "error", err)
		}
		w.logger.Info("processed queued upload", "job_id", job.ID, "audioId", res.AudioID)
		return nil

	case "regenerate_notes":
		var p regeneratePayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		res, err := w.pipeline.Regenerate(ctx, p.AudioID, pipeline.Options{
			Title:    p.Title,
			Provider: p.Provider,
			Model:    p.Model,
		})
		if err != nil {
			return fmt.Errorf("regenerating %s: %w", p.AudioID, err)
		}
		w.logger.Info("regenerated notes", "job_id", job.ID, "audioId", res.AudioID, "fallback", res.Fallback)
		return nil

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
