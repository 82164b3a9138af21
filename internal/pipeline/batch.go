package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// ProcessBatch processes the given audio files with at most limit running
// concurrently. Individual failures are logged and do not stop the rest
// of the batch; the paths that failed are returned.
func (p *Pipeline) ProcessBatch(ctx context.Context, paths []string, limit int) []string {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	failures := make(chan string, len(paths))
	for _, path := range paths {
		g.Go(func() error {
			if _, err := p.Process(ctx, path, Options{}); err != nil {
				slog.Error("batch processing failed",
					"audio", filepath.Base(path), "error", err)
				failures <- path
			}
			return nil
		})
	}
	_ = g.Wait()
	close(failures)

	var failed []string
	for path := range failures {
		failed = append(failed, path)
	}
	return failed
}
