package worker

import (
	"context"
	"log/slog"
	"time"

	"news-radar/internal/digest"
	"news-radar/internal/pipeline"
)

// OutputSource is implemented by *pipeline.Pipeline.
type OutputSource interface {
	Latest(ctx context.Context) (pipeline.Result, bool)
}

// DigestWriter renders the latest output to a dated Markdown file on an
// interval. Each run overwrites the file for the current day.
type DigestWriter struct {
	Source    OutputSource
	OutputDir string
	Title     string
	Preface   string
	Interval  time.Duration
	now       func() time.Time
}

func (w *DigestWriter) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = time.Hour
	}
	if w.now == nil {
		w.now = time.Now
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

func (w *DigestWriter) runOnce(ctx context.Context) {
	res, ok := w.Source.Latest(ctx)
	if !ok || len(res.Items) == 0 {
		slog.Info("digest-writer: nothing to write")
		return
	}
	now := w.now()
	path, err := digest.WriteFile(w.OutputDir, digest.FromResult(res, w.Title, w.Preface, now), now)
	if err != nil {
		slog.Error("digest-writer: write failed", "error", err)
		return
	}
	slog.Info("digest-writer: wrote digest", "path", path, "items", len(res.Items))
}
