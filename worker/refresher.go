package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"news-radar/internal/pipeline"
)

// RefreshRunner is implemented by *pipeline.Pipeline.
type RefreshRunner interface {
	Refresh(ctx context.Context, force bool) (pipeline.Result, error)
}

// Refresher asks the pipeline for a refresh on every tick. The scheduler
// decides whether that means serving cache or fetching.
type Refresher struct {
	Pipeline RefreshRunner
	Interval time.Duration
}

func (w *Refresher) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 5 * time.Minute
	}

	// initial run
	w.runOnce(ctx)

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

func (w *Refresher) runOnce(ctx context.Context) {
	res, err := w.Pipeline.Refresh(ctx, false)
	switch {
	case errors.Is(err, pipeline.ErrNoData):
		slog.Warn("refresher: no data yet")
	case err != nil:
		slog.Error("refresher: refresh failed", "error", err)
	default:
		slog.Info("refresher: completed", "action", res.Action, "items", len(res.Items), "from_cache", res.FromCache)
	}
}
