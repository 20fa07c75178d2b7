package worker

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner evicts expired entries and reports how many were removed.
type Cleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

type CleanerFunc func(ctx context.Context) (int, error)

func (f CleanerFunc) Cleanup(ctx context.Context) (int, error) { return f(ctx) }

// Sweeper periodically runs every cleaner. It exits only when ctx is done,
// after the sweep in progress has finished.
type Sweeper struct {
	Cleaners []Cleaner
	Interval time.Duration
}

func (w *Sweeper) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 10 * time.Minute
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	removed := 0
	for _, c := range w.Cleaners {
		n, err := c.Cleanup(ctx)
		if err != nil {
			slog.Error("sweeper: cleanup failed", "error", err)
		}
		removed += n
	}
	slog.Debug("sweeper: sweep done", "removed", removed)
}
