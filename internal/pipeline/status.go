package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"news-radar/internal/cache"
	"news-radar/internal/credentials"
	"news-radar/internal/scheduler"
)

// StatusReport is the operator view of every owned component.
type StatusReport struct {
	Scheduler   scheduler.Status     `json:"scheduler"`
	Credentials credentials.Stats    `json:"credentials"`
	Keys        []credentials.Status `json:"keys"`
	Caches      []cache.Stats        `json:"caches"`
}

func (p *Pipeline) Status(ctx context.Context) (StatusReport, error) {
	st, err := p.Scheduler.Status(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("pipeline status: %w", err)
	}
	return StatusReport{
		Scheduler:   st,
		Credentials: p.Pool.Stats(),
		Keys:        p.Pool.DetailedStatus(),
		Caches:      p.CacheStats(),
	}, nil
}

func (p *Pipeline) CacheStats() []cache.Stats {
	return []cache.Stats{p.Sources.Stats(), p.Classifications.Stats(), p.Output.Stats()}
}

// Cleanup evicts expired entries from all three caches and returns the
// number removed.
func (p *Pipeline) Cleanup(ctx context.Context) (int, error) {
	cleaners := []func(context.Context) (int, error){
		p.Sources.Cleanup,
		p.Classifications.Cleanup,
		p.Output.Cleanup,
	}
	total := 0
	var errs []error
	for _, c := range cleaners {
		n, err := c(ctx)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	if total > 0 {
		slog.Info("pipeline: cache cleanup", "removed", total)
	}
	return total, errors.Join(errs...)
}
