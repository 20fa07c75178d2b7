package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Worker runs until ctx is cancelled. A non-nil error means it stopped on
// its own.
type Worker interface {
	Start(ctx context.Context) error
}

// Manager starts and supervises a set of workers.
type Manager struct {
	workers []Worker
}

func NewManager(ws ...Worker) *Manager {
	return &Manager{workers: ws}
}

// Start runs every worker and returns once ctx is cancelled and all of them
// have exited, so no background write is cut short on shutdown.
func (m *Manager) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(m.workers))
	for _, w := range m.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			if err := w.Start(ctx); err != nil {
				slog.Error("manager: worker stopped", "worker", fmt.Sprintf("%T", w), "error", err)
				errs <- fmt.Errorf("%T: %w", w, err)
			}
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		all = append(all, err)
	}
	return errors.Join(all...)
}
