package scheduler

import (
	"context"
	"time"
)

// Status is a read-only view for operators.
type Status struct {
	State          State         `json:"state"`
	Processing     bool          `json:"processing"`
	NextAction     Action        `json:"next_action"`
	NextFetchIn    time.Duration `json:"next_fetch_in"`
	NextAnalysisIn time.Duration `json:"next_analysis_in"`
}

func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.current(ctx)
	if err != nil {
		return Status{}, err
	}
	now := s.now()
	return Status{
		State:          st,
		Processing:     st.Processing,
		NextAction:     s.decide(st, now),
		NextFetchIn:    remaining(st.LastFetch, now, s.cfg.MinFetchInterval),
		NextAnalysisIn: remaining(st.LastAnalysis, now, s.cfg.MinAnalysisInterval),
	}, nil
}

func remaining(last, now time.Time, interval time.Duration) time.Duration {
	if last.IsZero() {
		return 0
	}
	return max(0, interval-now.Sub(last))
}
