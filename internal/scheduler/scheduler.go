package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"news-radar/internal/storage"
)

const (
	namespace = "scheduler"
	stateKey  = "state"
)

// Action is what a refresh should do next.
type Action string

const (
	ActionWait            Action = "wait"
	ActionFetchAndAnalyze Action = "fetch_and_analyze"
	ActionFetchOnly       Action = "fetch_only"
	ActionServeCache      Action = "serve_cache"
)

// Kinds of processing recorded in State.
const (
	KindFetch    = "fetch"
	KindAnalysis = "analysis"
)

// ErrBusy is returned by StartFetch and StartAnalysis while another run holds
// the processing flag.
var ErrBusy = errors.New("scheduler: already processing")

// State is the persisted scheduler record.
type State struct {
	LastFetch       time.Time `json:"last_fetch"`
	LastAnalysis    time.Time `json:"last_analysis"`
	FetchCount      int64     `json:"fetch_count"`
	Processing      bool      `json:"processing"`
	ProcessingStart time.Time `json:"processing_start"`
	ProcessingKind  string    `json:"processing_kind,omitempty"`
	Owner           string    `json:"owner,omitempty"`
}

type Config struct {
	MinFetchInterval    time.Duration
	MinAnalysisInterval time.Duration
	StaleThreshold      time.Duration
	MaxProcessingTime   time.Duration
}

func (c *Config) fillDefaults() {
	if c.MinFetchInterval <= 0 {
		c.MinFetchInterval = 10 * time.Minute
	}
	if c.MinAnalysisInterval <= 0 {
		c.MinAnalysisInterval = 15 * time.Minute
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 30 * time.Minute
	}
	if c.MaxProcessingTime <= 0 {
		c.MaxProcessingTime = 5 * time.Minute
	}
}

// Scheduler decides between serving cache, fetching and classifying. Its
// state lives in the store so it survives restarts. Transitions are
// serialized within a process only; concurrent processes may duplicate
// work but never corrupt the record.
type Scheduler struct {
	store storage.Store
	cfg   Config
	owner string
	now   func() time.Time
	mu    sync.Mutex
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(store storage.Store, cfg Config, opts ...Option) *Scheduler {
	cfg.fillDefaults()
	s := &Scheduler{store: store, cfg: cfg, owner: uuid.NewString(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Owner identifies this process in State.Owner.
func (s *Scheduler) Owner() string { return s.owner }

// State returns the current record, clearing a processing flag that has
// outlived MaxProcessingTime.
func (s *Scheduler) State(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(ctx)
}

func (s *Scheduler) current(ctx context.Context) (State, error) {
	st, err := s.load(ctx)
	if err != nil {
		return State{}, err
	}
	if st.Processing && s.now().Sub(st.ProcessingStart) > s.cfg.MaxProcessingTime {
		slog.Warn("scheduler: clearing stuck processing flag",
			"kind", st.ProcessingKind, "owner", st.Owner, "since", st.ProcessingStart)
		st.Processing = false
		st.ProcessingStart = time.Time{}
		st.ProcessingKind = ""
		st.Owner = ""
		if err := s.save(ctx, st); err != nil {
			return State{}, err
		}
	}
	return st, nil
}

// NextAction applies the refresh rules to the current state.
func (s *Scheduler) NextAction(ctx context.Context) (Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	return s.decide(st, s.now()), nil
}

func (s *Scheduler) decide(st State, now time.Time) Action {
	if st.Processing {
		return ActionWait
	}
	fetchAllowed := elapsed(st.LastFetch, now, s.cfg.MinFetchInterval)
	analysisAllowed := elapsed(st.LastAnalysis, now, s.cfg.MinAnalysisInterval)
	stale := elapsed(st.LastAnalysis, now, s.cfg.StaleThreshold)

	switch {
	case stale && analysisAllowed:
		return ActionFetchAndAnalyze
	case fetchAllowed && !analysisAllowed:
		return ActionFetchOnly
	case fetchAllowed && analysisAllowed:
		return ActionFetchAndAnalyze
	default:
		return ActionServeCache
	}
}

// elapsed reports whether at least d has passed since t. A zero t has
// always elapsed.
func elapsed(t, now time.Time, d time.Duration) bool {
	return t.IsZero() || now.Sub(t) >= d
}

func (s *Scheduler) StartFetch(ctx context.Context) error {
	return s.start(ctx, KindFetch)
}

func (s *Scheduler) StartAnalysis(ctx context.Context) error {
	return s.start(ctx, KindAnalysis)
}

func (s *Scheduler) start(ctx context.Context, kind string) error {
	return s.update(ctx, func(st *State) error {
		if st.Processing {
			return fmt.Errorf("%w (%s since %s)", ErrBusy, st.ProcessingKind, st.ProcessingStart.Format(time.RFC3339))
		}
		st.Processing = true
		st.ProcessingStart = s.now()
		st.ProcessingKind = kind
		st.Owner = s.owner
		return nil
	})
}

func (s *Scheduler) CompleteFetch(ctx context.Context) error {
	return s.update(ctx, func(st *State) error {
		st.LastFetch = s.now()
		st.FetchCount++
		clearProcessing(st)
		return nil
	})
}

func (s *Scheduler) CompleteAnalysis(ctx context.Context) error {
	return s.update(ctx, func(st *State) error {
		st.LastAnalysis = s.now()
		clearProcessing(st)
		return nil
	})
}

// FailFetch and FailAnalysis release the processing flag without touching
// the timestamps, so the next refresh retries.
func (s *Scheduler) FailFetch(ctx context.Context) error {
	return s.update(ctx, func(st *State) error {
		clearProcessing(st)
		return nil
	})
}

func (s *Scheduler) FailAnalysis(ctx context.Context) error {
	return s.FailFetch(ctx)
}

// Reset clears the record to its initial state.
func (s *Scheduler) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slog.Info("scheduler: reset")
	return s.save(ctx, State{})
}

func clearProcessing(st *State) {
	st.Processing = false
	st.ProcessingStart = time.Time{}
	st.ProcessingKind = ""
	st.Owner = ""
}

func (s *Scheduler) update(ctx context.Context, fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.current(ctx)
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	return s.save(ctx, st)
}

func (s *Scheduler) load(ctx context.Context) (State, error) {
	rec, ok, err := s.store.Get(ctx, namespace, stateKey)
	if err != nil {
		return State{}, fmt.Errorf("scheduler: load state: %w", err)
	}
	if !ok {
		return State{}, nil
	}
	var st State
	if err := json.Unmarshal(rec.Data, &st); err != nil {
		slog.Warn("scheduler: discarding unreadable state", "error", err)
		return State{}, nil
	}
	return st, nil
}

func (s *Scheduler) save(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("scheduler: encode state: %w", err)
	}
	if err := s.store.Put(ctx, namespace, storage.Record{Key: stateKey, Data: data}); err != nil {
		return fmt.Errorf("scheduler: save state: %w", err)
	}
	return nil
}
