package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"news-radar/internal/aggregate"
	"news-radar/internal/cache"
	"news-radar/internal/classify"
	"news-radar/internal/credentials"
	"news-radar/internal/model"
	"news-radar/internal/scheduler"
)

// ErrNoData means nothing could be fetched and nothing usable is cached.
var ErrNoData = errors.New("pipeline: no data available")

// latestKey is the single key used in the sources and output caches.
const latestKey = "latest"

// Result is what a refresh returns and what the output cache holds.
type Result struct {
	Items       []model.Item       `json:"items"`
	FromCache   bool               `json:"from_cache"`
	Action      scheduler.Action   `json:"action"`
	Stats       Stats              `json:"stats"`
	Scheduler   scheduler.Status   `json:"scheduler"`
	Sources     []aggregate.Report `json:"sources,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type Stats struct {
	TotalItems int            `json:"total_items"`
	Sources    map[string]int `json:"sources"`
	Categories map[string]int `json:"categories"`
	Priorities map[string]int `json:"priorities"`
}

// Deps are the long-lived instances a Pipeline owns.
type Deps struct {
	Aggregator      *aggregate.Aggregator
	Classifier      *classify.Orchestrator
	Scheduler       *scheduler.Scheduler
	Pool            *credentials.Pool
	Sources         *cache.Cache[[]model.Item]
	Classifications *cache.Cache[model.Enrichment]
	Output          *cache.Cache[Result]
}

type Config struct {
	Lookback     time.Duration
	InitTimeout  time.Duration
	ClassifyTopN int
}

func (c *Config) fillDefaults() {
	if c.Lookback <= 0 {
		c.Lookback = 72 * time.Hour
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = 3 * time.Second
	}
	if c.ClassifyTopN <= 0 {
		c.ClassifyTopN = 30
	}
}

type Pipeline struct {
	Deps
	cfg Config
	now func() time.Time
}

func New(deps Deps, cfg Config) *Pipeline {
	cfg.fillDefaults()
	return &Pipeline{Deps: deps, cfg: cfg, now: time.Now}
}

// Refresh serves the cached output or runs a fetch, depending on the
// scheduler. force skips the scheduler unless a run is in progress.
func (p *Pipeline) Refresh(ctx context.Context, force bool) (Result, error) {
	action := p.decide(ctx, force)
	slog.Info("pipeline: refresh", "action", action, "force", force)

	switch action {
	case scheduler.ActionWait, scheduler.ActionServeCache:
		if res, ok := p.cachedOutput(ctx, action); ok {
			return res, nil
		}
		if action == scheduler.ActionWait {
			return Result{}, ErrNoData
		}
		slog.Info("pipeline: no cached output, fetching")
		action = scheduler.ActionFetchAndAnalyze
	}
	return p.run(ctx, action)
}

func (p *Pipeline) decide(ctx context.Context, force bool) scheduler.Action {
	ictx, cancel := context.WithTimeout(ctx, p.cfg.InitTimeout)
	defer cancel()

	if force {
		if st, err := p.Scheduler.State(ictx); err == nil && st.Processing {
			return scheduler.ActionWait
		}
		return scheduler.ActionFetchAndAnalyze
	}
	action, err := p.Scheduler.NextAction(ictx)
	if err != nil {
		slog.Error("pipeline: scheduler unavailable, serving cache", "error", err)
		return scheduler.ActionServeCache
	}
	return action
}

func (p *Pipeline) run(ctx context.Context, action scheduler.Action) (Result, error) {
	fetching, err := p.begin(ctx, p.Scheduler.StartFetch)
	if errors.Is(err, scheduler.ErrBusy) {
		if res, ok := p.cachedOutput(ctx, scheduler.ActionWait); ok {
			return res, nil
		}
		return Result{}, ErrNoData
	}

	items, reports := p.Aggregator.Aggregate(ctx, p.cfg.Lookback)
	fromCache := false
	if allFailed(reports) {
		p.finish(ctx, fetching, p.Scheduler.FailFetch)
		cached, ok := p.Sources.Get(ctx, latestKey)
		if !ok || len(cached) == 0 {
			if res, ok := p.cachedOutput(ctx, action); ok {
				res.Sources = reports
				return res, nil
			}
			return Result{}, ErrNoData
		}
		slog.Warn("pipeline: all sources failed, using cached items", "items", len(cached))
		items = p.Aggregator.Rank(cached, p.cfg.Lookback, p.now())
		fromCache = true
	} else {
		p.finish(ctx, fetching, p.Scheduler.CompleteFetch)
		if len(items) > 0 {
			if err := p.Sources.Set(ctx, latestKey, items); err != nil {
				slog.Error("pipeline: source cache write failed", "error", err)
			}
		}
	}

	var enriched []model.Item
	if action == scheduler.ActionFetchOnly {
		enriched = p.Classifier.ClassifyOffline(ctx, items)
	} else {
		analyzing, _ := p.begin(ctx, p.Scheduler.StartAnalysis)
		enriched = p.Classifier.ClassifyTop(ctx, items, p.cfg.ClassifyTopN)
		if ctx.Err() != nil {
			p.finish(ctx, analyzing, p.Scheduler.FailAnalysis)
		} else {
			p.finish(ctx, analyzing, p.Scheduler.CompleteAnalysis)
		}
	}

	res := Result{
		Items:       enriched,
		FromCache:   fromCache,
		Action:      action,
		Stats:       computeStats(enriched),
		Sources:     reports,
		GeneratedAt: p.now(),
	}
	res.Scheduler = p.schedulerStatus(ctx)
	if len(enriched) > 0 {
		if err := p.Output.Set(ctx, latestKey, res); err != nil {
			slog.Error("pipeline: output cache write failed", "error", err)
		}
	}
	slog.Info("pipeline: refresh complete", "action", action, "items", len(enriched), "from_cache", fromCache)
	return res, nil
}

// begin starts a scheduler phase. A store error is logged and the run
// continues untracked; ErrBusy is returned to the caller.
func (p *Pipeline) begin(ctx context.Context, start func(context.Context) error) (bool, error) {
	err := start(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, scheduler.ErrBusy):
		slog.Info("pipeline: another run in progress", "error", err)
	default:
		slog.Error("pipeline: scheduler update failed", "error", err)
	}
	return false, err
}

func (p *Pipeline) finish(ctx context.Context, started bool, done func(context.Context) error) {
	if !started {
		return
	}
	if err := done(context.WithoutCancel(ctx)); err != nil {
		slog.Error("pipeline: scheduler update failed", "error", err)
	}
}

// Latest returns the cached output without consulting the scheduler.
func (p *Pipeline) Latest(ctx context.Context) (Result, bool) {
	return p.Output.Get(ctx, latestKey)
}

func (p *Pipeline) cachedOutput(ctx context.Context, action scheduler.Action) (Result, bool) {
	res, ok := p.Output.Get(ctx, latestKey)
	if !ok {
		return Result{}, false
	}
	res.FromCache = true
	res.Action = action
	res.Scheduler = p.schedulerStatus(ctx)
	return res, true
}

func (p *Pipeline) schedulerStatus(ctx context.Context) scheduler.Status {
	st, err := p.Scheduler.Status(ctx)
	if err != nil {
		slog.Warn("pipeline: scheduler status unavailable", "error", err)
	}
	return st
}

func allFailed(reports []aggregate.Report) bool {
	for _, r := range reports {
		if r.OK {
			return false
		}
	}
	return true
}

func computeStats(items []model.Item) Stats {
	st := Stats{
		TotalItems: len(items),
		Sources:    map[string]int{},
		Categories: map[string]int{},
		Priorities: map[string]int{},
	}
	for _, it := range items {
		st.Sources[it.Source]++
		if it.Enrichment != nil {
			st.Categories[string(it.Enrichment.Category)]++
			st.Priorities[string(it.Enrichment.Priority)]++
		}
	}
	return st
}
