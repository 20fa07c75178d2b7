package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"news-radar/internal/keywords"
	"news-radar/internal/model"
)

// Fetcher is one source adapter. Implementations must honour ctx and
// return promptly once it is done.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, lookback time.Duration) ([]model.Item, error)
}

// Report is the outcome of one source in a pass.
type Report struct {
	Source   string        `json:"source"`
	OK       bool          `json:"ok"`
	Items    int           `json:"items"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Config struct {
	SourceTimeout     time.Duration
	MaxItems          int
	MinTitleLength    int
	TitlePrefixLength int
	MaxClockSkew      time.Duration
}

func (c *Config) fillDefaults() {
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 20 * time.Second
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 100
	}
	if c.MinTitleLength <= 0 {
		c.MinTitleLength = 10
	}
	if c.TitlePrefixLength <= 0 {
		c.TitlePrefixLength = 60
	}
	if c.MaxClockSkew <= 0 {
		c.MaxClockSkew = time.Hour
	}
}

// Aggregator fans out to every fetcher and ranks the combined result.
type Aggregator struct {
	fetchers []Fetcher
	tax      *keywords.Taxonomy
	cfg      Config
	now      func() time.Time
}

func New(fetchers []Fetcher, tax *keywords.Taxonomy, cfg Config) *Aggregator {
	cfg.fillDefaults()
	if tax == nil {
		tax = keywords.Default()
	}
	return &Aggregator{fetchers: fetchers, tax: tax, cfg: cfg, now: time.Now}
}

// Sources lists the registered fetcher names.
func (a *Aggregator) Sources() []string {
	out := make([]string, 0, len(a.fetchers))
	for _, f := range a.fetchers {
		out = append(out, f.Name())
	}
	return out
}

// Aggregate runs every fetcher concurrently and waits for all of them,
// each bounded by the source timeout. Failures are recorded in the reports
// and never abort other sources. When every source fails the item list is
// empty.
func (a *Aggregator) Aggregate(ctx context.Context, lookback time.Duration) ([]model.Item, []Report) {
	reports := make([]Report, len(a.fetchers))
	results := make([][]model.Item, len(a.fetchers))

	var wg sync.WaitGroup
	for i, f := range a.fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()
			results[i], reports[i] = a.fetchOne(ctx, f, lookback)
		}(i, f)
	}
	wg.Wait()

	var raw []model.Item
	failed := 0
	for i, r := range reports {
		if !r.OK {
			failed++
			slog.Warn("aggregate: source failed", "source", r.Source, "error", r.Error, "duration", r.Duration)
			continue
		}
		raw = append(raw, results[i]...)
	}
	if len(a.fetchers) > 0 && failed == len(a.fetchers) {
		slog.Error("aggregate: all sources failed", "sources", failed)
		return nil, reports
	}
	ranked := a.Rank(raw, lookback, a.now())
	slog.Info("aggregate: pass complete", "raw", len(raw), "ranked", len(ranked), "failed_sources", failed)
	return ranked, reports
}

type fetchResult struct {
	items []model.Item
	err   error
}

func (a *Aggregator) fetchOne(ctx context.Context, f Fetcher, lookback time.Duration) ([]model.Item, Report) {
	start := time.Now()
	rep := Report{Source: f.Name()}

	fctx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
	defer cancel()

	ch := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- fetchResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		items, err := f.Fetch(fctx, lookback)
		ch <- fetchResult{items: items, err: err}
	}()

	var res fetchResult
	select {
	case res = <-ch:
	case <-fctx.Done():
		res = fetchResult{err: fmt.Errorf("timed out: %w", fctx.Err())}
	}
	rep.Duration = time.Since(start)
	if res.err != nil {
		rep.Error = res.err.Error()
		return nil, rep
	}
	rep.OK = true
	rep.Items = len(res.items)
	return res.items, rep
}
