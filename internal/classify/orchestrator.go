package classify

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"news-radar/internal/ai"
	"news-radar/internal/cache"
	"news-radar/internal/credentials"
	"news-radar/internal/keywords"
	"news-radar/internal/model"
)

var errNoCredentials = errors.New("classify: no credentials configured")

// DefaultRetryBackoff is the wait before each retry of a rate-limited call.
var DefaultRetryBackoff = []time.Duration{2 * time.Second, 5 * time.Second}

type Config struct {
	BatchSize    int // 0 derives min(max(pool size, 1), 3)
	BatchDelay   time.Duration
	ItemTimeout  time.Duration
	MaxRetries   int
	RetryBackoff []time.Duration
	MinRelevance int
	HeuristicTTL time.Duration
}

func (c *Config) fillDefaults() {
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = 15 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if len(c.RetryBackoff) == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.MinRelevance <= 0 {
		c.MinRelevance = 6
	}
	if c.HeuristicTTL <= 0 {
		c.HeuristicTTL = time.Hour
	}
}

// Orchestrator enriches items through the external classifier, with
// caching, batching, credential rotation and heuristic fallback.
type Orchestrator struct {
	classifier ai.Classifier
	pool       *credentials.Pool
	cache      *cache.Cache[model.Enrichment]
	tax        *keywords.Taxonomy
	cfg        Config
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
}

func New(classifier ai.Classifier, pool *credentials.Pool, c *cache.Cache[model.Enrichment], tax *keywords.Taxonomy, cfg Config) *Orchestrator {
	cfg.fillDefaults()
	if tax == nil {
		tax = keywords.Default()
	}
	return &Orchestrator{
		classifier: classifier,
		pool:       pool,
		cache:      c,
		tax:        tax,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Classify returns every item enriched, sorted and cut by the relevance
// floor. It never fails: cache misses that cannot be classified externally
// fall back to HeuristicClassify.
func (o *Orchestrator) Classify(ctx context.Context, items []model.Item) []model.Item {
	return o.ClassifyTop(ctx, items, len(items))
}

// ClassifyTop sends only cache misses among the first n items to the
// classifier. The rest are enriched as in ClassifyOffline. All items are
// returned, sorted and cut by the relevance floor as one list.
func (o *Orchestrator) ClassifyTop(ctx context.Context, items []model.Item, n int) []model.Item {
	out, misses := o.fromCache(ctx, items)
	n = max(0, min(n, len(out)))

	var remote, offline []int
	for _, idx := range misses {
		if idx < n {
			remote = append(remote, idx)
		} else {
			offline = append(offline, idx)
		}
	}
	if len(remote) > 0 {
		slog.Info("classify: starting", "items", len(items), "cached", len(items)-len(misses), "remote", len(remote))
		offline = append(offline, o.classifyRemote(ctx, out, remote)...)
	}
	for _, idx := range offline {
		e := o.heuristic(out[idx])
		out[idx].Enrichment = &e
	}
	return o.finish(out)
}

// classifyRemote enriches out[idx] for each idx in batches. When ctx is
// cancelled between batches it stops and returns the indexes it skipped.
func (o *Orchestrator) classifyRemote(ctx context.Context, out []model.Item, idxs []int) []int {
	batch := o.batchSize()
	for start := 0; start < len(idxs); start += batch {
		if start > 0 && o.cfg.BatchDelay > 0 {
			if err := o.sleep(ctx, o.cfg.BatchDelay); err != nil {
				slog.Warn("classify: cancelled between batches", "skipped", len(idxs)-start)
				return idxs[start:]
			}
		}
		if ctx.Err() != nil {
			slog.Warn("classify: cancelled", "skipped", len(idxs)-start)
			return idxs[start:]
		}
		end := min(start+batch, len(idxs))

		var wg sync.WaitGroup
		for _, idx := range idxs[start:end] {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				e := o.classifyOne(ctx, out[idx])
				out[idx].Enrichment = &e
			}(idx)
		}
		wg.Wait()
	}
	return nil
}

// ClassifyOffline enriches from the cache and the heuristic only. Nothing
// is written to the cache.
func (o *Orchestrator) ClassifyOffline(ctx context.Context, items []model.Item) []model.Item {
	out, misses := o.fromCache(ctx, items)
	for _, idx := range misses {
		e := o.heuristic(out[idx])
		out[idx].Enrichment = &e
	}
	return o.finish(out)
}

func (o *Orchestrator) fromCache(ctx context.Context, items []model.Item) ([]model.Item, []int) {
	out := make([]model.Item, len(items))
	copy(out, items)
	var misses []int
	for i := range out {
		if e, ok := o.cache.Get(ctx, out[i].ID); ok {
			e := e
			out[i].Enrichment = &e
			continue
		}
		out[i].Enrichment = nil
		misses = append(misses, i)
	}
	return out, misses
}

func (o *Orchestrator) batchSize() int {
	if o.cfg.BatchSize > 0 {
		return o.cfg.BatchSize
	}
	n := 1
	if o.pool != nil {
		n = max(o.pool.Size(), 1)
	}
	return min(n, 3)
}

func (o *Orchestrator) classifyOne(ctx context.Context, it model.Item) model.Enrichment {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.backoff(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}
		resp, err := o.attempt(ctx, it)
		if err == nil {
			e := fromResponse(resp, it, o.tax)
			applyBoosts(&e, it, o.tax)
			e.ClassifiedAt = o.now()
			o.store(ctx, it.ID, e, 0)
			return e
		}
		lastErr = err
		if !ai.IsRateLimited(err) {
			break
		}
		slog.Warn("classify: rate limited", "item", it.ID, "attempt", attempt+1)
	}

	e := o.heuristic(it)
	if ctx.Err() != nil {
		return e
	}
	slog.Warn("classify: using heuristic", "item", it.ID, "error", lastErr)
	o.store(ctx, it.ID, e, o.cfg.HeuristicTTL)
	return e
}

// attempt makes one classifier call with a freshly selected credential and
// reports the outcome to the pool.
func (o *Orchestrator) attempt(ctx context.Context, it model.Item) (ai.Response, error) {
	if o.classifier == nil || o.pool == nil {
		return ai.Response{}, errNoCredentials
	}
	if err := ctx.Err(); err != nil {
		return ai.Response{}, err
	}
	cred, ok := o.pool.Next()
	if !ok {
		return ai.Response{}, errNoCredentials
	}
	if err := o.pool.Wait(ctx, cred); err != nil {
		return ai.Response{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, o.cfg.ItemTimeout)
	defer cancel()
	resp, err := o.classifier.Classify(cctx, cred.Key, ai.Request{
		Title:   it.Title,
		Source:  it.Source,
		Excerpt: it.Excerpt,
	})
	switch {
	case err == nil:
		o.pool.ReportSuccess(cred)
	case errors.Is(err, ai.ErrMalformed):
		// the key worked, the output did not
		o.pool.ReportSuccess(cred)
	default:
		o.pool.ReportError(cred, ai.StatusCode(err))
	}
	return resp, err
}

func (o *Orchestrator) heuristic(it model.Item) model.Enrichment {
	e := HeuristicClassify(it, o.tax)
	applyBoosts(&e, it, o.tax)
	e.ClassifiedAt = o.now()
	return e
}

func (o *Orchestrator) backoff(retry int) time.Duration {
	table := o.cfg.RetryBackoff
	return table[min(retry, len(table)-1)]
}

func (o *Orchestrator) store(ctx context.Context, id string, e model.Enrichment, ttl time.Duration) {
	opts := []cache.SetOption{cache.WithTag(e.Source)}
	if ttl > 0 {
		opts = append(opts, cache.WithTTL(ttl))
	}
	if err := o.cache.Set(ctx, id, e, opts...); err != nil {
		slog.Error("classify: cache write failed", "item", id, "error", err)
	}
}

// finish sorts and applies the relevance floor. Breaking items and official
// high-priority items are always kept.
func (o *Orchestrator) finish(items []model.Item) []model.Item {
	SortByPriority(items)
	out := items[:0]
	for _, it := range items {
		e := it.Enrichment
		switch {
		case e == nil:
		case e.Priority == model.PriorityBreaking,
			e.Priority == model.PriorityHigh && it.Tier == model.TierOfficial,
			e.Relevance >= o.cfg.MinRelevance:
			out = append(out, it)
		}
	}
	return out
}

// SortByPriority orders enriched items by priority, relevance, aggregation
// score, recency and ID.
func SortByPriority(items []model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		pa, pb := rankOf(a), rankOf(b)
		if pa != pb {
			return pa < pb
		}
		ra, rb := relevanceOf(a), relevanceOf(b)
		if ra != rb {
			return ra > rb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})
}

func rankOf(it model.Item) int {
	if it.Enrichment == nil {
		return len(model.Priorities)
	}
	return it.Enrichment.Priority.Rank()
}

func relevanceOf(it model.Item) int {
	if it.Enrichment == nil {
		return 0
	}
	return it.Enrichment.Relevance
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
