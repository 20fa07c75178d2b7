package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"news-radar/internal/aggregate"
	"news-radar/internal/ai"
	"news-radar/internal/cache"
	"news-radar/internal/classify"
	"news-radar/internal/config"
	"news-radar/internal/credentials"
	"news-radar/internal/feed"
	"news-radar/internal/github"
	"news-radar/internal/hackernews"
	"news-radar/internal/keywords"
	"news-radar/internal/model"
	"news-radar/internal/pipeline"
	"news-radar/internal/scheduler"
	"news-radar/internal/scrape"
	"news-radar/internal/storage"
	"news-radar/worker"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      config.Config
	store    storage.Store
	pipeline *pipeline.Pipeline
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	tax, err := loadTaxonomy(cfg.Taxonomy.Path)
	if err != nil {
		return nil, err
	}
	fetchers, err := buildFetchers(cfg.Sources)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p, err := buildPipeline(ctx, cfg, store, tax, fetchers)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{cfg: cfg, store: store, pipeline: p}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func buildPipeline(ctx context.Context, cfg config.Config, store storage.Store, tax *keywords.Taxonomy, fetchers []aggregate.Fetcher) (*pipeline.Pipeline, error) {
	sources, err := cache.New[[]model.Item](ctx, "sources", cfg.Cache.SourceTTL, store)
	if err != nil {
		return nil, err
	}
	classifications, err := cache.New[model.Enrichment](ctx, "classifications", cfg.Cache.ClassificationTTL, store)
	if err != nil {
		return nil, err
	}
	output, err := cache.New[pipeline.Result](ctx, "output", cfg.Cache.OutputTTL, store)
	if err != nil {
		return nil, err
	}

	cc := cfg.Credentials
	pool := credentials.NewPool(cfg.Classifier.APIKeys, credentials.Config{
		ErrorThreshold:     cc.ErrorThreshold,
		BaseCooldown:       cc.BaseCooldown,
		CooldownMultiplier: cc.CooldownMultiplier,
		MaxExponent:        cc.MaxExponent,
		FlatCooldown:       cc.FlatCooldown,
		RequestsPerMinute:  cfg.Classifier.RequestsPerMinute,
	})

	var classifier ai.Classifier
	if pool.Size() > 0 {
		classifier = ai.NewOpenAI(ai.Config{Model: cfg.Classifier.Model, BaseURL: cfg.Classifier.BaseURL})
	} else {
		slog.Warn("app: no classifier keys configured, using heuristic classification")
	}

	c := cfg.Classifier
	orch := classify.New(classifier, pool, classifications, tax, classify.Config{
		BatchSize:    c.BatchSize,
		BatchDelay:   c.BatchDelay,
		ItemTimeout:  c.ItemTimeout,
		MaxRetries:   c.Retries(),
		MinRelevance: c.MinRelevance,
		HeuristicTTL: c.HeuristicTTL,
	})

	s := cfg.Scheduler
	sched := scheduler.New(store, scheduler.Config{
		MinFetchInterval:    s.MinFetchInterval,
		MinAnalysisInterval: s.MinAnalysisInterval,
		StaleThreshold:      s.StaleThreshold,
		MaxProcessingTime:   s.MaxProcessingTime,
	})

	agg := aggregate.New(fetchers, tax, aggregate.Config{
		SourceTimeout: cfg.Sources.Timeout,
		MaxItems:      cfg.Sources.MaxItems,
	})
	slog.Info("app: sources configured", "sources", agg.Sources())

	return pipeline.New(pipeline.Deps{
		Aggregator:      agg,
		Classifier:      orch,
		Scheduler:       sched,
		Pool:            pool,
		Sources:         sources,
		Classifications: classifications,
		Output:          output,
	}, pipeline.Config{
		Lookback:     cfg.Sources.Lookback,
		InitTimeout:  s.InitTimeout,
		ClassifyTopN: c.TopN,
	}), nil
}

// cleaners returns everything the sweeper should run: the caches, plus a
// table purge when the backend keeps expired rows around.
func (a *app) cleaners() []worker.Cleaner {
	cs := []worker.Cleaner{a.pipeline}
	if sq, ok := a.store.(*storage.SQLiteStore); ok {
		cs = append(cs, worker.CleanerFunc(func(ctx context.Context) (int, error) {
			n, err := sq.Purge(ctx)
			return int(n), err
		}))
	}
	return cs
}

func loadTaxonomy(path string) (*keywords.Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return keywords.Default(), nil
	}
	tax, err := keywords.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy %s: %w", path, err)
	}
	return tax, nil
}

func buildFetchers(cfg config.SourcesConfig) ([]aggregate.Fetcher, error) {
	var out []aggregate.Fetcher
	for _, f := range cfg.RSS {
		tier, err := parseTier(f.Tier, f.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, feed.NewSource(f.Name, f.URL, tier, f.MaxItems))
	}

	if hn := cfg.HackerNews; hn.Enabled {
		tier, err := parseTier(hn.Tier, "hackernews")
		if err != nil {
			return nil, err
		}
		out = append(out, hackernews.NewSource(hackernews.NewClient(hn.BaseAPI), hn.Lists, hn.Limit, tier))
	}

	if gh := cfg.GitHub; gh.Enabled && len(gh.Repos) > 0 {
		tier, err := parseTier(gh.Tier, "github")
		if err != nil {
			return nil, err
		}
		out = append(out, github.NewSource(github.NewClient(gh.BaseURL, gh.Token), gh.Repos, gh.PerRepo, tier))
	}

	for _, t := range cfg.Scrape {
		tier, err := parseTier(t.Tier, t.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, scrape.NewSource(scrape.Target{
			Name:        t.Name,
			URL:         t.URL,
			Tier:        tier,
			Item:        t.Item,
			Title:       t.Title,
			Link:        t.Link,
			Date:        t.Date,
			DateAttr:    t.DateAttr,
			DateLayouts: t.DateLayouts,
			Excerpt:     t.Excerpt,
			MaxItems:    t.MaxItems,
		}, nil))
	}
	return out, nil
}

func parseTier(s, source string) (model.Tier, error) {
	tier, ok := model.ParseTier(s)
	if !ok {
		return tier, fmt.Errorf("source %s: unknown tier %q", source, s)
	}
	return tier, nil
}
