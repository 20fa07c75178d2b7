package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"news-radar/internal/config"
)

func TestBuildFetchers(t *testing.T) {
	var cfg config.Config
	cfg.Sources.RSS = []config.RSSFeed{{Name: "lab-blog", URL: "https://lab.test/feed.xml", Tier: "official"}}
	cfg.Sources.HackerNews.Enabled = true
	cfg.Sources.GitHub.Enabled = true // no repos: skipped
	cfg.Sources.Scrape = []config.ScrapeTarget{{Name: "changelog", URL: "https://tool.test/changelog", Item: "article"}}
	cfg.FillDefaults()

	fs, err := buildFetchers(cfg.Sources)
	if err != nil {
		t.Fatalf("buildFetchers: %v", err)
	}
	var names []string
	for _, f := range fs {
		names = append(names, f.Name())
	}
	want := []string{"lab-blog", "hackernews", "changelog"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestBuildFetchersRejectsUnknownTier(t *testing.T) {
	var cfg config.Config
	cfg.Sources.RSS = []config.RSSFeed{{Name: "x", URL: "https://x.test", Tier: "legendary"}}
	if _, err := buildFetchers(cfg.Sources); err == nil {
		t.Fatalf("expected tier error")
	}
}

func TestNewAppMemory(t *testing.T) {
	var cfg config.Config
	cfg.Storage.Type = "memory"
	cfg.FillDefaults()
	cfg.Classifier.APIKeys = nil

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if got := len(a.cleaners()); got != 1 {
		t.Fatalf("memory backend cleaners = %d, want 1", got)
	}
	rep, err := a.pipeline.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(rep.Caches) != 3 {
		t.Fatalf("caches = %d, want 3", len(rep.Caches))
	}
	if rep.Credentials.Total != 0 {
		t.Fatalf("credentials = %d, want 0", rep.Credentials.Total)
	}
}

func TestNewAppSQLiteAddsPurge(t *testing.T) {
	var cfg config.Config
	cfg.Storage.Type = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "radar.db")
	cfg.FillDefaults()

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()
	if got := len(a.cleaners()); got != 2 {
		t.Fatalf("sqlite backend cleaners = %d, want 2", got)
	}
	for _, c := range a.cleaners() {
		if _, err := c.Cleanup(context.Background()); err != nil {
			t.Fatalf("Cleanup: %v", err)
		}
	}
}
