package aggregate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"news-radar/internal/keywords"
	"news-radar/internal/model"
)

type fakeFetcher struct {
	name  string
	items []model.Item
	err   error
	delay time.Duration
	panic bool
	// ignoreCtx makes the fetcher sleep through cancellation.
	ignoreCtx bool
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context, _ time.Duration) ([]model.Item, error) {
	if f.panic {
		panic("boom")
	}
	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return f.items, f.err
}

func newTestAggregator(fetchers []Fetcher, cfg Config, now time.Time) *Aggregator {
	a := New(fetchers, keywords.Default(), cfg)
	a.now = func() time.Time { return now }
	return a
}

func item(source, key, title, link string, tier model.Tier, at time.Time) model.Item {
	return model.Item{
		ID:          model.NewID(source, key),
		Title:       title,
		Link:        link,
		Source:      source,
		Tier:        tier,
		PublishedAt: at,
	}
}

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestNormalizeLink(t *testing.T) {
	cases := map[string]string{
		"https://www.Example.com/Post/":  "example.com/post",
		"http://example.com/post":        "example.com/post",
		"example.com/post///":            "example.com/post",
		"HTTPS://news.example.org/a?b=1": "news.example.org/a?b=1",
	}
	for in, want := range cases {
		if got := NormalizeLink(in); got != want {
			t.Errorf("NormalizeLink(%q) = %q, want %q", in, got, want)
		}
	}
	if NormalizeLink("https://www.example.com/a/") != NormalizeLink("http://example.com/a") {
		t.Fatalf("scheme, www and trailing slash must not matter")
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := NormalizeTitle("Hello, World! GPT-5 is here", 60); got != "helloworldgpt5ishere" {
		t.Fatalf("NormalizeTitle = %q", got)
	}
	if got := NormalizeTitle("abcdefghij klmnop", 5); got != "abcde" {
		t.Fatalf("prefix = %q", got)
	}
}

func TestRankNoiseFilter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(-time.Hour)
	a := newTestAggregator(nil, Config{}, now)

	in := []model.Item{
		item("gh", "1", "a1b2c3d4e5f6a7b8", "https://x.test/1", model.TierOfficial, at),
		item("gh", "2", "widget v2.0.0", "https://x.test/2", model.TierOfficial, at),
		item("gh", "3", "bump lodash to 4.17.21", "https://x.test/3", model.TierOfficial, at),
		item("gh", "4", "chore(deps): update everything", "https://x.test/4", model.TierOfficial, at),
		item("gh", "5", "Merge pull request #12 from fork", "https://x.test/5", model.TierOfficial, at),
		item("gh", "6", "Short", "https://x.test/6", model.TierOfficial, at),
		item("gh", "7", "A title without any link", "", model.TierOfficial, at),
		item("gh", "8", "Breaking: bump api to v3.0.0", "https://x.test/8", model.TierOfficial, at),
		item("gh", "9", "Introducing Widget 2.0 for teams", "https://x.test/9", model.TierOfficial, at),
	}
	got := a.Rank(in, 24*time.Hour, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 survivors, got %d: %v", len(got), got)
	}
	keep := map[string]bool{model.NewID("gh", "8"): true, model.NewID("gh", "9"): true}
	for _, it := range got {
		if !keep[it.ID] {
			t.Errorf("unexpected survivor %q", it.Title)
		}
	}
}

func TestScore(t *testing.T) {
	a := newTestAggregator(nil, Config{}, time.Now())
	official := model.Item{Title: "Introducing OpenAI GPT-5 for everyone", Tier: model.TierOfficial}
	// tier 10*4 + flagship 15*2 + announcement 12
	if got := a.Score(official); got != 82 {
		t.Fatalf("official score = %v, want 82", got)
	}
	crowded := model.Item{Title: "OpenAI, Anthropic, Mistral and NVIDIA walk into a bar", Tier: model.TierAggregator}
	// tier 10*1 + flagship capped at 2 matches
	if got := a.Score(crowded); got != 40 {
		t.Fatalf("capped score = %v, want 40", got)
	}
	maint := model.Item{Title: "Minor fixes and typo cleanup in docs", Tier: model.TierCommunity}
	if got := a.Score(maint); got != 20-15 {
		t.Fatalf("maintenance score = %v, want 5", got)
	}
}

func TestSortByScoreTierTiebreak(t *testing.T) {
	at := time.Now()
	items := []model.Item{
		{ID: "a", Score: 30, Tier: model.TierAggregator, PublishedAt: at},
		{ID: "b", Score: 30, Tier: model.TierOfficial, PublishedAt: at},
		{ID: "c", Score: 30, Tier: model.TierCommunity, PublishedAt: at},
		{ID: "d", Score: 50, Tier: model.TierAggregator, PublishedAt: at},
	}
	SortByScore(items)
	want := []string{"d", "b", "c", "a"}
	for i, id := range ids(items) {
		if id != want[i] {
			t.Fatalf("order = %v, want %v", ids(items), want)
		}
	}
}

func TestRankDedupPrefersHigherScore(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(-time.Hour)
	a := newTestAggregator(nil, Config{}, now)

	in := []model.Item{
		item("agg", "1", "OpenAI ships a new reasoning model", "http://example.com/post/", model.TierAggregator, at),
		item("blog", "1", "OpenAI ships a new reasoning model!", "https://www.example.com/post", model.TierOfficial, at),
		item("hn", "1", "OpenAI ships a new reasoning model", "https://news.example.net/item?id=1", model.TierCommunity, at),
	}
	got := a.Rank(in, 24*time.Hour, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 item after dedup, got %d", len(got))
	}
	if got[0].Source != "blog" {
		t.Fatalf("expected official copy to win, got %q", got[0].Source)
	}
}

func TestRankIdempotentUnderPermutation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(nil, Config{}, now)

	var in []model.Item
	tiers := []model.Tier{model.TierAggregator, model.TierCommunity, model.TierTrusted, model.TierOfficial}
	for i := 0; i < 24; i++ {
		title := fmt.Sprintf("Story number %d about Claude and PyTorch", i%10)
		link := fmt.Sprintf("https://site%d.example.com/story/%d", i%3, i%12)
		in = append(in, item(fmt.Sprintf("src%d", i%4), fmt.Sprint(i), title, link, tiers[i%4], now.Add(-time.Duration(i)*time.Minute)))
	}

	base := ids(a.Rank(append([]model.Item(nil), in...), 24*time.Hour, now))
	if len(base) == 0 {
		t.Fatalf("expected survivors")
	}

	perms := [][]model.Item{reversed(in), rotated(in, 7), rotated(in, 13)}
	for n, p := range perms {
		got := ids(a.Rank(p, 24*time.Hour, now))
		if fmt.Sprint(got) != fmt.Sprint(base) {
			t.Fatalf("permutation %d: got %v, want %v", n, got, base)
		}
	}

	again := ids(a.Rank(a.Rank(append([]model.Item(nil), in...), 24*time.Hour, now), 24*time.Hour, now))
	if fmt.Sprint(again) != fmt.Sprint(base) {
		t.Fatalf("ranking twice changed the result")
	}
}

func reversed(in []model.Item) []model.Item {
	out := make([]model.Item, len(in))
	for i, it := range in {
		out[len(in)-1-i] = it
	}
	return out
}

func rotated(in []model.Item, k int) []model.Item {
	out := make([]model.Item, 0, len(in))
	out = append(out, in[k:]...)
	return append(out, in[:k]...)
}

func TestRankDateFilterAndTruncate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(nil, Config{MaxItems: 2}, now)

	in := []model.Item{
		item("s", "zero", "Undated post about agents", "https://a.test/zero", model.TierTrusted, time.Time{}),
		item("s", "old", "Old post about agents here", "https://a.test/old", model.TierTrusted, now.Add(-48*time.Hour)),
		item("s", "future", "Post from the far future", "https://a.test/future", model.TierTrusted, now.Add(3*time.Hour)),
		item("s", "skew", "Post with slight clock skew", "https://a.test/skew", model.TierTrusted, now.Add(30*time.Minute)),
		item("s", "fresh1", "Fresh post number one today", "https://a.test/f1", model.TierTrusted, now.Add(-time.Hour)),
		item("s", "fresh2", "Fresh post number two today", "https://a.test/f2", model.TierTrusted, now.Add(-2*time.Hour)),
	}
	got := a.Rank(in, 24*time.Hour, now)
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	if got[0].ID != model.NewID("s", "skew") || got[1].ID != model.NewID("s", "fresh1") {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestAggregateIsolatesFailures(t *testing.T) {
	now := time.Now()
	good := &fakeFetcher{name: "good", items: []model.Item{
		item("good", "1", "Anthropic publishes new research", "https://good.test/1", model.TierOfficial, now.Add(-time.Hour)),
	}}
	fetchers := []Fetcher{
		good,
		&fakeFetcher{name: "broken", err: errors.New("503")},
		&fakeFetcher{name: "panicky", panic: true},
		&fakeFetcher{name: "slow", delay: 10 * time.Second},
		&fakeFetcher{name: "stubborn", delay: 2 * time.Second, ignoreCtx: true},
	}
	a := newTestAggregator(fetchers, Config{SourceTimeout: 100 * time.Millisecond}, now)

	start := time.Now()
	items, reports := a.Aggregate(context.Background(), 24*time.Hour)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("slow sources blocked the pass for %v", elapsed)
	}
	if len(items) != 1 || items[0].Source != "good" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if len(reports) != len(fetchers) {
		t.Fatalf("expected %d reports, got %d", len(fetchers), len(reports))
	}
	for _, r := range reports {
		if r.Source == "good" {
			if !r.OK || r.Items != 1 {
				t.Errorf("good report = %+v", r)
			}
			continue
		}
		if r.OK || r.Error == "" {
			t.Errorf("%s should have failed: %+v", r.Source, r)
		}
	}
}

func TestAggregateAllFail(t *testing.T) {
	a := newTestAggregator([]Fetcher{
		&fakeFetcher{name: "a", err: errors.New("down")},
		&fakeFetcher{name: "b", err: errors.New("down")},
	}, Config{}, time.Now())
	items, reports := a.Aggregate(context.Background(), time.Hour)
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
	if len(reports) != 2 || reports[0].OK || reports[1].OK {
		t.Fatalf("unexpected reports: %+v", reports)
	}
}
