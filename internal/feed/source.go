package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"news-radar/internal/model"
	"news-radar/internal/textclean"

	"github.com/mmcdole/gofeed"
)

// Source reads one RSS or Atom feed.
type Source struct {
	name     string
	feedURL  string
	tier     model.Tier
	maxItems int
	parser   *gofeed.Parser
	now      func() time.Time
}

func NewSource(name, feedURL string, tier model.Tier, maxItems int) *Source {
	if maxItems <= 0 {
		maxItems = 30
	}
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: 15 * time.Second}
	p.UserAgent = "news-radar/1.0"
	return &Source{
		name:     name,
		feedURL:  feedURL,
		tier:     tier,
		maxItems: maxItems,
		parser:   p,
		now:      time.Now,
	}
}

func (s *Source) Name() string { return s.name }

// Fetch parses the feed and returns entries published within lookback.
// Entries without a parseable date are kept for the aggregator to judge.
func (s *Source) Fetch(ctx context.Context, lookback time.Duration) ([]model.Item, error) {
	f, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", s.name, err)
	}
	cutoff := s.now().Add(-lookback)
	items := make([]model.Item, 0, len(f.Items))
	for _, fi := range f.Items {
		if len(items) >= s.maxItems {
			break
		}
		it := s.convert(fi)
		if !it.PublishedAt.IsZero() && it.PublishedAt.Before(cutoff) {
			continue
		}
		items = append(items, it)
	}
	slog.Debug("feed: fetched", "source", s.name, "entries", len(f.Items), "kept", len(items))
	return items, nil
}

func (s *Source) convert(fi *gofeed.Item) model.Item {
	var published time.Time
	if fi.PublishedParsed != nil {
		published = *fi.PublishedParsed
	} else if fi.UpdatedParsed != nil {
		published = *fi.UpdatedParsed
	}
	key := strings.TrimSpace(fi.GUID)
	if key == "" {
		key = strings.TrimSpace(fi.Link)
	}
	if key == "" {
		key = fi.Title
	}
	body := fi.Description
	if strings.TrimSpace(body) == "" {
		body = fi.Content
	}
	return model.Item{
		ID:          model.NewID(s.name, key),
		Title:       textclean.StripHTML(fi.Title),
		Link:        strings.TrimSpace(fi.Link),
		PublishedAt: published.UTC(),
		Source:      s.name,
		Tier:        s.tier,
		Excerpt:     textclean.Excerpt(body),
	}
}
