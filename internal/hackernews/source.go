package hackernews

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"news-radar/internal/model"
)

// Source polls one or more story lists.
type Source struct {
	Client *Client
	Lists  []string
	Limit  int // per list
	Tier   model.Tier
	now    func() time.Time
}

func NewSource(client *Client, lists []string, limit int, tier model.Tier) *Source {
	if len(lists) == 0 {
		lists = []string{"top"}
	}
	return &Source{Client: client, Lists: lists, Limit: limit, Tier: tier, now: time.Now}
}

func (s *Source) Name() string { return "hackernews" }

// Fetch merges all lists, dropping duplicates and stories older than lookback.
// It fails only when every list fails.
func (s *Source) Fetch(ctx context.Context, lookback time.Duration) ([]model.Item, error) {
	cutoff := s.now().Add(-lookback)
	seen := map[int]struct{}{}
	var (
		items []model.Item
		errs  []error
	)
	for _, list := range s.Lists {
		stories, err := s.Client.Stories(ctx, list, s.Limit)
		if err != nil {
			slog.Warn("hackernews: list failed", "list", list, "error", err)
			errs = append(errs, err)
			continue
		}
		for _, st := range stories {
			if _, ok := seen[st.ID]; ok {
				continue
			}
			seen[st.ID] = struct{}{}
			it := ToItem(s.Name(), s.Tier, st)
			if it.PublishedAt.Before(cutoff) {
				continue
			}
			items = append(items, it)
		}
	}
	if len(errs) == len(s.Lists) {
		return nil, errors.Join(errs...)
	}
	return items, nil
}
