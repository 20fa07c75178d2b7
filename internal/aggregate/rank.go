package aggregate

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"news-radar/internal/model"
)

// Rank applies the post-fetch stages to raw items: noise filter, scoring,
// ordering, dedup, date filter and truncation. The result does not depend
// on the order of items.
func (a *Aggregator) Rank(items []model.Item, lookback time.Duration, now time.Time) []model.Item {
	kept := a.filterNoise(items)
	for i := range kept {
		kept[i].Score = a.Score(kept[i])
	}
	SortByScore(kept)
	kept = a.dedupe(kept)
	kept = a.filterByDate(kept, lookback, now)
	if len(kept) > a.cfg.MaxItems {
		kept = kept[:a.cfg.MaxItems]
	}
	return kept
}

func (a *Aggregator) filterNoise(items []model.Item) []model.Item {
	out := make([]model.Item, 0, len(items))
	dropped := map[string]int{}
	for _, it := range items {
		it.Title = strings.TrimSpace(it.Title)
		switch {
		case strings.TrimSpace(it.Link) == "":
			dropped["no_link"]++
		case utf8.RuneCountInString(it.Title) < a.cfg.MinTitleLength:
			dropped["short_title"]++
		default:
			if reason := a.tax.NoiseReason(it.Title); reason != "" {
				dropped[reason]++
				continue
			}
			out = append(out, it)
		}
	}
	if len(dropped) > 0 {
		slog.Debug("aggregate: noise dropped", "reasons", dropped)
	}
	return out
}

// Score computes the aggregation score of one item. Each keyword set
// contributes at most MaxMatches hits.
func (a *Aggregator) Score(it model.Item) float64 {
	w := a.tax.Weights
	text := it.Title + " " + it.Excerpt

	s := w.Tier * float64(int(it.Tier)+1)
	s += w.Flagship * float64(capped(len(a.tax.FlagshipIn(text)), w.MaxMatches))
	s += w.Tool * float64(capped(len(a.tax.ToolsIn(text)), w.MaxMatches))
	s += w.Framework * float64(capped(len(a.tax.FrameworksIn(text)), w.MaxMatches))
	if a.tax.IsAnnouncement(it.Title) {
		s += w.Announcement
	}
	if a.tax.IsMaintenance(it.Title) {
		s -= w.Maintenance
	}
	return s
}

func capped(n, max int) int {
	if max > 0 && n > max {
		return max
	}
	return n
}

// SortByScore orders items by score, tier, recency and finally ID so that
// any permutation of the same input sorts identically.
func SortByScore(items []model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Tier != b.Tier {
			return a.Tier > b.Tier
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Link < b.Link
	})
}

// dedupe keeps the first occurrence of every link, title and ID. Input must
// already be ordered so the best-scored duplicate comes first.
func (a *Aggregator) dedupe(items []model.Item) []model.Item {
	links := map[string]struct{}{}
	titles := map[string]struct{}{}
	ids := map[string]struct{}{}
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		link := NormalizeLink(it.Link)
		title := NormalizeTitle(it.Title, a.cfg.TitlePrefixLength)
		useTitle := utf8.RuneCountInString(title) > 10

		if _, ok := ids[it.ID]; ok {
			continue
		}
		if _, ok := links[link]; ok && link != "" {
			continue
		}
		if _, ok := titles[title]; ok && useTitle {
			continue
		}
		ids[it.ID] = struct{}{}
		if link != "" {
			links[link] = struct{}{}
		}
		if useTitle {
			titles[title] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}

func (a *Aggregator) filterByDate(items []model.Item, lookback time.Duration, now time.Time) []model.Item {
	oldest := now.Add(-lookback)
	newest := now.Add(a.cfg.MaxClockSkew)
	out := items[:0]
	for _, it := range items {
		if it.PublishedAt.IsZero() || it.PublishedAt.Before(oldest) || it.PublishedAt.After(newest) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// NormalizeLink strips the scheme, a leading "www.", any trailing slash
// and lowercases the rest.
// "https://www.example.com/a/" and "http://example.com/a" are equal.
func NormalizeLink(link string) string {
	s := strings.ToLower(strings.TrimSpace(link))
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		s = strings.TrimPrefix(s, u.Scheme+"://")
	} else if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimRight(s, "/")
}

// NormalizeTitle keeps letters and digits only, lowercased, and truncates
// to prefix runes.
func NormalizeTitle(title string, prefix int) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.ToLower(title) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if prefix > 0 && n >= prefix {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
