package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"news-radar/internal/model"
	"news-radar/internal/textclean"
)

// Target describes a listing page and how to read entries from it. Title,
// Link, Date and Excerpt selectors are relative to each Item match; an empty
// Title or Link selector means the item element itself.
type Target struct {
	Name        string
	URL         string
	Tier        model.Tier
	Item        string
	Title       string
	Link        string
	Date        string
	DateAttr    string // read the date from this attribute instead of text
	DateLayouts []string
	Excerpt     string
	MaxItems    int
}

var defaultLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// Source scrapes one listing page with CSS selectors.
type Source struct {
	target Target
	client *http.Client
	now    func() time.Time
}

func NewSource(t Target, client *http.Client) *Source {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if t.MaxItems <= 0 {
		t.MaxItems = 30
	}
	if len(t.DateLayouts) == 0 {
		t.DateLayouts = defaultLayouts
	}
	return &Source{target: t, client: client, now: time.Now}
}

func (s *Source) Name() string { return s.target.Name }

func (s *Source) Fetch(ctx context.Context, lookback time.Duration) ([]model.Item, error) {
	base, err := url.Parse(s.target.URL)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: bad url: %w", s.target.Name, err)
	}
	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", s.target.Name, err)
	}
	cutoff := s.now().Add(-lookback)
	var items []model.Item
	doc.Find(s.target.Item).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		it, ok := s.extract(sel, base)
		if !ok {
			return true
		}
		if !it.PublishedAt.IsZero() && it.PublishedAt.Before(cutoff) {
			return true
		}
		items = append(items, it)
		return len(items) < s.target.MaxItems
	})
	slog.Debug("scrape: fetched", "source", s.target.Name, "items", len(items))
	return items, nil
}

func (s *Source) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.target.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "news-radar/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("returned %s", resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (s *Source) extract(sel *goquery.Selection, base *url.URL) (model.Item, bool) {
	t := s.target
	titleSel := sel
	if t.Title != "" {
		titleSel = sel.Find(t.Title).First()
	}
	title := textclean.StripHTML(titleSel.Text())

	linkSel := sel
	if t.Link != "" && !sel.Is(t.Link) {
		linkSel = sel.Find(t.Link).First()
	}
	href, _ := linkSel.Attr("href")
	link := resolve(base, href)
	if title == "" || link == "" {
		return model.Item{}, false
	}

	var published time.Time
	if t.Date != "" {
		ds := sel.Find(t.Date).First()
		raw := strings.TrimSpace(ds.Text())
		if t.DateAttr != "" {
			raw, _ = ds.Attr(t.DateAttr)
		}
		published = parseDate(raw, t.DateLayouts)
	}

	var excerpt string
	if t.Excerpt != "" {
		excerpt = textclean.Excerpt(sel.Find(t.Excerpt).First().Text())
	}
	return model.Item{
		ID:          model.NewID(t.Name, link),
		Title:       title,
		Link:        link,
		PublishedAt: published,
		Source:      t.Name,
		Tier:        t.Tier,
		Excerpt:     excerpt,
	}, true
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func parseDate(raw string, layouts []string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
