package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"news-radar/internal/model"
	"news-radar/internal/textclean"
)

// Client is a minimal Hacker News API client.
// Docs: https://github.com/HackerNews/API
type Client struct {
	baseAPI string
	client  *http.Client
}

// NewClient creates a new Hacker News client. baseAPI should be something like
// "https://hacker-news.firebaseio.com/v0". If empty, it defaults to the v0 endpoint.
func NewClient(baseAPI string) *Client {
	if strings.TrimSpace(baseAPI) == "" {
		baseAPI = "https://hacker-news.firebaseio.com/v0"
	}
	return &Client{
		baseAPI: strings.TrimRight(baseAPI, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Story mirrors the subset of HN item fields we care about.
type Story struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Time        int64  `json:"time"`
	Descendants int    `json:"descendants"`
	Score       int    `json:"score"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
}

// ListName maps short names (top, new, best, ask, show) to API list endpoints.
func ListName(list string) string {
	switch strings.ToLower(strings.TrimSpace(list)) {
	case "new", "newstories":
		return "newstories"
	case "best", "beststories":
		return "beststories"
	case "ask", "askstories":
		return "askstories"
	case "show", "showstories":
		return "showstories"
	default:
		return "topstories"
	}
}

// Stories fetches up to limit stories from a list such as "top" or "show".
func (c *Client) Stories(ctx context.Context, list string, limit int) ([]Story, error) {
	name := ListName(list)
	ids, err := c.fetchIDs(ctx, name)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	slog.Debug("hackernews: fetching items", "list", name, "count", len(ids))
	return c.itemsByIDs(ctx, ids), nil
}

// Item fetches a single HN item by ID.
func (c *Client) Item(ctx context.Context, id int) (Story, error) {
	var it Story
	endpoint := fmt.Sprintf("%s/item/%d.json", c.baseAPI, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return it, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return it, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return it, fmt.Errorf("hackernews: item %d status %d", id, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&it); err != nil {
		return it, err
	}
	return it, nil
}

// fetchIDs loads a list endpoint such as topstories/newstories/etc.
func (c *Client) fetchIDs(ctx context.Context, list string) ([]int, error) {
	path := fmt.Sprintf("%s/%s.json", c.baseAPI, url.PathEscape(list))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hackernews: %s status %d", list, resp.StatusCode)
	}
	var ids []int
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// itemsByIDs resolves IDs with bounded concurrency, preserving list order.
// Items that fail to load are skipped.
func (c *Client) itemsByIDs(ctx context.Context, ids []int) []Story {
	if len(ids) == 0 {
		return nil
	}
	const maxWorkers = 8
	type result struct {
		idx   int
		story Story
		err   error
	}
	out := make([]*Story, len(ids))
	sem := make(chan struct{}, maxWorkers)
	done := make(chan result, len(ids))
	for i, id := range ids {
		i, id := i, id
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			ictx, cancel := context.WithTimeout(ctx, 8*time.Second)
			defer cancel()
			st, err := c.Item(ictx, id)
			done <- result{idx: i, story: st, err: err}
		}()
	}
	failed := 0
	for range ids {
		r := <-done
		if r.err != nil || r.story.ID == 0 || r.story.Dead || r.story.Deleted {
			if r.err != nil {
				failed++
			}
			continue
		}
		st := r.story
		out[r.idx] = &st
	}
	if failed > 0 {
		slog.Debug("hackernews: some items failed", "failed", failed, "total", len(ids))
	}
	stories := make([]Story, 0, len(ids))
	for _, s := range out {
		if s != nil {
			stories = append(stories, *s)
		}
	}
	return stories
}

// ToItem maps a story to the common item shape. Text posts link to the
// discussion page.
func ToItem(source string, tier model.Tier, s Story) model.Item {
	idStr := strconv.Itoa(s.ID)
	link := strings.TrimSpace(s.URL)
	if link == "" {
		link = "https://news.ycombinator.com/item?id=" + idStr
	}
	return model.Item{
		ID:          model.NewID(source, idStr),
		Title:       strings.TrimSpace(s.Title),
		Link:        link,
		PublishedAt: time.Unix(s.Time, 0).UTC(),
		Source:      source,
		Tier:        tier,
		Excerpt:     textclean.Excerpt(s.Text),
	}
}
