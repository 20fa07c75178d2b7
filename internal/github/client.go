package github

import (
	"context"
	"encoding/json"
	"errors"
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

type Client struct {
	baseURL string
	client  *http.Client
	token   string
}

func NewClient(baseURL, token string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		token:   token,
	}
}

// Release represents a subset of GitHub release fields used by this service.
type Release struct {
	ID          int64     `json:"id"`
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	HTMLURL     string    `json:"html_url"`
	Body        string    `json:"body"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Releases lists the latest releases of owner/name.
// API: GET /repos/{owner}/{repo}/releases?per_page={n}
func (c *Client) Releases(ctx context.Context, repo string, perPage int) ([]Release, error) {
	owner, name, ok := strings.Cut(strings.Trim(repo, "/ "), "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("github: invalid repo %q, want owner/name", repo)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases", c.baseURL, url.PathEscape(owner), url.PathEscape(name))
	q := url.Values{"per_page": {strconv.Itoa(perPage)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("github: %s status %d", repo, resp.StatusCode)
	}
	var out []Release
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Source polls releases for a fixed set of repositories.
type Source struct {
	client  *Client
	repos   []string
	perRepo int
	tier    model.Tier
	now     func() time.Time
}

func NewSource(client *Client, repos []string, perRepo int, tier model.Tier) *Source {
	if perRepo <= 0 {
		perRepo = 5
	}
	return &Source{client: client, repos: repos, perRepo: perRepo, tier: tier, now: time.Now}
}

func (s *Source) Name() string { return "github" }

// Fetch returns non-draft releases within lookback. A failing repo is
// logged and skipped; the call fails only when every repo fails.
func (s *Source) Fetch(ctx context.Context, lookback time.Duration) ([]model.Item, error) {
	if len(s.repos) == 0 {
		return nil, nil
	}
	cutoff := s.now().Add(-lookback)
	var (
		items []model.Item
		errs  []error
	)
	for _, repo := range s.repos {
		rels, err := s.client.Releases(ctx, repo, s.perRepo)
		if err != nil {
			slog.Warn("github: releases failed", "repo", repo, "error", err)
			errs = append(errs, err)
			continue
		}
		for _, r := range rels {
			if r.Draft || r.PublishedAt.Before(cutoff) {
				continue
			}
			items = append(items, s.toItem(repo, r))
		}
	}
	if len(errs) == len(s.repos) {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

func (s *Source) toItem(repo string, r Release) model.Item {
	title := strings.TrimSpace(r.Name)
	if title == "" {
		title = r.TagName
	}
	link := r.HTMLURL
	if link == "" {
		link = fmt.Sprintf("https://github.com/%s/releases/tag/%s", repo, url.PathEscape(r.TagName))
	}
	return model.Item{
		ID:          model.NewID(s.Name(), strconv.FormatInt(r.ID, 10)),
		Title:       title,
		Link:        link,
		PublishedAt: r.PublishedAt.UTC(),
		Source:      s.Name(),
		Tier:        s.tier,
		Excerpt:     textclean.Excerpt(r.Body),
	}
}
