package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"news-radar/internal/model"
)

func TestSourceFetch(t *testing.T) {
	now := time.Now().UTC()
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/widget/releases":
			gotAuth = r.Header.Get("Authorization")
			gotAccept = r.Header.Get("Accept")
			if r.URL.Query().Get("per_page") != "3" {
				t.Errorf("per_page = %q", r.URL.Query().Get("per_page"))
			}
			_ = json.NewEncoder(w).Encode([]Release{
				{ID: 11, TagName: "v2.0.0", Name: "Widget 2.0: streaming support", HTMLURL: "https://github.com/acme/widget/releases/tag/v2.0.0", Body: "## Highlights\n* streaming", PublishedAt: now.Add(-time.Hour)},
				{ID: 12, TagName: "v2.1.0-draft", Draft: true, PublishedAt: now},
				{ID: 9, TagName: "v1.0.0", PublishedAt: now.Add(-90 * 24 * time.Hour)},
			})
		case "/repos/acme/missing/releases":
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewSource(NewClient(srv.URL, "ghp_token"), []string{"acme/widget", "acme/missing"}, 3, model.TierOfficial)
	items, err := s.Fetch(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.Title != "Widget 2.0: streaming support" || it.Tier != model.TierOfficial {
		t.Errorf("unexpected item: %+v", it)
	}
	if it.ID != model.NewID("github", "11") {
		t.Errorf("id = %q", it.ID)
	}
	if gotAuth != "Bearer ghp_token" || gotAccept != "application/vnd.github+json" {
		t.Errorf("headers: auth=%q accept=%q", gotAuth, gotAccept)
	}
}

func TestSourceFetchAllReposFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	s := NewSource(NewClient(srv.URL, ""), []string{"a/b", "c/d"}, 3, model.TierOfficial)
	if _, err := s.Fetch(context.Background(), time.Hour); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReleasesRejectsBadRepo(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	if _, err := c.Releases(context.Background(), "no-slash", 1); err == nil {
		t.Fatalf("expected error for malformed repo")
	}
}
