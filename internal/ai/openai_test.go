package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func chatServer(t *testing.T, status int, content string, gotAuth *atomic.Value) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if gotAuth != nil {
			gotAuth.Store(r.Header.Get("Authorization"))
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestClassifySuccess(t *testing.T) {
	var auth atomic.Value
	srv := chatServer(t, http.StatusOK, `{"category":"research","priority":"high","relevance":8,"tags":["llm"],"sentiment":"positive","actionable":true}`, &auth)
	defer srv.Close()

	c := NewOpenAI(Config{Model: "test-model", BaseURL: srv.URL + "/v1"})
	resp, err := c.Classify(context.Background(), "sk-test-key", Request{Title: "A paper", Source: "arxiv"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if resp.Category != "research" || resp.Priority != "high" || resp.Relevance != 8 || !resp.Actionable {
		t.Errorf("unexpected response: %+v", resp)
	}
	if got, _ := auth.Load().(string); got != "Bearer sk-test-key" {
		t.Errorf("authorization header = %q", got)
	}
}

func TestClassifyRateLimited(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "", nil)
	defer srv.Close()

	c := NewOpenAI(Config{Model: "test-model", BaseURL: srv.URL + "/v1"})
	_, err := c.Classify(context.Background(), "sk-test-key", Request{Title: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsRateLimited(err) {
		t.Errorf("expected rate limit, status=%d err=%v", StatusCode(err), err)
	}
}

func TestClassifyMalformed(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "not json at all", nil)
	defer srv.Close()

	c := NewOpenAI(Config{Model: "test-model", BaseURL: srv.URL + "/v1"})
	_, err := c.Classify(context.Background(), "sk-test-key", Request{Title: "x"})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if StatusCode(err) != 0 {
		t.Errorf("malformed response has no status code")
	}
}

func TestParseResponseFenced(t *testing.T) {
	resp, err := ParseResponse("```json\n{\"category\":\"policy\",\"relevance\":4}\n```")
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.Category != "policy" || resp.Relevance != 4 {
		t.Errorf("unexpected: %+v", resp)
	}
}

func TestStatusCodeDeadline(t *testing.T) {
	if got := StatusCode(context.DeadlineExceeded); got != http.StatusGatewayTimeout {
		t.Errorf("deadline status = %d", got)
	}
	if got := StatusCode(errors.New("boom")); got != 0 {
		t.Errorf("plain error status = %d", got)
	}
}

func TestParseResponseLenientRelevance(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{`{"category":"research","priority":"high","relevance":7.5,"summary":"s"}`, 8},
		{`{"category":"research","priority":"high","relevance":"8","summary":"s"}`, 8},
		{`{"category":"research","priority":"high","relevance":" 6 ","summary":"s"}`, 6},
		{`{"category":"research","priority":"high","relevance":"lots","summary":"s"}`, 0},
		{`{"category":"research","priority":"high","relevance":[9],"summary":"s"}`, 0},
	}
	for _, tc := range cases {
		in, want := tc.in, tc.want
		resp, err := ParseResponse(in)
		if err != nil {
			t.Fatalf("ParseResponse(%s): %v", in, err)
		}
		if resp.Relevance != want {
			t.Errorf("%s: relevance = %d, want %d", in, resp.Relevance, want)
		}
		if resp.Category != "research" || resp.Priority != "high" || resp.Summary != "s" {
			t.Errorf("%s: valid fields lost: %+v", in, resp)
		}
	}
}

func TestParseResponseBadFieldsKeepTheRest(t *testing.T) {
	resp, err := ParseResponse(`{"category":"tutorial","priority":3,"tags":["llm",4,"agents"],"entities":"OpenAI,Anthropic","actionable":"true","impact":{"x":1}}`)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.Category != "tutorial" {
		t.Errorf("category = %q", resp.Category)
	}
	if resp.Priority != "" || resp.Impact != "" {
		t.Errorf("mistyped fields should be empty: %+v", resp)
	}
	if len(resp.Tags) != 2 || resp.Tags[0] != "llm" || resp.Tags[1] != "agents" {
		t.Errorf("tags = %v", resp.Tags)
	}
	if len(resp.Entities) != 2 || !resp.Actionable {
		t.Errorf("entities = %v actionable = %v", resp.Entities, resp.Actionable)
	}
}

func TestParseResponseRejectsNonObject(t *testing.T) {
	for _, in := range []string{`[1,2]`, `null`, `"text"`} {
		if _, err := ParseResponse(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", in, err)
		}
	}
}
