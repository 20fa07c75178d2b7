package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Request is the input to a single classification call.
type Request struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Excerpt string `json:"excerpt"`
}

// Response is the raw classifier output. Every field is validated by the
// caller before use.
type Response struct {
	Category   string   `json:"category"`
	Priority   string   `json:"priority"`
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
	Entities   []string `json:"entities"`
	Relevance  int      `json:"relevance"`
	Sentiment  string   `json:"sentiment"`
	Actionable bool     `json:"actionable"`
	Impact     string   `json:"impact"`
}

// Classifier classifies one item using the given API key.
type Classifier interface {
	Classify(ctx context.Context, apiKey string, req Request) (Response, error)
}

// ErrMalformed marks a response that could not be decoded.
var ErrMalformed = errors.New("ai: malformed classifier response")

type Config struct {
	Model   string
	BaseURL string // optional
}

// OpenAIClient implements Classifier with the Chat Completions API in JSON
// mode. One underlying client is kept per API key.
type OpenAIClient struct {
	model   string
	baseURL string

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func NewOpenAI(cfg Config) *OpenAIClient {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{model: model, baseURL: cfg.BaseURL, clients: map[string]*openai.Client{}}
}

func (o *OpenAIClient) client(apiKey string) *openai.Client {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.clients[apiKey]; ok {
		return c
	}
	var c *openai.Client
	if o.baseURL != "" {
		cc := openai.DefaultConfig(apiKey)
		cc.BaseURL = o.baseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(apiKey)
	}
	o.clients[apiKey] = c
	return c
}

const systemPrompt = `You classify technology news items. Reply with a single JSON object with keys:
category (one of: model_release, product_launch, feature_update, research, tutorial, industry, policy, community),
priority (one of: breaking, high, normal, low),
summary (one sentence), tags (up to 5 short lowercase strings), entities (organisations, products or people named),
relevance (integer 1-10 for a practitioner audience), sentiment (positive, neutral or negative),
actionable (boolean: can a reader act on this today), impact (one short sentence).`

func (o *OpenAIClient) Classify(ctx context.Context, apiKey string, req Request) (Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	excerpt := strings.TrimSpace(req.Excerpt)
	if len([]rune(excerpt)) > 800 {
		excerpt = string([]rune(excerpt)[:800])
	}
	user := fmt.Sprintf("Title: %s\nSource: %s\nExcerpt: %s", req.Title, req.Source, excerpt)

	resp, err := o.client(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:    0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: no choices", ErrMalformed)
	}
	return ParseResponse(resp.Choices[0].Message.Content)
}

// ParseResponse decodes classifier JSON, tolerating a fenced code block.
// Fields are decoded one by one: a field of the wrong type is left at its
// zero value instead of failing the whole response. Numbers given as floats
// or strings are accepted for relevance, as are "true"/"false" strings for
// actionable.
func ParseResponse(content string) (Response, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &fields); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return Response{}, fmt.Errorf("%w: empty object", ErrMalformed)
	}
	return Response{
		Category:   stringField(fields["category"]),
		Priority:   stringField(fields["priority"]),
		Summary:    stringField(fields["summary"]),
		Tags:       listField(fields["tags"]),
		Entities:   listField(fields["entities"]),
		Relevance:  intField(fields["relevance"]),
		Sentiment:  stringField(fields["sentiment"]),
		Actionable: boolField(fields["actionable"]),
		Impact:     stringField(fields["impact"]),
	}, nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// listField accepts an array of strings (non-strings are skipped) or a
// single comma-separated string.
func listField(raw json.RawMessage) []string {
	var vs []any
	if json.Unmarshal(raw, &vs) == nil {
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if s := stringField(raw); s != "" {
		return strings.Split(s, ",")
	}
	return nil
}

func intField(raw json.RawMessage) int {
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return 0
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

func boolField(raw json.RawMessage) bool {
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(x))
		return b
	}
	return false
}

// StatusCode extracts the HTTP status from a classifier error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return 0
}

// IsRateLimited reports whether err is a 429 from the classifier.
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}
