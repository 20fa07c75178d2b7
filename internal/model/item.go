package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Item is a single aggregated entry from a source.
type Item struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Link        string      `json:"link"`
	PublishedAt time.Time   `json:"published_at"`
	Source      string      `json:"source"`
	Tier        Tier        `json:"tier"`
	Excerpt     string      `json:"excerpt"`
	Score       float64     `json:"score"`
	Enrichment  *Enrichment `json:"enrichment,omitempty"`
}

// Enrichment holds classification output for an item.
type Enrichment struct {
	Category     Category  `json:"category"`
	Priority     Priority  `json:"priority"`
	Relevance    int       `json:"relevance"`
	Sentiment    Sentiment `json:"sentiment"`
	Summary      string    `json:"summary,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Entities     []string  `json:"entities,omitempty"`
	Actionable   bool      `json:"actionable"`
	Impact       string    `json:"impact,omitempty"`
	Source       string    `json:"source"` // classifier | heuristic
	ClassifiedAt time.Time `json:"classified_at"`
}

const (
	EnrichedByClassifier = "classifier"
	EnrichedByHeuristic  = "heuristic"
)

// NewID derives a stable item identity from the source name and a
// source-local key (GUID, numeric id, link).
func NewID(source, localKey string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(localKey)))
	return source + ":" + hex.EncodeToString(sum[:])[:16]
}

// Classified reports whether the item carries a usable enrichment.
func (it Item) Classified() bool {
	return it.Enrichment != nil && it.Enrichment.Category != "" && it.Enrichment.Priority != ""
}

// TruncateRunes shortens s to at most n runes.
func TruncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
