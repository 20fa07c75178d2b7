package model

import (
	"fmt"
	"strings"
)

// Tier is the trust ranking of a source. Higher values are more trusted.
type Tier int

const (
	TierAggregator Tier = iota
	TierCommunity
	TierTrusted
	TierOfficial
)

var tierNames = map[Tier]string{
	TierAggregator: "aggregator",
	TierCommunity:  "community",
	TierTrusted:    "trusted",
	TierOfficial:   "official",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier accepts a tier name, case-insensitively.
func ParseTier(s string) (Tier, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range tierNames {
		if name == s {
			return t, true
		}
	}
	return TierAggregator, false
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, ok := ParseTier(string(b))
	if !ok {
		return fmt.Errorf("model: unknown tier %q", string(b))
	}
	*t = v
	return nil
}

// Category is the closed set of classification categories.
type Category string

const (
	CategoryModelRelease  Category = "model_release"
	CategoryProductLaunch Category = "product_launch"
	CategoryFeatureUpdate Category = "feature_update"
	CategoryResearch      Category = "research"
	CategoryTutorial      Category = "tutorial"
	CategoryIndustry      Category = "industry"
	CategoryPolicy        Category = "policy"
	CategoryCommunity     Category = "community"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryModelRelease,
	CategoryProductLaunch,
	CategoryFeatureUpdate,
	CategoryResearch,
	CategoryTutorial,
	CategoryIndustry,
	CategoryPolicy,
	CategoryCommunity,
}

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Categories {
		if v == c {
			return c, true
		}
	}
	return "", false
}

// IsLaunch reports whether the category announces something new.
func (c Category) IsLaunch() bool {
	return c == CategoryModelRelease || c == CategoryProductLaunch
}

// Priority is ordered: breaking > high > normal > low.
type Priority string

const (
	PriorityBreaking Priority = "breaking"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Priorities lists priorities from most to least urgent.
var Priorities = []Priority{PriorityBreaking, PriorityHigh, PriorityNormal, PriorityLow}

func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Priorities {
		if v == p {
			return p, true
		}
	}
	return "", false
}

// Rank returns 0 for breaking up to 3 for low; unknown values sort last.
func (p Priority) Rank() int {
	for i, v := range Priorities {
		if v == p {
			return i
		}
	}
	return len(Priorities)
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func ParseSentiment(s string) (Sentiment, bool) {
	switch v := Sentiment(strings.ToLower(strings.TrimSpace(s))); v {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return v, true
	}
	return "", false
}
