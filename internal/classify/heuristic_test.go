package classify

import (
	"reflect"
	"testing"

	"news-radar/internal/keywords"
	"news-radar/internal/model"
)

func TestHeuristicClassify(t *testing.T) {
	tax := keywords.Default()
	cases := []struct {
		name     string
		item     model.Item
		category model.Category
		priority model.Priority
		rel      int
	}{
		{
			name:     "flagship launch",
			item:     model.Item{Title: "Introducing GPT-5 for developers", Tier: model.TierOfficial},
			category: model.CategoryModelRelease,
			priority: model.PriorityHigh,
			rel:      8,
		},
		{
			name:     "maintenance",
			item:     model.Item{Title: "Typo cleanup across the docs site", Tier: model.TierTrusted},
			category: model.CategoryCommunity,
			priority: model.PriorityLow,
			rel:      3,
		},
		{
			name:     "unmatched aggregator item",
			item:     model.Item{Title: "My weekend in the garden", Tier: model.TierAggregator},
			category: model.CategoryCommunity,
			priority: model.PriorityLow,
			rel:      3,
		},
		{
			name:     "tutorial with framework",
			item:     model.Item{Title: "How to fine-tune with PyTorch on one GPU", Tier: model.TierCommunity},
			category: model.CategoryTutorial,
			priority: model.PriorityNormal,
			rel:      5,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := HeuristicClassify(tc.item, tax)
			if e.Category != tc.category || e.Priority != tc.priority || e.Relevance != tc.rel {
				t.Fatalf("got %s/%s/%d, want %s/%s/%d", e.Category, e.Priority, e.Relevance, tc.category, tc.priority, tc.rel)
			}
			if e.Source != model.EnrichedByHeuristic || e.Sentiment != model.SentimentNeutral {
				t.Fatalf("unexpected provenance or sentiment: %+v", e)
			}
		})
	}
}

func TestHeuristicClassifyDeterministic(t *testing.T) {
	it := model.Item{Title: "Anthropic and OpenAI announce a joint safety study", Excerpt: "Claude and ChatGPT were evaluated.", Tier: model.TierTrusted}
	a := HeuristicClassify(it, nil)
	b := HeuristicClassify(it, keywords.Default())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("heuristic is not deterministic:\n%+v\n%+v", a, b)
	}
	if len(a.Tags) > maxTags || len(a.Entities) > maxEntities {
		t.Fatalf("tag/entity limits exceeded: %+v", a)
	}
}
