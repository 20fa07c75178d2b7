package classify

import (
	"strings"

	"news-radar/internal/ai"
	"news-radar/internal/keywords"
	"news-radar/internal/model"
)

const (
	maxTags       = 5
	maxEntities   = 8
	summaryRunes  = 400
	fallbackRunes = 200
	impactRunes   = 200
)

// HeuristicClassify derives an enrichment from keywords, tier and title
// phrasing alone. It never fails and is the only fallback path.
func HeuristicClassify(it model.Item, tax *keywords.Taxonomy) model.Enrichment {
	if tax == nil {
		tax = keywords.Default()
	}
	text := it.Title + " " + it.Excerpt

	cat, ok := tax.CategoryFor(text)
	if !ok {
		cat = model.CategoryCommunity
	}
	flagship := tax.FlagshipIn(text)
	tools := tax.ToolsIn(text)
	frameworks := tax.FrameworksIn(text)
	announce := tax.IsAnnouncement(it.Title)
	maint := tax.IsMaintenance(it.Title)

	pr := model.PriorityNormal
	switch {
	case maint:
		pr = model.PriorityLow
	case cat.IsLaunch() && (len(flagship) > 0 || it.Tier == model.TierOfficial):
		pr = model.PriorityHigh
	case len(flagship) > 0 && announce:
		pr = model.PriorityHigh
	case it.Tier == model.TierAggregator && len(flagship)+len(tools)+len(frameworks) == 0:
		pr = model.PriorityLow
	}

	rel := 3 + int(it.Tier) + min(len(flagship), 2) + min(len(tools)+len(frameworks), 2)
	if announce {
		rel++
	}
	if maint {
		rel -= 2
	}

	summary := it.Excerpt
	if strings.TrimSpace(summary) == "" {
		summary = it.Title
	}

	var tags []string
	for _, set := range [][]string{flagship, tools, frameworks} {
		for _, w := range set {
			tags = append(tags, strings.ToLower(w))
		}
	}

	return model.Enrichment{
		Category:   cat,
		Priority:   pr,
		Relevance:  clamp(rel, 1, 10),
		Sentiment:  model.SentimentNeutral,
		Summary:    model.TruncateRunes(summary, fallbackRunes),
		Tags:       normalizeList(tags, maxTags),
		Entities:   normalizeList(flagship, maxEntities),
		Actionable: cat == model.CategoryTutorial || cat == model.CategoryFeatureUpdate,
		Source:     model.EnrichedByHeuristic,
	}
}

// fromResponse validates classifier output field by field. Values outside
// the closed sets are replaced with the heuristic's.
func fromResponse(resp ai.Response, it model.Item, tax *keywords.Taxonomy) model.Enrichment {
	var fb *model.Enrichment
	fallback := func() model.Enrichment {
		if fb == nil {
			e := HeuristicClassify(it, tax)
			fb = &e
		}
		return *fb
	}

	cat, ok := model.ParseCategory(resp.Category)
	if !ok {
		cat = fallback().Category
	}
	pr, ok := model.ParsePriority(resp.Priority)
	if !ok {
		pr = fallback().Priority
	}
	rel := resp.Relevance
	if rel == 0 {
		rel = fallback().Relevance
	}
	sent, ok := model.ParseSentiment(resp.Sentiment)
	if !ok {
		sent = model.SentimentNeutral
	}
	summary := model.TruncateRunes(resp.Summary, summaryRunes)
	if summary == "" {
		summary = fallback().Summary
	}

	return model.Enrichment{
		Category:   cat,
		Priority:   pr,
		Relevance:  clamp(rel, 1, 10),
		Sentiment:  sent,
		Summary:    summary,
		Tags:       normalizeList(lowered(resp.Tags), maxTags),
		Entities:   normalizeList(resp.Entities, maxEntities),
		Actionable: resp.Actionable,
		Impact:     model.TruncateRunes(resp.Impact, impactRunes),
		Source:     model.EnrichedByClassifier,
	}
}

// applyBoosts promotes official launches to breaking and upgrades normal
// items that mention a high-signal tool.
func applyBoosts(e *model.Enrichment, it model.Item, tax *keywords.Taxonomy) {
	if it.Tier == model.TierOfficial && e.Category.IsLaunch() {
		e.Priority = model.PriorityBreaking
		return
	}
	if e.Priority == model.PriorityNormal && tax.MentionsHighSignalTool(it.Title+" "+it.Excerpt) {
		e.Priority = model.PriorityHigh
	}
}

func normalizeList(in []string, limit int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range in {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func lowered(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
