package keywords

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"news-radar/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Weights tune the aggregation score.
type Weights struct {
	Tier         float64 `yaml:"tier"`
	Flagship     float64 `yaml:"flagship"`
	Tool         float64 `yaml:"tool"`
	Framework    float64 `yaml:"framework"`
	Announcement float64 `yaml:"announcement"`
	Maintenance  float64 `yaml:"maintenance"`
	MaxMatches   int     `yaml:"max_matches"` // per keyword set
}

// NoiseRules are regular expressions applied to titles before scoring.
type NoiseRules struct {
	CommitHash        []string `yaml:"commit_hash"`
	VersionBump       []string `yaml:"version_bump"`
	MajorSignal       []string `yaml:"major_signal"`
	MaintenanceCommit []string `yaml:"maintenance_commit"`
}

// CategoryRule maps title/excerpt patterns to a category. Rules are
// evaluated in order and the first match wins.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Patterns []string `yaml:"patterns"`
}

// Taxonomy is the curated vocabulary shared by scoring and the heuristic
// classifier. Build one with Default or Load.
type Taxonomy struct {
	Flagship        []string       `yaml:"flagship"`
	Tools           []string       `yaml:"tools"`
	Frameworks      []string       `yaml:"frameworks"`
	HighSignalTools []string       `yaml:"high_signal_tools"`
	Announcement    []string       `yaml:"announcement"`
	Maintenance     []string       `yaml:"maintenance"`
	Noise           NoiseRules     `yaml:"noise"`
	Categories      []CategoryRule `yaml:"categories"`
	Weights         Weights        `yaml:"weights"`

	flagship, tools, frameworks, highSignal *regexp.Regexp
	announcement, maintenance               []*regexp.Regexp
	hash, bump, major, commit               []*regexp.Regexp
	categories                              []compiledRule
}

type compiledRule struct {
	category model.Category
	patterns []*regexp.Regexp
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t, err := parse(defaultYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("keywords: invalid built-in taxonomy: %v", err))
	}
	return t
}

// Load reads a YAML taxonomy from path. Sections absent from the file keep
// their built-in values.
func Load(path string) (*Taxonomy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keywords: read %s: %w", path, err)
	}
	return parse(b, Default())
}

func parse(b []byte, base *Taxonomy) (*Taxonomy, error) {
	var t Taxonomy
	if base != nil {
		t = *base
	}
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("keywords: parse: %w", err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Taxonomy) compile() error {
	var err error
	t.flagship = wordSet(t.Flagship)
	t.tools = wordSet(t.Tools)
	t.frameworks = wordSet(t.Frameworks)
	t.highSignal = wordSet(t.HighSignalTools)
	if t.announcement, err = compileAll(t.Announcement); err != nil {
		return err
	}
	if t.maintenance, err = compileAll(t.Maintenance); err != nil {
		return err
	}
	if t.hash, err = compileAll(t.Noise.CommitHash); err != nil {
		return err
	}
	if t.bump, err = compileAll(t.Noise.VersionBump); err != nil {
		return err
	}
	if t.major, err = compileAll(t.Noise.MajorSignal); err != nil {
		return err
	}
	if t.commit, err = compileAll(t.Noise.MaintenanceCommit); err != nil {
		return err
	}
	t.categories = t.categories[:0:0]
	for _, r := range t.Categories {
		c, ok := model.ParseCategory(r.Category)
		if !ok {
			return fmt.Errorf("keywords: unknown category %q", r.Category)
		}
		ps, err := compileAll(r.Patterns)
		if err != nil {
			return err
		}
		t.categories = append(t.categories, compiledRule{category: c, patterns: ps})
	}
	if t.Weights.MaxMatches <= 0 {
		t.Weights.MaxMatches = 2
	}
	return nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("keywords: bad pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// wordSet builds a case-insensitive whole-word alternation, longest first so
// "Google DeepMind" wins over "DeepMind".
func wordSet(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	sortByLenDesc(quoted)
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func sortByLenDesc(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && len(s[j]) > len(s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func distinctMatches(re *regexp.Regexp, text string) []string {
	if re == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, m := range re.FindAllString(text, -1) {
		k := strings.ToLower(m)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m)
	}
	return out
}

func anyMatch(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// FlagshipIn returns the distinct flagship entities mentioned in text.
func (t *Taxonomy) FlagshipIn(text string) []string { return distinctMatches(t.flagship, text) }

// ToolsIn returns the distinct tool names mentioned in text.
func (t *Taxonomy) ToolsIn(text string) []string { return distinctMatches(t.tools, text) }

// FrameworksIn returns the distinct framework names mentioned in text.
func (t *Taxonomy) FrameworksIn(text string) []string { return distinctMatches(t.frameworks, text) }

// MentionsHighSignalTool reports whether text names a high-signal tool.
func (t *Taxonomy) MentionsHighSignalTool(text string) bool {
	return t.highSignal != nil && t.highSignal.MatchString(text)
}

func (t *Taxonomy) IsAnnouncement(text string) bool { return anyMatch(t.announcement, text) }

func (t *Taxonomy) IsMaintenance(text string) bool { return anyMatch(t.maintenance, text) }

// NoiseReason returns a non-empty reason when title matches a low-value
// pattern. Version bumps carrying a major/breaking signal are kept.
func (t *Taxonomy) NoiseReason(title string) string {
	title = strings.TrimSpace(title)
	switch {
	case anyMatch(t.hash, title):
		return "commit_hash"
	case anyMatch(t.commit, title):
		return "maintenance_commit"
	case anyMatch(t.bump, title) && !anyMatch(t.major, title):
		return "version_bump"
	}
	return ""
}

// CategoryFor returns the first category whose patterns match text.
func (t *Taxonomy) CategoryFor(text string) (model.Category, bool) {
	for _, r := range t.categories {
		if anyMatch(r.patterns, text) {
			return r.category, true
		}
	}
	return "", false
}
