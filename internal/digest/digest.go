package digest

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"news-radar/internal/model"
	"news-radar/internal/pipeline"
)

type Item struct {
	Title   string
	URL     string
	Meta    string
	Summary string
	Tags    []string
}

type Section struct {
	Heading string
	Items   []Item
}

type Data struct {
	Title     string
	Slug      string
	Datetime  string
	Summary   string
	Preface   string
	FromCache bool
	Sections  []Section
}

//go:embed digest.tmpl
var digestTpl string

var compiled = template.Must(template.New("digest").Funcs(template.FuncMap{
	"quote":  strconv.Quote,
	"indent": indent,
	"join":   strings.Join,
}).Parse(digestTpl))

func Render(d Data) (string, error) {
	var buf bytes.Buffer
	if err := compiled.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("digest: render: %w", err)
	}
	return buf.String(), nil
}

// WriteFile renders d into dir and returns the written path.
func WriteFile(dir string, d Data, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("digest: create %s: %w", dir, err)
	}
	out, err := Render(d)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, Filename(now))
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return "", fmt.Errorf("digest: write %s: %w", path, err)
	}
	return path, nil
}

// Filename is "digest-YYYYMMDD.md"; the slug is the same without ".md".
func Filename(now time.Time) string {
	return fmt.Sprintf("digest-%s.md", now.UTC().Format("20060102"))
}

var headings = map[model.Priority]string{
	model.PriorityBreaking: "Breaking",
	model.PriorityHigh:     "High priority",
	model.PriorityNormal:   "Worth reading",
	model.PriorityLow:      "Also noted",
}

// FromResult groups a refresh result by priority. title and preface may use
// the variables understood by ExpandVars.
func FromResult(res pipeline.Result, title, preface string, now time.Time) Data {
	d := Data{
		Title:     ExpandVars(title, now),
		Slug:      strings.TrimSuffix(Filename(now), ".md"),
		Datetime:  now.UTC().Format("2006-01-02 15:04"),
		Preface:   ExpandVars(preface, now),
		FromCache: res.FromCache,
	}

	byPriority := map[model.Priority][]Item{}
	var top []string
	for _, it := range res.Items {
		if it.Enrichment == nil {
			continue
		}
		e := it.Enrichment
		byPriority[e.Priority] = append(byPriority[e.Priority], Item{
			Title:   it.Title,
			URL:     it.Link,
			Meta:    meta(it),
			Summary: e.Summary,
			Tags:    e.Tags,
		})
		if len(top) < 3 {
			top = append(top, it.Title)
		}
	}
	for _, p := range model.Priorities {
		if items := byPriority[p]; len(items) > 0 {
			d.Sections = append(d.Sections, Section{Heading: headings[p], Items: items})
		}
	}
	if len(top) > 0 {
		d.Summary = fmt.Sprintf("Top highlights: %s.", strings.Join(top, ", "))
	}
	return d
}

func meta(it model.Item) string {
	parts := []string{it.Source, string(it.Enrichment.Category), fmt.Sprintf("relevance %d/10", it.Enrichment.Relevance)}
	if !it.PublishedAt.IsZero() {
		parts = append(parts, it.PublishedAt.UTC().Format("2006-01-02 15:04"))
	}
	return strings.Join(parts, " · ")
}

func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n")
}
