package textclean

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"news-radar/internal/model"
)

// ExcerptLength is the maximum excerpt size in runes.
const ExcerptLength = 280

var stripper = bluemonday.StrictPolicy()

// StripHTML removes all markup, decodes entities and collapses whitespace.
func StripHTML(s string) string {
	s = stripper.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Excerpt returns a plain-text excerpt of at most ExcerptLength runes.
func Excerpt(s string) string {
	return model.TruncateRunes(StripHTML(s), ExcerptLength)
}
