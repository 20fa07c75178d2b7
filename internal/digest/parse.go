package digest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a rendered digest read back from disk.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// ParseFile reads a Markdown file with optional YAML frontmatter between two
// "---" lines at the top.
func ParseFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	d, err := Parse(f)
	if err != nil {
		return Document{}, fmt.Errorf("digest: parse %s: %w", path, err)
	}
	return d, nil
}

func Parse(r io.Reader) (Document, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(3)
	if err != nil && !errors.Is(err, io.EOF) {
		return Document{}, err
	}
	hasFM := string(peek) == "---"

	var fm, body strings.Builder
	if hasFM {
		if _, err := br.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return Document{}, err
		}
		for {
			l, err := br.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return Document{}, err
			}
			if strings.TrimSpace(l) == "---" {
				break
			}
			fm.WriteString(l)
			if errors.Is(err, io.EOF) {
				break
			}
		}
	}
	if _, err := io.Copy(&body, br); err != nil {
		return Document{}, err
	}

	d := Document{Frontmatter: map[string]any{}, Body: body.String()}
	if hasFM {
		if err := yaml.Unmarshal([]byte(fm.String()), &d.Frontmatter); err != nil {
			return Document{}, fmt.Errorf("frontmatter: %w", err)
		}
		if d.Frontmatter == nil {
			d.Frontmatter = map[string]any{}
		}
	}
	return d, nil
}

// Keys returns the frontmatter keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d.Frontmatter))
	for k := range d.Frontmatter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
