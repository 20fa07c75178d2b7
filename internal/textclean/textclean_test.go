package textclean

import (
	"strings"
	"testing"
)

func TestStripHTML(t *testing.T) {
	in := "<p>Hello &amp; <b>welcome</b>\n\n to the   <a href=\"x\">docs</a></p><script>alert(1)</script>"
	if got := StripHTML(in); got != "Hello & welcome to the docs" {
		t.Errorf("StripHTML = %q", got)
	}
}

func TestExcerptTruncates(t *testing.T) {
	in := strings.Repeat("word ", 200)
	got := Excerpt(in)
	if n := len([]rune(got)); n > ExcerptLength+1 {
		t.Errorf("excerpt has %d runes", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated excerpt should end with an ellipsis: %q", got)
	}
}
