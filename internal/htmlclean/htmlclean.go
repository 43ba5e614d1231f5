// Package htmlclean strips HTML markup from descriptions and synopses
// returned by sources that embed formatting (AniList, MyAnimeList) down
// to plain text.
package htmlclean

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var brPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
var tagPattern = regexp.MustCompile(`<[^>]*>`)

var namedEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#039;": "'",
	"&nbsp;": " ",
}

// mdArtifact catches the markdown punctuation html-to-markdown emits for
// emphasis/links/headings once tags are gone, so descriptions read as
// plain text rather than unrendered markdown.
var mdArtifact = regexp.MustCompile(`[*_` + "`" + `#]`)

// Strip converts <br/> variants to newlines, removes remaining tags, and
// decodes the standard named entities. html-to-markdown does the actual
// tag walking; its markdown punctuation is then scrubbed so the result
// degrades to plain text rather than unrendered markdown.
func Strip(s string) string {
	if s == "" {
		return s
	}

	s = brPattern.ReplaceAllString(s, "\n")

	if md, err := htmltomarkdown.ConvertString(s); err == nil {
		s = md
	} else {
		s = tagPattern.ReplaceAllString(s, "")
	}
	s = mdArtifact.ReplaceAllString(s, "")

	for entity, replacement := range namedEntities {
		s = strings.ReplaceAll(s, entity, replacement)
	}

	return strings.TrimSpace(s)
}
