// Package normalizer converts raw markup into clean, structurally-aware
// text ready for chunk splitting. Headings, block quotes and tables keep
// their structure; navigation and boilerplate are stripped.
//
// Normalisation is pure (no I/O) and deterministic: identical input and
// hints always yield identical output.
package normalizer

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

// boilerplateSelectors are removed from every document before conversion.
var boilerplateSelectors = []string{
	"script", "style", "noscript", "svg",
	"nav", "header", "footer", "aside", "form", "iframe",
}

// Hints direct extraction for a specific source.
type Hints struct {
	// ContentSelector is a CSS selector identifying the content region.
	// Empty selects the whole body.
	ContentSelector string

	// DropSelectors are removed in addition to the built-in boilerplate.
	DropSelectors []string
}

// Normalizer converts HTML into structured plain text.
// Safe for concurrent use.
type Normalizer struct {
	conv *md.Converter
}

// New creates a normalizer. The GitHub-flavoured plugin keeps table
// row/column alignment and strikethrough semantics during conversion.
func New() *Normalizer {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &Normalizer{conv: conv}
}

// Normalize converts raw markup to structured text. Malformed markup or
// a selector matching nothing usable wraps domain.ErrParse.
func (n *Normalizer) Normalize(rawHTML string, hints Hints) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrParse, err)
	}

	for _, sel := range boilerplateSelectors {
		doc.Find(sel).Remove()
	}
	for _, sel := range hints.DropSelectors {
		doc.Find(sel).Remove()
	}

	region := doc.Find("body")
	if hints.ContentSelector != "" {
		selected := doc.Find(hints.ContentSelector)
		if selected.Length() == 0 {
			return "", fmt.Errorf("%w: content selector %q matched nothing", domain.ErrParse, hints.ContentSelector)
		}
		region = selected.First()
	}

	text := n.conv.Convert(region)
	return collapseWhitespace(text), nil
}

// Title extracts a document title: the <title> tag first, then the first
// <h1>. Returns empty when neither exists.
func (n *Normalizer) Title(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

var (
	multiBlank     = regexp.MustCompile(`\n{3,}`)
	trailingSpaces = regexp.MustCompile(`[ \t]+\n`)
)

// collapseWhitespace trims per-line trailing whitespace and collapses
// runs of blank lines, preserving paragraph boundaries.
func collapseWhitespace(text string) string {
	text = trailingSpaces.ReplaceAllString(text, "\n")
	text = multiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
