package wiki

import (
	"net/url"
	"strings"
)

// SiteRules are the DOM extraction rules for one wiki host. Wiki engines
// differ wildly in markup; a per-host rule set keeps extraction precise
// without engine-specific connectors.
type SiteRules struct {
	// Host matches the page URL's hostname, exact or as a suffix
	// ("wiki.example.com" matches "internal.wiki.example.com").
	Host string

	// ContentSelector identifies the article body region.
	ContentSelector string

	// TitleSelector identifies the article title. Empty falls back to
	// the page <title>/<h1>.
	TitleSelector string

	// DropSelectors are removed from the body region before conversion.
	// Wiki chrome (edit links, infoboxes, category footers) goes here.
	DropSelectors []string
}

// defaultRules cover common wiki engines when no per-host rule matches.
var defaultRules = SiteRules{
	ContentSelector: "#content, #mw-content-text, .wiki-content, article",
	DropSelectors: []string{
		".mw-editsection", ".toc", "#toc",
		".navbox", ".infobox", ".catlinks",
		".breadcrumbs", ".page-metadata",
	},
}

// RuleSet resolves extraction rules by page host.
type RuleSet struct {
	rules []SiteRules
}

// NewRuleSet builds a resolver over per-host rules. Order matters: the
// first matching rule wins.
func NewRuleSet(rules []SiteRules) *RuleSet {
	return &RuleSet{rules: rules}
}

// For returns the rules for a page URL, falling back to engine-generic
// defaults when no host matches or the URL does not parse.
func (rs *RuleSet) For(pageURL string) SiteRules {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return defaultRules
	}

	host := strings.ToLower(parsed.Hostname())
	for _, r := range rs.rules {
		ruleHost := strings.ToLower(r.Host)
		if host == ruleHost || strings.HasSuffix(host, "."+ruleHost) {
			return r
		}
	}
	return defaultRules
}
