package sitemap

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// MaxURLsPerSitemap bounds how many page URLs one sitemap file may
// contribute, matching the sitemap protocol's 50k limit.
const MaxURLsPerSitemap = 50000

// reSitemapLine matches "Sitemap:" directives in robots.txt (case-insensitive).
var reSitemapLine = regexp.MustCompile(`(?im)^\s*Sitemap:\s*(.+?)\s*$`)

// PageURL is a single page entry in a sitemap <urlset>.
type PageURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// xmlURLSet is the XML mapping for a <urlset> document.
type xmlURLSet struct {
	XMLName xml.Name  `xml:"urlset"`
	URLs    []PageURL `xml:"url"`
}

// xmlSitemapIndex is the XML mapping for a <sitemapindex> document.
type xmlSitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// ParseResult holds the outcome of parsing one sitemap document: either
// page URLs (urlset) or links to further sitemap files (sitemapindex).
type ParseResult struct {
	URLs     []PageURL
	Sitemaps []string
}

// ParseRobots extracts sitemap URLs from robots.txt content. It looks
// for lines matching "Sitemap: <url>" and returns a deduplicated list.
func ParseRobots(text string) []string {
	matches := reSitemapLine.FindAllStringSubmatch(text, -1)

	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, m := range matches {
		u := strings.TrimSpace(m[1])
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// Parse parses a sitemap XML document, auto-detecting whether it is a
// <urlset> or a <sitemapindex>.
func Parse(data []byte) (*ParseResult, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("sitemap document is empty")
	}

	var urlset xmlURLSet
	if err := xml.Unmarshal([]byte(trimmed), &urlset); err == nil {
		urls := urlset.URLs
		if len(urls) > MaxURLsPerSitemap {
			urls = urls[:MaxURLsPerSitemap]
		}
		return &ParseResult{URLs: urls}, nil
	}

	var index xmlSitemapIndex
	if err := xml.Unmarshal([]byte(trimmed), &index); err != nil {
		return nil, fmt.Errorf("not a urlset or sitemapindex: %w", err)
	}

	result := &ParseResult{}
	for _, s := range index.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			result.Sitemaps = append(result.Sitemaps, loc)
		}
	}
	return result, nil
}

// Discover resolves the full list of page URLs for a site. It reads
// robots.txt for Sitemap directives, falling back to /sitemap.xml, then
// fetches each sitemap file, following one level of <sitemapindex>
// indirection. Gzipped sitemap files are decompressed transparently.
func Discover(ctx context.Context, client *http.Client, baseURL, userAgent string) ([]PageURL, error) {
	base := strings.TrimRight(baseURL, "/")

	sitemapURLs := discoverFromRobots(ctx, client, base, userAgent)
	if len(sitemapURLs) == 0 {
		sitemapURLs = []string{base + "/sitemap.xml"}
	}

	var pages []PageURL
	seen := make(map[string]bool)

	for _, sitemapURL := range sitemapURLs {
		result, err := fetchAndParse(ctx, client, sitemapURL, userAgent)
		if err != nil {
			return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
		}

		// Follow one level of index indirection.
		for _, nested := range result.Sitemaps {
			nestedResult, err := fetchAndParse(ctx, client, nested, userAgent)
			if err != nil {
				return nil, fmt.Errorf("fetch sitemap %s: %w", nested, err)
			}
			result.URLs = append(result.URLs, nestedResult.URLs...)
		}

		for _, u := range result.URLs {
			loc := strings.TrimSpace(u.Loc)
			if loc == "" || seen[loc] {
				continue
			}
			seen[loc] = true
			pages = append(pages, PageURL{Loc: loc, LastMod: u.LastMod})
		}
	}

	return pages, nil
}

// discoverFromRobots reads robots.txt for Sitemap directives. Any
// failure falls through to the /sitemap.xml default.
func discoverFromRobots(ctx context.Context, client *http.Client, base, userAgent string) []string {
	body, err := fetchRaw(ctx, client, base+"/robots.txt", userAgent)
	if err != nil {
		return nil
	}
	return ParseRobots(string(body))
}

// fetchAndParse retrieves one sitemap document and parses it.
func fetchAndParse(ctx context.Context, client *http.Client, url, userAgent string) (*ParseResult, error) {
	body, err := fetchRaw(ctx, client, url, userAgent)
	if err != nil {
		return nil, err
	}
	return Parse(body)
}

// fetchRaw performs a GET, transparently decompressing gzip payloads
// (sitemap files are commonly served as .xml.gz).
func fetchRaw(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	reader := resp.Body
	if strings.HasSuffix(url, ".gz") || resp.Header.Get("Content-Type") == "application/gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return io.ReadAll(reader)
}
