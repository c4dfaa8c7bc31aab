package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

const (
	// defaultTimeout bounds each API request.
	defaultTimeout = 30 * time.Second

	// defaultPageSize is requested per list page.
	defaultPageSize = 100
)

// Record is one knowledge record as returned by the API.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	BodyHTML  string    `json:"body_html"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// recordPage is one page of the list endpoint.
type recordPage struct {
	Records []Record `json:"records"`
}

// Client talks to a ticketing/knowledge records API. Requests carry an
// OAuth2 bearer token and respect the API's rate limit headers.
type Client struct {
	baseURL  string
	http     *http.Client
	throttle *throttle
}

// NewClient creates a records API client around the given token source.
func NewClient(ctx context.Context, baseURL string, tokens oauth2.TokenSource, requestsPerSecond float64) *Client {
	httpClient := oauth2.NewClient(ctx, tokens)
	httpClient.Timeout = defaultTimeout

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		throttle: newThrottle(requestsPerSecond),
	}
}

// ListRecordIDs walks the paginated list endpoint and returns every
// record id. Pagination follows RFC 5988 Link headers.
func (c *Client) ListRecordIDs(ctx context.Context) ([]string, error) {
	var ids []string

	url := fmt.Sprintf("%s/records?page_size=%d", c.baseURL, defaultPageSize)
	for url != "" {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var page recordPage
		next, err := c.getJSON(ctx, url, &page)
		if err != nil {
			return nil, err
		}

		for _, r := range page.Records {
			if r.ID != "" {
				ids = append(ids, r.ID)
			}
		}
		url = next
	}

	return ids, nil
}

// GetRecord fetches one record by id.
func (c *Client) GetRecord(ctx context.Context, id string) (*Record, error) {
	var record Record
	if _, err := c.getJSON(ctx, c.baseURL+"/records/"+id, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// getJSON performs a rate-limited GET and decodes the JSON body into
// out. Returns the "next" pagination link, if any.
func (c *Client) getJSON(ctx context.Context, url string, out any) (string, error) {
	if err := c.throttle.wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if err := c.throttle.observe(resp); err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, url)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %s returned %d: %s", domain.ErrFetch, url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", fmt.Errorf("%w: decode %s: %w", domain.ErrParse, url, err)
	}

	return parseNextLink(resp.Header.Get("Link")), nil
}

// linkEntry matches one Link header entry: <url>; rel="type".
var linkEntry = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// parseNextLink extracts the rel="next" URL from a Link header, or ""
// when this is the last page.
func parseNextLink(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		m := linkEntry.FindStringSubmatch(strings.TrimSpace(part))
		if len(m) == 3 && m[2] == "next" {
			return m[1]
		}
	}
	return ""
}
