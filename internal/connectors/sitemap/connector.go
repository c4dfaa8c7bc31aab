// Package sitemap implements the crawl connector for public sites that
// publish a sitemap. Content ids are page URLs discovered through
// robots.txt and sitemap files; bodies are fetched through a pooled
// render session so client-side content is included.
package sitemap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/junyang168/smart-answer/internal/connectors"
	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
	"github.com/junyang168/smart-answer/internal/logger"
	"github.com/junyang168/smart-answer/internal/normalizer"
)

// Config holds the per-source settings for a sitemap connector.
type Config struct {
	// SourceID uniquely identifies this source.
	SourceID string

	// DisplayName is shown in citations and CLI output.
	DisplayName string

	// Collection is the index collection this source writes to.
	Collection string

	// BaseURL is the site root used for robots.txt discovery.
	BaseURL string

	// SitemapURL, when set, skips robots.txt discovery and reads this
	// sitemap directly.
	SitemapURL string

	// ContentSelector narrows extraction to a content region.
	ContentSelector string

	// DropSelectors are removed before conversion, on top of the
	// built-in boilerplate list.
	DropSelectors []string

	// UserAgent identifies the crawler to the site.
	UserAgent string

	// MaxQuestions caps synthetic questions per document.
	MaxQuestions int
}

// Connector crawls a sitemap-published site.
type Connector struct {
	cfg       Config
	source    domain.ContentSource
	pool      driven.RendererPool
	norm      *normalizer.Normalizer
	questions driven.QuestionGenerator
	client    *http.Client
}

var _ driven.Connector = (*Connector)(nil)

// New creates a sitemap connector. questions may be nil, in which case
// synthetic questions are derived from document headings.
func New(cfg Config, pool driven.RendererPool, questions driven.QuestionGenerator) (*Connector, error) {
	if cfg.SourceID == "" {
		return nil, fmt.Errorf("%w: sitemap source id is required", domain.ErrConfig)
	}
	if cfg.BaseURL == "" && cfg.SitemapURL == "" {
		return nil, fmt.Errorf("%w: sitemap source %s needs a base_url or sitemap_url", domain.ErrConfig, cfg.SourceID)
	}
	if cfg.Collection == "" {
		cfg.Collection = cfg.SourceID
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "smart-answer-crawler/1.0"
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = 5
	}

	return &Connector{
		cfg: cfg,
		source: domain.ContentSource{
			ID:          cfg.SourceID,
			DisplayName: cfg.DisplayName,
			Kind:        domain.KindSitemap,
		},
		pool:      pool,
		norm:      normalizer.New(),
		questions: questions,
		client:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Source returns the configured content source descriptor.
func (c *Connector) Source() domain.ContentSource {
	return c.source
}

// CollectionName returns the index collection this source writes to.
func (c *Connector) CollectionName() string {
	return c.cfg.Collection
}

// ListContent discovers page URLs through the site's sitemap manifest.
// Each page URL doubles as the content id.
func (c *Connector) ListContent(ctx context.Context) ([]string, error) {
	var (
		pages []PageURL
		err   error
	)
	if c.cfg.SitemapURL != "" {
		var result *ParseResult
		result, err = fetchAndParse(ctx, c.client, c.cfg.SitemapURL, c.cfg.UserAgent)
		if err == nil {
			for _, nested := range result.Sitemaps {
				nestedResult, nerr := fetchAndParse(ctx, c.client, nested, c.cfg.UserAgent)
				if nerr != nil {
					err = nerr
					break
				}
				result.URLs = append(result.URLs, nestedResult.URLs...)
			}
			pages = result.URLs
		}
	} else {
		pages, err = Discover(ctx, c.client, c.cfg.BaseURL, c.cfg.UserAgent)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: source %s sitemap discovery: %w", domain.ErrConfig, c.cfg.SourceID, err)
	}

	logger.Debug("source %s: sitemap discovery found %d pages", c.cfg.SourceID, len(pages))

	ids := make([]string, 0, len(pages))
	for _, p := range pages {
		ids = append(ids, p.Loc)
	}
	return ids, nil
}

// FetchContent retrieves page bodies through a pooled render session.
// Partial results are allowed; each failed id yields one ItemError.
func (c *Connector) FetchContent(ctx context.Context, contentIDs []string) ([]domain.RawDocument, []domain.ItemError) {
	docs := make([]domain.RawDocument, 0, len(contentIDs))
	var failures []domain.ItemError

	for _, id := range contentIDs {
		body, err := c.fetchPage(ctx, id)
		if err != nil {
			failures = append(failures, domain.ItemError{ContentID: id, Err: err})
			continue
		}
		docs = append(docs, domain.RawDocument{
			SourceID:    c.cfg.SourceID,
			ContentID:   id,
			Title:       c.norm.Title(body),
			URL:         id,
			RawBody:     body,
			FetchedAt:   time.Now().UTC(),
			ContentHash: connectors.HashContent(body),
		})
	}

	return docs, failures
}

// fetchPage scopes one session acquire/release around a page fetch.
func (c *Connector) fetchPage(ctx context.Context, url string) (string, error) {
	session, err := c.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: acquire render session: %w", domain.ErrFetch, err)
	}
	defer c.pool.Release(session)

	return session.FetchPage(ctx, url)
}

// ExtractMetaText normalises the page body into structured text and
// assembles citation metadata.
func (c *Connector) ExtractMetaText(raw *domain.RawDocument) (*domain.Metadata, string, error) {
	text, err := c.norm.Normalize(raw.RawBody, normalizer.Hints{
		ContentSelector: c.cfg.ContentSelector,
		DropSelectors:   c.cfg.DropSelectors,
	})
	if err != nil {
		return nil, "", err
	}

	meta := domain.NewMetadata()
	meta.Set("title", raw.Title)
	meta.Set("url", raw.URL)
	meta.Set("source", c.cfg.DisplayName)
	return meta, text, nil
}

// GenerateQuestions produces synthetic recall questions. When a question
// service is configured its failures degrade to heading-derived
// questions rather than failing the item.
func (c *Connector) GenerateQuestions(ctx context.Context, meta *domain.Metadata, text string) ([]string, error) {
	title, _ := meta.Get("title")
	if c.questions != nil {
		qs, err := c.questions.GenerateQuestions(ctx, title, text, c.cfg.MaxQuestions)
		if err == nil {
			return qs, nil
		}
		logger.Debug("source %s: question generation failed, using headings: %v", c.cfg.SourceID, err)
	}
	return connectors.HeadingQuestions(title, text, c.cfg.MaxQuestions), nil
}

// Close releases resources. The render pool is shared and closed by its
// owner, not here.
func (c *Connector) Close() error {
	if c.questions != nil {
		return c.questions.Close()
	}
	return nil
}
