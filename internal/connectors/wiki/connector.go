// Package wiki implements the connector for wiki-style sites. Page
// discovery reuses sitemap crawling; extraction applies per-host DOM
// rules so each wiki engine's chrome (edit links, infoboxes, footers)
// is stripped before normalisation.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/junyang168/smart-answer/internal/connectors"
	"github.com/junyang168/smart-answer/internal/connectors/sitemap"
	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
	"github.com/junyang168/smart-answer/internal/logger"
	"github.com/junyang168/smart-answer/internal/normalizer"
)

// Config holds the per-source settings for a wiki connector.
type Config struct {
	// SourceID uniquely identifies this source.
	SourceID string

	// DisplayName is shown in citations and CLI output.
	DisplayName string

	// Collection is the index collection this source writes to.
	Collection string

	// BaseURL is the wiki root used for sitemap discovery.
	BaseURL string

	// Rules are per-host extraction rules. Unmatched hosts use
	// engine-generic defaults.
	Rules []SiteRules

	// PathPrefix, when set, keeps only discovered pages whose URL path
	// starts with it (e.g. "/wiki/").
	PathPrefix string

	// UserAgent identifies the crawler to the site.
	UserAgent string

	// MaxQuestions caps synthetic questions per page.
	MaxQuestions int
}

// Connector ingests a wiki-style site.
type Connector struct {
	cfg       Config
	source    domain.ContentSource
	pool      driven.RendererPool
	rules     *RuleSet
	norm      *normalizer.Normalizer
	questions driven.QuestionGenerator
	client    *http.Client
}

var _ driven.Connector = (*Connector)(nil)

// New creates a wiki connector. questions may be nil, in which case
// synthetic questions are derived from page headings.
func New(cfg Config, pool driven.RendererPool, questions driven.QuestionGenerator) (*Connector, error) {
	if cfg.SourceID == "" {
		return nil, fmt.Errorf("%w: wiki source id is required", domain.ErrConfig)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: wiki source %s needs a base_url", domain.ErrConfig, cfg.SourceID)
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
			Kind:        domain.KindWiki,
		},
		pool:      pool,
		rules:     NewRuleSet(cfg.Rules),
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

// ListContent discovers page URLs through the wiki's sitemap, filtered
// by the configured path prefix.
func (c *Connector) ListContent(ctx context.Context) ([]string, error) {
	pages, err := sitemap.Discover(ctx, c.client, c.cfg.BaseURL, c.cfg.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("%w: source %s wiki discovery: %w", domain.ErrConfig, c.cfg.SourceID, err)
	}

	ids := make([]string, 0, len(pages))
	for _, p := range pages {
		if c.cfg.PathPrefix != "" && !pathHasPrefix(p.Loc, c.cfg.PathPrefix) {
			continue
		}
		ids = append(ids, p.Loc)
	}

	logger.Debug("source %s: wiki discovery kept %d of %d pages", c.cfg.SourceID, len(ids), len(pages))
	return ids, nil
}

// FetchContent retrieves page bodies through a pooled render session.
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
			Title:       c.pageTitle(id, body),
			URL:         id,
			RawBody:     body,
			FetchedAt:   time.Now().UTC(),
			ContentHash: connectors.HashContent(body),
		})
	}

	return docs, failures
}

func (c *Connector) fetchPage(ctx context.Context, url string) (string, error) {
	session, err := c.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: acquire render session: %w", domain.ErrFetch, err)
	}
	defer c.pool.Release(session)

	return session.FetchPage(ctx, url)
}

// pageTitle resolves the article title via the host's TitleSelector,
// falling back to the generic <title>/<h1> heuristic.
func (c *Connector) pageTitle(pageURL, body string) string {
	rules := c.rules.For(pageURL)
	if rules.TitleSelector != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
			if title := strings.TrimSpace(doc.Find(rules.TitleSelector).First().Text()); title != "" {
				return title
			}
		}
	}
	return c.norm.Title(body)
}

// ExtractMetaText applies the page host's extraction rules and
// normalises the article body. When the rule's content selector matches
// nothing the whole body is used instead; wiki pages outside the main
// namespace often lack the engine's article container.
func (c *Connector) ExtractMetaText(raw *domain.RawDocument) (*domain.Metadata, string, error) {
	rules := c.rules.For(raw.URL)

	text, err := c.norm.Normalize(raw.RawBody, normalizer.Hints{
		ContentSelector: rules.ContentSelector,
		DropSelectors:   rules.DropSelectors,
	})
	if errors.Is(err, domain.ErrParse) && rules.ContentSelector != "" {
		text, err = c.norm.Normalize(raw.RawBody, normalizer.Hints{DropSelectors: rules.DropSelectors})
	}
	if err != nil {
		return nil, "", err
	}

	meta := domain.NewMetadata()
	meta.Set("title", raw.Title)
	meta.Set("url", raw.URL)
	meta.Set("source", c.cfg.DisplayName)
	return meta, text, nil
}

// GenerateQuestions produces synthetic recall questions, degrading to
// heading-derived questions when the generation service fails.
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
// owner.
func (c *Connector) Close() error {
	if c.questions != nil {
		return c.questions.Close()
	}
	return nil
}

// pathHasPrefix reports whether the URL's path component starts with
// prefix.
func pathHasPrefix(pageURL, prefix string) bool {
	rest := pageURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[i:]
	} else {
		rest = "/"
	}
	return strings.HasPrefix(rest, prefix)
}
