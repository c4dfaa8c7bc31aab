// Package records implements the connector for ticketing and knowledge
// base APIs that expose their content as paginated JSON records.
// Authentication is OAuth2 bearer tokens; pagination follows Link
// headers; requests respect the API's rate limit headers.
package records

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/junyang168/smart-answer/internal/connectors"
	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
	"github.com/junyang168/smart-answer/internal/logger"
	"github.com/junyang168/smart-answer/internal/normalizer"
)

// Config holds the per-source settings for a records connector.
type Config struct {
	// SourceID uniquely identifies this source.
	SourceID string

	// DisplayName is shown in citations and CLI output.
	DisplayName string

	// Collection is the index collection this source writes to.
	Collection string

	// BaseURL is the API root, e.g. https://support.example.com/api/v2.
	BaseURL string

	// APIToken authenticates requests as a static bearer token.
	APIToken string

	// RequestsPerSecond caps client-side request pacing. Zero uses the
	// built-in default.
	RequestsPerSecond float64

	// MaxQuestions caps synthetic questions per record.
	MaxQuestions int
}

// Connector ingests records from a ticketing/knowledge API.
type Connector struct {
	cfg       Config
	source    domain.ContentSource
	client    *Client
	norm      *normalizer.Normalizer
	questions driven.QuestionGenerator
}

var _ driven.Connector = (*Connector)(nil)

// New creates a records connector. questions may be nil, in which case
// synthetic questions are derived from record headings.
func New(ctx context.Context, cfg Config, questions driven.QuestionGenerator) (*Connector, error) {
	if cfg.SourceID == "" {
		return nil, fmt.Errorf("%w: records source id is required", domain.ErrConfig)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: records source %s needs a base_url", domain.ErrConfig, cfg.SourceID)
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("%w: records source %s needs an api_token", domain.ErrConfig, cfg.SourceID)
	}
	if cfg.Collection == "" {
		cfg.Collection = cfg.SourceID
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = 5
	}

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken})

	return &Connector{
		cfg: cfg,
		source: domain.ContentSource{
			ID:          cfg.SourceID,
			DisplayName: cfg.DisplayName,
			Kind:        domain.KindRecords,
		},
		client:    NewClient(ctx, cfg.BaseURL, tokens, cfg.RequestsPerSecond),
		norm:      normalizer.New(),
		questions: questions,
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

// ListContent enumerates record ids through the paginated list endpoint.
func (c *Connector) ListContent(ctx context.Context) ([]string, error) {
	ids, err := c.client.ListRecordIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: source %s list records: %w", domain.ErrConfig, c.cfg.SourceID, err)
	}
	logger.Debug("source %s: listed %d records", c.cfg.SourceID, len(ids))
	return ids, nil
}

// FetchContent fetches record bodies. Partial results are allowed; each
// failed id yields one ItemError.
func (c *Connector) FetchContent(ctx context.Context, contentIDs []string) ([]domain.RawDocument, []domain.ItemError) {
	docs := make([]domain.RawDocument, 0, len(contentIDs))
	var failures []domain.ItemError

	for _, id := range contentIDs {
		record, err := c.client.GetRecord(ctx, id)
		if err != nil {
			failures = append(failures, domain.ItemError{ContentID: id, Err: err})
			continue
		}
		docs = append(docs, domain.RawDocument{
			SourceID:    c.cfg.SourceID,
			ContentID:   record.ID,
			Title:       record.Title,
			URL:         record.URL,
			RawBody:     record.BodyHTML,
			FetchedAt:   record.UpdatedAt,
			ContentHash: connectors.HashContent(record.BodyHTML),
		})
	}

	return docs, failures
}

// ExtractMetaText normalises the record body into structured text and
// assembles citation metadata.
func (c *Connector) ExtractMetaText(raw *domain.RawDocument) (*domain.Metadata, string, error) {
	text, err := c.norm.Normalize(raw.RawBody, normalizer.Hints{})
	if err != nil {
		return nil, "", err
	}

	meta := domain.NewMetadata()
	meta.Set("title", raw.Title)
	meta.Set("url", raw.URL)
	meta.Set("source", c.cfg.DisplayName)
	if !raw.FetchedAt.IsZero() {
		meta.Set("updated_at", raw.FetchedAt.UTC().Format("2006-01-02"))
	}
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

// Close releases resources.
func (c *Connector) Close() error {
	if c.questions != nil {
		return c.questions.Close()
	}
	return nil
}
