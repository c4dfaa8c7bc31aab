package driven

import (
	"context"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

// Connector unifies one external knowledge source behind a common
// capability contract. Each variant (sitemap, records, wiki) implements
// this interface; the ingestion pipeline is agnostic to which variant
// supplied an item.
type Connector interface {
	// Source returns the configured content source descriptor.
	Source() domain.ContentSource

	// CollectionName returns the index collection this source writes to.
	CollectionName() string

	// ListContent enumerates available content ids. It may page
	// internally and must be safe to call repeatedly even if the set
	// grows or shrinks between calls. A failure here is fatal for this
	// source's run and wraps domain.ErrConfig.
	ListContent(ctx context.Context) ([]string, error)

	// FetchContent fetches bodies for the given ids. Partial results are
	// allowed: successfully fetched documents are returned alongside one
	// ItemError per failed id. Transient failures wrap domain.ErrFetch
	// so the pipeline can retry them.
	FetchContent(ctx context.Context, contentIDs []string) ([]domain.RawDocument, []domain.ItemError)

	// ExtractMetaText combines source-specific metadata extraction with
	// generic normalisation. Returns ordered metadata and the structured
	// text ready for splitting.
	ExtractMetaText(raw *domain.RawDocument) (*domain.Metadata, string, error)

	// GenerateQuestions produces synthetic questions for the content,
	// indexed alongside its chunks to improve recall.
	GenerateQuestions(ctx context.Context, meta *domain.Metadata, text string) ([]string, error)

	// Close releases resources.
	Close() error
}
