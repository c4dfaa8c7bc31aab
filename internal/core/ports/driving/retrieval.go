package driving

import (
	"context"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

// ContextService gathers grounded, citable context for a question by
// orchestrating the configured retrieval tools.
type ContextService interface {
	// Retrieve runs all primary tools for the question and merges their
	// results; when every primary tool comes back empty it returns the
	// fallback tool's result instead.
	Retrieve(ctx context.Context, question string) (*domain.RetrievalResult, error)
}
