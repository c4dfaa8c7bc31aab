package cli

import (
	"context"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driving"
)

// mockContextService returns a canned retrieval result.
type mockContextService struct {
	result *domain.RetrievalResult
	err    error
}

func (m *mockContextService) Retrieve(_ context.Context, _ string) (*domain.RetrievalResult, error) {
	return m.result, m.err
}

// mockIngestionRunner records invocations and serves canned status.
type mockIngestionRunner struct {
	ingested  []string
	ingestAll bool
	status    *driving.RunStatus
	err       error
}

func (m *mockIngestionRunner) Ingest(_ context.Context, sourceID string) error {
	m.ingested = append(m.ingested, sourceID)
	return m.err
}

func (m *mockIngestionRunner) IngestAll(_ context.Context) error {
	m.ingestAll = true
	return m.err
}

func (m *mockIngestionRunner) Status(_ context.Context, sourceID string) (*driving.RunStatus, error) {
	if m.status != nil {
		return m.status, nil
	}
	return &driving.RunStatus{SourceID: sourceID}, nil
}

// setupTestServices injects mock services into the package globals and
// returns a cleanup restoring the previous state.
func setupTestServices() func() {
	oldContext := contextService
	oldRunner := ingestionRunner
	oldSources := configuredSources

	contextService = &mockContextService{
		result: &domain.RetrievalResult{
			Prefix:  "From the documentation:",
			Content: "Reset instructions.",
			References: []domain.Reference{
				{ID: "docs:reset", Title: "Reset Guide", Link: "https://example.com/reset"},
			},
		},
	}
	ingestionRunner = &mockIngestionRunner{
		status: &driving.RunStatus{SourceID: "docs", Processed: 3, Skipped: 1},
	}
	configuredSources = []domain.ContentSource{
		{ID: "docs", DisplayName: "Product Docs", Kind: domain.KindSitemap},
		{ID: "tickets", DisplayName: "Support Tickets", Kind: domain.KindRecords},
	}

	return func() {
		contextService = oldContext
		ingestionRunner = oldRunner
		configuredSources = oldSources
	}
}
