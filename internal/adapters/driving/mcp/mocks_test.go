package mcp

import (
	"context"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driving"
)

// mockContextService is a mock implementation of driving.ContextService.
type mockContextService struct {
	result *domain.RetrievalResult
	err    error
}

func (m *mockContextService) Retrieve(_ context.Context, _ string) (*domain.RetrievalResult, error) {
	return m.result, m.err
}

// mockIngestionRunner is a mock implementation of driving.IngestionRunner.
type mockIngestionRunner struct {
	status *driving.RunStatus
	err    error
}

func (m *mockIngestionRunner) Ingest(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestionRunner) IngestAll(_ context.Context) error {
	return m.err
}

func (m *mockIngestionRunner) Status(_ context.Context, _ string) (*driving.RunStatus, error) {
	return m.status, m.err
}
