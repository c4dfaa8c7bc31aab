package mcp

import (
	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Context gathers retrieval context for questions.
	Context driving.ContextService

	// Ingestion reports ingestion run status. Optional.
	Ingestion driving.IngestionRunner

	// Sources is the configured source list, exposed as a resource.
	Sources []domain.ContentSource
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Context == nil {
		return ErrMissingContextService
	}
	// Ingestion and Sources are optional
	return nil
}
