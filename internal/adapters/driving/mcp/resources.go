package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "smart-answer://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing sources.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "List of all configured knowledge sources",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	// Template for per-source ingestion status.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sources/{sourceId}/status",
		Name:        "source-status",
		Description: "Ingestion progress for a specific source",
		MIMEType:    "application/json",
	}, s.handleStatusResource)
}

// handleSourcesResource returns a list of all configured sources.
func (s *Server) handleSourcesResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type sourceInfo struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Kind string `json:"kind"`
	}

	infos := make([]sourceInfo, len(s.ports.Sources))
	for i, src := range s.ports.Sources {
		infos[i] = sourceInfo{
			ID:   src.ID,
			Name: src.DisplayName,
			Kind: string(src.Kind),
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling sources: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleStatusResource returns ingestion progress for a specific source.
func (s *Server) handleStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Ingestion == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract sourceId from URI: smart-answer://sources/{sourceId}/status
	sourceID := extractSourceID(req.Params.URI)
	if sourceID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	status, err := s.ports.Ingestion.Status(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("getting status: %w", err)
	}

	type statusInfo struct {
		SourceID  string `json:"source_id"`
		Running   bool   `json:"running"`
		Processed int    `json:"processed"`
		Skipped   int    `json:"skipped"`
		Failed    int    `json:"failed"`
	}

	data, err := json.MarshalIndent(statusInfo{
		SourceID:  status.SourceID,
		Running:   status.Running,
		Processed: status.Processed,
		Skipped:   status.Skipped,
		Failed:    status.Failed,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling status: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSourceID parses the source id out of a
// smart-answer://sources/{sourceId}/status URI.
func extractSourceID(uri string) string {
	rest, ok := strings.CutPrefix(uri, uriScheme+"sources/")
	if !ok {
		return ""
	}
	sourceID, ok := strings.CutSuffix(rest, "/status")
	if !ok || strings.Contains(sourceID, "/") {
		return ""
	}
	return sourceID
}
