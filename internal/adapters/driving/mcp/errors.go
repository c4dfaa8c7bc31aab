// Package mcp provides a Model Context Protocol server adapter. It lets
// AI assistants retrieve grounded, citable context from the configured
// knowledge sources and inspect ingestion state.
package mcp

import "errors"

// ErrMissingContextService is returned when the context service is not provided.
var ErrMissingContextService = errors.New("mcp: context service is required")
