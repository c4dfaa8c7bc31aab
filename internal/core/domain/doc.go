// Package domain defines the core business entities for smart-answer.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ContentSource: A configured knowledge source
//   - RawDocument: One content item as fetched by a connector
//   - Chunk: A bounded, embeddable unit of normalised text
//   - Reference / RetrievalResult: Citable retrieval output
//   - IngestionState: Per-item pipeline progress
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
