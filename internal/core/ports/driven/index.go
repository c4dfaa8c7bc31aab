package driven

import (
	"context"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

// SearchIndex stores chunk vectors plus metadata and serves nearest
// neighbour queries. The contract is algorithm-agnostic; adapters may be
// backed by sqlite, a remote vector database, or memory.
//
// Consistency: all chunks for one content id within a single Upsert call
// become visible atomically. Queries may run concurrently with writes and
// may observe the pre- or post-upsert state for an item, but never a
// mixed chunk set for it.
type SearchIndex interface {
	// Upsert writes or overwrites chunks by identity
	// (collection, content_id, chunk_index). Last write wins.
	Upsert(ctx context.Context, collection string, chunks []domain.Chunk) error

	// DeleteByContent removes every chunk for a content id, used when
	// content is deleted upstream or superseded by a different chunking.
	DeleteByContent(ctx context.Context, collection, contentID string) error

	// Query returns up to k nearest neighbours for the query vector,
	// scores descending (higher = more relevant), ties broken by
	// (content_id, chunk_index) ascending for determinism.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.ScoredChunk, error)

	// ModelVersion returns the embedding model version the index was
	// created with, or empty if the index is still empty. Upserting
	// vectors from a different version is rejected.
	ModelVersion(ctx context.Context, collection string) (string, error)

	// Close releases resources.
	Close() error
}
