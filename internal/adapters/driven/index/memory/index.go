// Package memory provides an in-memory search index. Used for tests and
// small corpora; brute-force scan, no persistence.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

// collectionData holds one collection's chunks keyed by content id.
type collectionData struct {
	modelVersion string
	items        map[string]map[int]domain.Chunk
}

// Index is an in-memory vector index with per-content atomic upserts.
type Index struct {
	mu           sync.RWMutex
	modelVersion string
	collections  map[string]*collectionData
}

// NewIndex creates an empty index bound to an embedding model version.
func NewIndex(modelVersion string) *Index {
	return &Index{
		modelVersion: modelVersion,
		collections:  map[string]*collectionData{},
	}
}

// Upsert writes chunks grouped by content id. All chunks for one content
// id become visible atomically; previous chunks for that id are replaced
// so a re-chunking never leaves stale trailing chunks behind.
func (ix *Index) Upsert(_ context.Context, collection string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	col := ix.collections[collection]
	if col == nil {
		col = &collectionData{
			modelVersion: ix.modelVersion,
			items:        map[string]map[int]domain.Chunk{},
		}
		ix.collections[collection] = col
	}
	if col.modelVersion != ix.modelVersion {
		return fmt.Errorf("%w: collection %s has %s, writer has %s",
			domain.ErrModelVersionMismatch, collection, col.modelVersion, ix.modelVersion)
	}

	byContent := map[string][]domain.Chunk{}
	for _, c := range chunks {
		byContent[c.ContentID] = append(byContent[c.ContentID], c)
	}

	for contentID, group := range byContent {
		fresh := make(map[int]domain.Chunk, len(group))
		for _, c := range group {
			fresh[c.Index] = c
		}
		col.items[contentID] = fresh
	}
	return nil
}

// DeleteByContent removes every chunk for a content id.
func (ix *Index) DeleteByContent(_ context.Context, collection, contentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if col := ix.collections[collection]; col != nil {
		delete(col.items, contentID)
	}
	return nil
}

// Query scans the collection and returns the top k chunks by cosine
// similarity, ties broken by (content_id, chunk_index) ascending.
func (ix *Index) Query(_ context.Context, collection string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	col := ix.collections[collection]
	if col == nil {
		return nil, nil
	}

	var scored []domain.ScoredChunk
	for _, group := range col.items {
		for _, c := range group {
			score := cosineSimilarity(vector, c.Embedding)
			scored = append(scored, domain.ScoredChunk{Chunk: c, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Chunk.ContentID != scored[j].Chunk.ContentID {
			return scored[i].Chunk.ContentID < scored[j].Chunk.ContentID
		}
		return scored[i].Chunk.Index < scored[j].Chunk.Index
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// ModelVersion returns the version the collection was created with, or
// empty while the collection has never been written.
func (ix *Index) ModelVersion(_ context.Context, collection string) (string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if col := ix.collections[collection]; col != nil {
		return col.modelVersion, nil
	}
	return "", nil
}

// Close releases resources.
func (ix *Index) Close() error {
	return nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
