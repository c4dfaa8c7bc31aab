package domain

import (
	"fmt"
	"time"
)

// Chunk is a bounded unit of normalised text derived from one document.
// Identity is (Collection, ContentID, Index).
type Chunk struct {
	// Collection is the index partition this chunk belongs to.
	Collection string

	// ContentID links to the RawDocument the chunk was split from.
	ContentID string

	// Index is the split position within the document, starting at 0.
	Index int

	// Text is the chunk content, including any leading overlap window
	// shared with the previous chunk.
	Text string

	// Metadata carries ordered key-value pairs attached at split time
	// (title, url, synthetic questions). Keys iterate in insertion order.
	Metadata *Metadata

	// Embedding is the vector representation; nil until the embedding
	// stage has run.
	Embedding []float32

	// Oversized marks a chunk whose single unsplittable token exceeded
	// the configured maximum size. Oversized chunks are emitted whole
	// rather than truncated.
	Oversized bool

	// IndexedAt is set by the search index when the chunk is persisted.
	IndexedAt time.Time
}

// ID returns the chunk's identity key within its collection.
func (c *Chunk) ID() string {
	return fmt.Sprintf("%s:%s:%d", c.Collection, c.ContentID, c.Index)
}

// ScoredChunk is a query hit: a chunk plus its relevance score.
// Higher scores are more relevant.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Metadata is an ordered key-value map. Order matters for deterministic
// chunk serialisation and for prompt assembly downstream.
type Metadata struct {
	keys   []string
	values map[string]string
}

// NewMetadata creates an empty ordered metadata map.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]string)}
}

// Set adds or replaces a key. First insertion fixes the key's position.
func (m *Metadata) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for a key and whether it was present.
func (m *Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	return len(m.keys)
}

// Clone returns a deep copy preserving key order.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := NewMetadata()
	for _, k := range m.keys {
		c.Set(k, m.values[k])
	}
	return c
}

// Pairs returns the entries as an ordered slice of [key, value] pairs.
// Used when serialising metadata for storage.
func (m *Metadata) Pairs() [][2]string {
	if m == nil {
		return nil
	}
	pairs := make([][2]string, 0, len(m.keys))
	for _, k := range m.keys {
		pairs = append(pairs, [2]string{k, m.values[k]})
	}
	return pairs
}

// MetadataFromPairs rebuilds an ordered metadata map from stored pairs.
func MetadataFromPairs(pairs [][2]string) *Metadata {
	m := NewMetadata()
	for _, p := range pairs {
		m.Set(p[0], p[1])
	}
	return m
}
