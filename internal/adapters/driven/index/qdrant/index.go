// Package qdrant provides a search index backed by a remote Qdrant
// instance over its REST API. Used when the corpus outgrows the local
// sqlite index or the index is shared between machines.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

// DefaultTimeout bounds each Qdrant request.
const DefaultTimeout = 15 * time.Second

// pointNamespace derives deterministic point UUIDs from chunk identity,
// so re-upserting a chunk overwrites its previous point.
var pointNamespace = uuid.MustParse("8a9c1f0e-4b6d-4f2a-9c3e-5d7b2a1e6f40")

// Config holds connection settings for the Qdrant index.
type Config struct {
	// URL is the Qdrant base URL, e.g. http://localhost:6333.
	URL string

	// APIKey authenticates requests when the instance requires it.
	APIKey string

	// ModelVersion is the embedding model version this writer produces.
	ModelVersion string

	// Dimensions is the vector size used when creating collections.
	Dimensions int

	// Timeout is the per-request timeout (default: 15s).
	Timeout time.Duration
}

// Index is a REST client to Qdrant implementing the search index
// contract. Collections are created on first write with cosine distance.
type Index struct {
	baseURL      string
	apiKey       string
	modelVersion string
	dimensions   int
	client       *http.Client
}

// NewIndex creates a Qdrant-backed index.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant URL is required", domain.ErrConfig)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: qdrant vector dimensions must be positive", domain.ErrConfig)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Index{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		apiKey:       cfg.APIKey,
		modelVersion: cfg.ModelVersion,
		dimensions:   cfg.Dimensions,
		client:       &http.Client{Timeout: timeout},
	}, nil
}

// pointPayload is the stored payload for one chunk.
type pointPayload struct {
	ContentID    string `json:"content_id"`
	ChunkIndex   int    `json:"chunk_index"`
	Text         string `json:"text"`
	Metadata     string `json:"metadata"`
	Oversized    bool   `json:"oversized"`
	IndexedAt    string `json:"indexed_at"`
	ModelVersion string `json:"model_version"`
}

// Upsert writes chunks, replacing any previous points for the touched
// content ids. Point ids are deterministic UUIDs of the chunk identity.
func (ix *Index) Upsert(ctx context.Context, collection string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if err := ix.ensureCollection(ctx, collection); err != nil {
		return err
	}

	stored, err := ix.ModelVersion(ctx, collection)
	if err != nil {
		return err
	}
	if stored != "" && stored != ix.modelVersion {
		return fmt.Errorf("%w: collection %s was built with %s, writer has %s",
			domain.ErrModelVersionMismatch, collection, stored, ix.modelVersion)
	}

	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		metadataJSON, err := marshalMetadata(c.Metadata)
		if err != nil {
			return fmt.Errorf("%w: marshal chunk metadata: %w", domain.ErrIndex, err)
		}
		indexedAt := c.IndexedAt
		if indexedAt.IsZero() {
			indexedAt = time.Now().UTC()
		}

		points[i] = map[string]any{
			"id":     uuid.NewSHA1(pointNamespace, []byte(collection+":"+c.ID())).String(),
			"vector": c.Embedding,
			"payload": pointPayload{
				ContentID:    c.ContentID,
				ChunkIndex:   c.Index,
				Text:         c.Text,
				Metadata:     metadataJSON,
				Oversized:    c.Oversized,
				IndexedAt:    indexedAt.Format(time.RFC3339),
				ModelVersion: ix.modelVersion,
			},
		}
	}

	// Deterministic point ids make the write an overwrite in place, so a
	// concurrent query never sees a content id with no chunks. Stale
	// trailing points from a previous longer chunking are trimmed after.
	err = ix.putJSON(ctx,
		fmt.Sprintf("%s/collections/%s/points?wait=true", ix.baseURL, collection),
		map[string]any{"points": points}, nil)
	if err != nil {
		return err
	}

	counts := map[string]int{}
	for _, c := range chunks {
		counts[c.ContentID]++
	}
	for contentID, count := range counts {
		if err := ix.deleteStale(ctx, collection, contentID, count); err != nil {
			return err
		}
	}
	return nil
}

// deleteStale removes points for a content id at chunk indexes past the
// freshly written set.
func (ix *Index) deleteStale(ctx context.Context, collection, contentID string, from int) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "content_id", "match": map[string]any{"value": contentID}},
				{"key": "chunk_index", "range": map[string]any{"gte": from}},
			},
		},
	}
	return ix.postJSON(ctx,
		fmt.Sprintf("%s/collections/%s/points/delete?wait=true", ix.baseURL, collection),
		body, nil)
}

// ensureCollection creates the collection with cosine distance if it
// does not exist. Qdrant answers 200 for an existing identical schema.
func (ix *Index) ensureCollection(ctx context.Context, collection string) error {
	exists, err := ix.collectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return ix.putJSON(ctx,
		fmt.Sprintf("%s/collections/%s", ix.baseURL, collection),
		map[string]any{
			"vectors": map[string]any{
				"size":     ix.dimensions,
				"distance": "Cosine",
			},
		}, nil)
}

func (ix *Index) collectionExists(ctx context.Context, collection string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/collections/%s", ix.baseURL, collection), http.NoBody)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	ix.auth(req)

	resp, err := ix.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: qdrant: %w", domain.ErrIndex, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	return resp.StatusCode == http.StatusOK, nil
}

// DeleteByContent removes every point for a content id via a payload
// filter delete.
func (ix *Index) DeleteByContent(ctx context.Context, collection, contentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "content_id", "match": map[string]any{"value": contentID}},
			},
		},
	}
	return ix.postJSON(ctx,
		fmt.Sprintf("%s/collections/%s/points/delete?wait=true", ix.baseURL, collection),
		body, nil)
}

// Query runs a vector search and restores chunks from point payloads.
// Qdrant orders by score; equal scores are re-broken locally by
// (content_id, chunk_index) for determinism.
func (ix *Index) Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	exists, err := ix.collectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var resp struct {
		Result []struct {
			Score   float64      `json:"score"`
			Payload pointPayload `json:"payload"`
		} `json:"result"`
	}
	err = ix.postJSON(ctx,
		fmt.Sprintf("%s/collections/%s/points/search", ix.baseURL, collection),
		map[string]any{
			"vector":       vector,
			"limit":        k,
			"with_payload": true,
		}, &resp)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		meta, err := unmarshalMetadata(r.Payload.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: unmarshal chunk metadata: %w", domain.ErrIndex, err)
		}
		indexedAt, _ := time.Parse(time.RFC3339, r.Payload.IndexedAt)

		scored = append(scored, domain.ScoredChunk{
			Chunk: domain.Chunk{
				Collection: collection,
				ContentID:  r.Payload.ContentID,
				Index:      r.Payload.ChunkIndex,
				Text:       r.Payload.Text,
				Metadata:   meta,
				Oversized:  r.Payload.Oversized,
				IndexedAt:  indexedAt,
			},
			Score: r.Score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Chunk.ContentID != scored[j].Chunk.ContentID {
			return scored[i].Chunk.ContentID < scored[j].Chunk.ContentID
		}
		return scored[i].Chunk.Index < scored[j].Chunk.Index
	})

	return scored, nil
}

// ModelVersion reads the model version from any stored point, or empty
// when the collection is absent or empty.
func (ix *Index) ModelVersion(ctx context.Context, collection string) (string, error) {
	exists, err := ix.collectionExists(ctx, collection)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", nil
	}

	var resp struct {
		Result struct {
			Points []struct {
				Payload pointPayload `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	err = ix.postJSON(ctx,
		fmt.Sprintf("%s/collections/%s/points/scroll", ix.baseURL, collection),
		map[string]any{"limit": 1, "with_payload": true}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Result.Points) == 0 {
		return "", nil
	}
	return resp.Result.Points[0].Payload.ModelVersion, nil
}

// Close releases resources.
func (ix *Index) Close() error {
	return nil
}

func (ix *Index) auth(req *http.Request) {
	if ix.apiKey != "" {
		req.Header.Set("api-key", ix.apiKey)
	}
}

func (ix *Index) putJSON(ctx context.Context, url string, body, out any) error {
	return ix.doJSON(ctx, http.MethodPut, url, body, out)
}

func (ix *Index) postJSON(ctx context.Context, url string, body, out any) error {
	return ix.doJSON(ctx, http.MethodPost, url, body, out)
}

func (ix *Index) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %w", domain.ErrIndex, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	req.Header.Set("Content-Type", "application/json")
	ix.auth(req)

	resp, err := ix.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant: %w", domain.ErrIndex, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: qdrant %s %s: %s: %s", domain.ErrIndex, method, url, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %w", domain.ErrIndex, err)
		}
	}
	return nil
}

func marshalMetadata(m *domain.Metadata) (string, error) {
	if m == nil {
		return "[]", nil
	}
	data, err := json.Marshal(m.Pairs())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMetadata(data string) (*domain.Metadata, error) {
	if data == "" || data == "[]" {
		return domain.NewMetadata(), nil
	}
	var pairs [][2]string
	if err := json.Unmarshal([]byte(data), &pairs); err != nil {
		return nil, err
	}
	return domain.MetadataFromPairs(pairs), nil
}
