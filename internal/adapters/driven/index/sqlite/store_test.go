package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
)

func newTestStore(t *testing.T, modelVersion string) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), modelVersion)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testChunk(contentID string, index int, vec []float32) domain.Chunk {
	meta := domain.NewMetadata()
	meta.Set("title", "Test Page")
	meta.Set("url", "https://example.com/"+contentID)
	return domain.Chunk{
		Collection: "docs",
		ContentID:  contentID,
		Index:      index,
		Text:       "chunk text for " + contentID,
		Metadata:   meta,
		Embedding:  vec,
	}
}

func TestUpsertAndQuery(t *testing.T) {
	store := newTestStore(t, "test-model")
	ix := store.SearchIndex()
	ctx := context.Background()

	err := ix.Upsert(ctx, "docs", []domain.Chunk{
		testChunk("a", 0, []float32{1, 0}),
		testChunk("b", 0, []float32{0, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Query(ctx, "docs", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Chunk.ContentID != "a" {
		t.Errorf("expected best match a, got %s", hits[0].Chunk.ContentID)
	}

	// Metadata ordering survives the round trip.
	keys := hits[0].Chunk.Metadata.Keys()
	if len(keys) != 2 || keys[0] != "title" || keys[1] != "url" {
		t.Errorf("metadata key order lost: %v", keys)
	}
}

func TestUpsert_ReplacesStaleChunks(t *testing.T) {
	store := newTestStore(t, "test-model")
	ix := store.SearchIndex()
	ctx := context.Background()

	err := ix.Upsert(ctx, "docs", []domain.Chunk{
		testChunk("a", 0, []float32{1, 0}),
		testChunk("a", 1, []float32{1, 0}),
		testChunk("a", 2, []float32{1, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := ix.Upsert(ctx, "docs", []domain.Chunk{testChunk("a", 0, []float32{0, 1})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Query(ctx, "docs", []float32{0, 1}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 chunk after re-chunking, got %d", len(hits))
	}
}

func TestQuery_TieBreak(t *testing.T) {
	store := newTestStore(t, "test-model")
	ix := store.SearchIndex()
	ctx := context.Background()

	err := ix.Upsert(ctx, "docs", []domain.Chunk{
		testChunk("b", 1, []float32{1, 0}),
		testChunk("b", 0, []float32{1, 0}),
		testChunk("a", 0, []float32{1, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Query(ctx, "docs", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	want := []string{"docs:a:0", "docs:b:0", "docs:b:1"}
	for i, w := range want {
		if got := hits[i].Chunk.ID(); got != w {
			t.Errorf("position %d: got %s, want %s", i, got, w)
		}
	}
}

func TestDeleteByContent(t *testing.T) {
	store := newTestStore(t, "test-model")
	ix := store.SearchIndex()
	ctx := context.Background()

	err := ix.Upsert(ctx, "docs", []domain.Chunk{
		testChunk("a", 0, []float32{1, 0}),
		testChunk("b", 0, []float32{0, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := ix.DeleteByContent(ctx, "docs", "a"); err != nil {
		t.Fatalf("DeleteByContent: %v", err)
	}

	hits, err := ix.Query(ctx, "docs", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.ContentID != "b" {
		t.Errorf("expected only b to remain, got %d hits", len(hits))
	}
}

func TestModelVersionGuard(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir, "model-v1")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	if err := store.SearchIndex().Upsert(ctx, "docs", []domain.Chunk{testChunk("a", 0, []float32{1})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	store.Close()

	// Reopen with a different model version; writes must be rejected.
	store, err = NewStore(dir, "model-v2")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	err = store.SearchIndex().Upsert(ctx, "docs", []domain.Chunk{testChunk("b", 0, []float32{1})})
	if !errors.Is(err, domain.ErrModelVersionMismatch) {
		t.Fatalf("expected ErrModelVersionMismatch, got %v", err)
	}

	version, err := store.SearchIndex().ModelVersion(ctx, "docs")
	if err != nil {
		t.Fatalf("ModelVersion: %v", err)
	}
	if version != "model-v1" {
		t.Errorf("expected model-v1, got %q", version)
	}
}

func TestModelVersion_EmptyCollection(t *testing.T) {
	store := newTestStore(t, "test-model")

	version, err := store.SearchIndex().ModelVersion(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("ModelVersion: %v", err)
	}
	if version != "" {
		t.Errorf("expected empty version, got %q", version)
	}
}

func TestLedger_PutGetList(t *testing.T) {
	store := newTestStore(t, "test-model")
	ledger := store.Ledger()
	ctx := context.Background()

	_, err := ledger.Get(ctx, "docs", "a")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entry := driven.LedgerEntry{
		Collection:  "docs",
		ContentID:   "a",
		ContentHash: "abc123",
		State:       domain.StateIndexed,
	}
	if err := ledger.Put(ctx, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := ledger.Get(ctx, "docs", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ContentHash != "abc123" {
		t.Errorf("expected hash abc123, got %s", got.ContentHash)
	}
	if got.State != domain.StateIndexed {
		t.Errorf("expected indexed state, got %s", got.State)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set on Put")
	}

	// Update in place.
	entry.State = domain.StateFailed
	entry.LastError = "embedding timeout"
	if err := ledger.Put(ctx, entry); err != nil {
		t.Fatalf("Put update: %v", err)
	}

	got, err = ledger.Get(ctx, "docs", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.StateFailed || got.LastError != "embedding timeout" {
		t.Errorf("update lost: %+v", got)
	}

	entries, err := ledger.List(ctx, "docs")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir, "test-model")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.SearchIndex().Upsert(ctx, "docs", []domain.Chunk{testChunk("a", 0, []float32{1, 0})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	store.Close()

	store, err = NewStore(dir, "test-model")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	hits, err := store.SearchIndex().Query(ctx, "docs", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.Text != "chunk text for a" {
		t.Errorf("data not persisted: %v", hits)
	}
}
