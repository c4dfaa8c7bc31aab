package memory

import (
	"context"
	"testing"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

func chunk(contentID string, index int, vec []float32) domain.Chunk {
	return domain.Chunk{
		Collection: "docs",
		ContentID:  contentID,
		Index:      index,
		Text:       contentID,
		Embedding:  vec,
	}
}

func TestUpsertAndQuery(t *testing.T) {
	ix := NewIndex("test-model")
	ctx := context.Background()

	err := ix.Upsert(ctx, "docs", []domain.Chunk{
		chunk("a", 0, []float32{1, 0}),
		chunk("b", 0, []float32{0, 1}),
		chunk("c", 0, []float32{0.7, 0.7}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Query(ctx, "docs", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Chunk.ContentID != "a" {
		t.Errorf("expected best match a, got %s", hits[0].Chunk.ContentID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %f then %f", hits[0].Score, hits[1].Score)
	}
}

func TestQuery_TieBreak(t *testing.T) {
	ix := NewIndex("test-model")
	ctx := context.Background()

	// Identical vectors have identical scores; order must be
	// (content_id, chunk_index) ascending.
	err := ix.Upsert(ctx, "docs", []domain.Chunk{
		chunk("b", 1, []float32{1, 0}),
		chunk("b", 0, []float32{1, 0}),
		chunk("a", 0, []float32{1, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Query(ctx, "docs", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	got := []string{hits[0].Chunk.ID(), hits[1].Chunk.ID(), hits[2].Chunk.ID()}
	want := []string{"docs:a:0", "docs:b:0", "docs:b:1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestUpsert_ReplacesStaleChunks(t *testing.T) {
	ix := NewIndex("test-model")
	ctx := context.Background()

	err := ix.Upsert(ctx, "docs", []domain.Chunk{
		chunk("a", 0, []float32{1, 0}),
		chunk("a", 1, []float32{1, 0}),
		chunk("a", 2, []float32{1, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Re-chunking yields fewer chunks; the old trailing chunk must go.
	err = ix.Upsert(ctx, "docs", []domain.Chunk{
		chunk("a", 0, []float32{0, 1}),
	})
	if err != nil {
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

func TestDeleteByContent(t *testing.T) {
	ix := NewIndex("test-model")
	ctx := context.Background()

	err := ix.Upsert(ctx, "docs", []domain.Chunk{
		chunk("a", 0, []float32{1, 0}),
		chunk("b", 0, []float32{0, 1}),
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
		t.Errorf("expected only b to remain, got %v", hits)
	}
}

func TestModelVersion(t *testing.T) {
	ix := NewIndex("test-model")
	ctx := context.Background()

	version, err := ix.ModelVersion(ctx, "docs")
	if err != nil {
		t.Fatalf("ModelVersion: %v", err)
	}
	if version != "" {
		t.Errorf("empty collection should have no version, got %q", version)
	}

	if err := ix.Upsert(ctx, "docs", []domain.Chunk{chunk("a", 0, []float32{1})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	version, err = ix.ModelVersion(ctx, "docs")
	if err != nil {
		t.Fatalf("ModelVersion: %v", err)
	}
	if version != "test-model" {
		t.Errorf("expected test-model, got %q", version)
	}
}

func TestQuery_EmptyCollection(t *testing.T) {
	ix := NewIndex("test-model")

	hits, err := ix.Query(context.Background(), "nothing", []float32{1}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil hits, got %v", hits)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("identical vectors should score ~1, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors should score 0, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths should score 0, got %f", got)
	}
}
