package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
)

// mockConnector serves canned documents and records fetch attempts.
type mockConnector struct {
	source     domain.ContentSource
	collection string
	ids        []string
	docs       map[string]domain.RawDocument
	listErr    error

	// failuresLeft[id] fails that many fetches before succeeding.
	mu           sync.Mutex
	failuresLeft map[string]int
	failWith     error
	fetchCalls   int
}

var _ driven.Connector = (*mockConnector)(nil)

func newMockConnector(sourceID string, bodies map[string]string) *mockConnector {
	c := &mockConnector{
		source:       domain.ContentSource{ID: sourceID, DisplayName: sourceID, Kind: domain.KindSitemap},
		collection:   sourceID,
		docs:         map[string]domain.RawDocument{},
		failuresLeft: map[string]int{},
		failWith:     domain.ErrFetch,
	}
	for id, body := range bodies {
		c.ids = append(c.ids, id)
		c.docs[id] = domain.RawDocument{
			SourceID:    sourceID,
			ContentID:   id,
			Title:       "Title " + id,
			URL:         "https://example.com/" + id,
			RawBody:     body,
			ContentHash: fmt.Sprintf("%x", len(body)+len(id)),
		}
	}
	return c
}

func (c *mockConnector) Source() domain.ContentSource { return c.source }
func (c *mockConnector) CollectionName() string       { return c.collection }

func (c *mockConnector) ListContent(context.Context) ([]string, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	ids := make([]string, len(c.ids))
	copy(ids, c.ids)
	return ids, nil
}

func (c *mockConnector) FetchContent(_ context.Context, contentIDs []string) ([]domain.RawDocument, []domain.ItemError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var docs []domain.RawDocument
	var fails []domain.ItemError
	for _, id := range contentIDs {
		c.fetchCalls++
		if left := c.failuresLeft[id]; left != 0 {
			if left > 0 {
				c.failuresLeft[id] = left - 1
			}
			fails = append(fails, domain.ItemError{ContentID: id, Err: c.failWith})
			continue
		}
		doc, ok := c.docs[id]
		if !ok {
			fails = append(fails, domain.ItemError{ContentID: id, Err: domain.ErrNotFound})
			continue
		}
		docs = append(docs, doc)
	}
	return docs, fails
}

func (c *mockConnector) ExtractMetaText(raw *domain.RawDocument) (*domain.Metadata, string, error) {
	meta := domain.NewMetadata()
	meta.Set("title", raw.Title)
	meta.Set("url", raw.URL)
	return meta, raw.RawBody, nil
}

func (c *mockConnector) GenerateQuestions(context.Context, *domain.Metadata, string) ([]string, error) {
	return nil, nil
}

func (c *mockConnector) Close() error { return nil }

// mockEmbedder returns fixed-size vectors and counts calls.
type mockEmbedder struct {
	mu         sync.Mutex
	embedCalls int
	batchCalls int
	failNext   error

	// failuresLeft fails that many batch calls before succeeding; -1 fails forever.
	failuresLeft int
	failWith     error
}

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

func (e *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failNext != nil {
		err := e.failNext
		e.failNext = nil
		return nil, err
	}
	if e.failuresLeft != 0 {
		if e.failuresLeft > 0 {
			e.failuresLeft--
		}
		e.batchCalls++
		if e.failWith != nil {
			return nil, e.failWith
		}
		return nil, domain.ErrEmbedding
	}
	e.batchCalls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		e.embedCalls++
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

func (e *mockEmbedder) Dimensions() int            { return 2 }
func (e *mockEmbedder) ModelVersion() string       { return "mock-v1" }
func (e *mockEmbedder) Ping(context.Context) error { return nil }
func (e *mockEmbedder) Close() error               { return nil }

func (e *mockEmbedder) calls() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.embedCalls, e.batchCalls
}

// mockLedger is an in-memory ingestion ledger.
type mockLedger struct {
	mu      sync.Mutex
	entries map[string]driven.LedgerEntry
}

var _ driven.IngestionLedger = (*mockLedger)(nil)

func newMockLedger() *mockLedger {
	return &mockLedger{entries: map[string]driven.LedgerEntry{}}
}

func (l *mockLedger) key(collection, contentID string) string {
	return collection + "/" + contentID
}

func (l *mockLedger) Get(_ context.Context, collection, contentID string) (*driven.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[l.key(collection, contentID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := entry
	return &copied, nil
}

func (l *mockLedger) Put(_ context.Context, entry driven.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.key(entry.Collection, entry.ContentID)] = entry
	return nil
}

func (l *mockLedger) List(_ context.Context, collection string) ([]driven.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []driven.LedgerEntry
	for _, entry := range l.entries {
		if entry.Collection == collection {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// mockTool returns a canned result or error.
type mockTool struct {
	name     string
	fallback bool
	result   *domain.RetrievalResult
	err      error

	mu    sync.Mutex
	calls int
}

var _ driven.RetrievalTool = (*mockTool)(nil)

func (t *mockTool) Name() string     { return t.name }
func (t *mockTool) IsFallback() bool { return t.fallback }

func (t *mockTool) Retrieve(context.Context, map[string]string, string) (*domain.RetrievalResult, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

func (t *mockTool) AnswerPromptTemplate(template, _ string) string { return template }

func (t *mockTool) ParseAnswer(answer string) (string, map[string]string) { return answer, nil }

func (t *mockTool) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

var errBackendDown = errors.New("backend down")
