package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/junyang168/smart-answer/internal/core/domain"
	"github.com/junyang168/smart-answer/internal/core/ports/driven"
	"github.com/junyang168/smart-answer/internal/core/ports/driving"
	"github.com/junyang168/smart-answer/internal/logger"
	"github.com/junyang168/smart-answer/internal/splitter"
)

// Ensure Pipeline implements the interface.
var _ driving.IngestionRunner = (*Pipeline)(nil)

// DefaultFetchWorkers bounds concurrent per-item processing.
const DefaultFetchWorkers = 4

// PipelineConfig tunes the ingestion pipeline.
type PipelineConfig struct {
	// RetryMaxAttempts bounds retries of transient per-item failures.
	RetryMaxAttempts int

	// EmbeddingBatchSize caps texts per embedding request.
	EmbeddingBatchSize int

	// FetchWorkers bounds concurrent items in flight per run.
	FetchWorkers int
}

// Pipeline orchestrates Connector -> Normalizer -> Splitter -> Embedding
// -> Index per content item. Per-item failures are isolated; fatal
// conditions (enumeration failure, cancellation) abort the run.
type Pipeline struct {
	connectors map[string]driven.Connector
	order      []string
	split      *splitter.Splitter
	embedder   driven.EmbeddingService
	index      driven.SearchIndex
	ledger     driven.IngestionLedger
	cfg        PipelineConfig

	// Status tracking
	mu         sync.RWMutex
	activeRuns map[string]*driving.RunStatus

	// Upserts are serialized per collection.
	upsertMu sync.Mutex
	upserts  map[string]*sync.Mutex
}

// NewPipeline creates an ingestion pipeline over the given connectors.
// Connector order is preserved for IngestAll.
func NewPipeline(
	connectors []driven.Connector,
	split *splitter.Splitter,
	embedder driven.EmbeddingService,
	index driven.SearchIndex,
	ledger driven.IngestionLedger,
	cfg PipelineConfig,
) (*Pipeline, error) {
	if cfg.EmbeddingBatchSize <= 0 {
		return nil, fmt.Errorf("%w: embedding batch size must be positive", domain.ErrConfig)
	}
	if cfg.RetryMaxAttempts < 0 {
		return nil, fmt.Errorf("%w: retry attempts must not be negative", domain.ErrConfig)
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = DefaultFetchWorkers
	}

	byID := make(map[string]driven.Connector, len(connectors))
	order := make([]string, 0, len(connectors))
	for _, c := range connectors {
		id := c.Source().ID
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate source id %q", domain.ErrConfig, id)
		}
		byID[id] = c
		order = append(order, id)
	}

	return &Pipeline{
		connectors: byID,
		order:      order,
		split:      split,
		embedder:   embedder,
		index:      index,
		ledger:     ledger,
		cfg:        cfg,
		activeRuns: make(map[string]*driving.RunStatus),
		upserts:    make(map[string]*sync.Mutex),
	}, nil
}

// Ingest runs the pipeline for one source.
func (p *Pipeline) Ingest(ctx context.Context, sourceID string) error {
	connector, ok := p.connectors[sourceID]
	if !ok {
		return fmt.Errorf("%w: unknown source %q", domain.ErrNotFound, sourceID)
	}
	collection := connector.CollectionName()

	ids, err := connector.ListContent(ctx)
	if err != nil {
		return fmt.Errorf("list content for %s: %w", sourceID, err)
	}

	status := &driving.RunStatus{SourceID: sourceID, Running: true}
	p.setStatus(sourceID, status)
	defer p.finishStatus(sourceID)

	logger.Info("Starting ingestion for source %s (%d items)", sourceID, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.FetchWorkers)

	for _, id := range ids {
		contentID := id
		g.Go(func() error {
			// Cancellation is the only error that crosses item
			// boundaries; everything else is recorded per item.
			if err := gctx.Err(); err != nil {
				return err
			}

			outcome, err := p.processItem(gctx, connector, collection, contentID)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				if errors.Is(err, domain.ErrIndex) {
					// The index may hold stale chunks for this item now.
					logger.Error("source %s: item %s not indexed after retries: %v", sourceID, contentID, err)
				} else {
					logger.Warn("source %s: item %s failed: %v", sourceID, contentID, err)
				}
				p.recordFailure(gctx, collection, contentID, err)
				p.bumpStatus(sourceID, func(s *driving.RunStatus) { s.Failed++ })
				return nil
			}

			switch outcome {
			case itemSkipped:
				p.bumpStatus(sourceID, func(s *driving.RunStatus) { s.Skipped++ })
			case itemIndexed:
				p.bumpStatus(sourceID, func(s *driving.RunStatus) { s.Processed++ })
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	p.mu.RLock()
	final := *p.activeRuns[sourceID]
	p.mu.RUnlock()
	logger.Info("Ingestion for source %s done: %d indexed, %d skipped, %d failed",
		sourceID, final.Processed, final.Skipped, final.Failed)
	return nil
}

// IngestAll runs the pipeline for every configured source in order.
func (p *Pipeline) IngestAll(ctx context.Context) error {
	var errs []error
	for _, sourceID := range p.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Ingest(ctx, sourceID); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			errs = append(errs, fmt.Errorf("source %s: %w", sourceID, err))
		}
	}
	return errors.Join(errs...)
}

// Status returns progress for a source's active or most recent run.
func (p *Pipeline) Status(_ context.Context, sourceID string) (*driving.RunStatus, error) {
	if _, ok := p.connectors[sourceID]; !ok {
		return nil, fmt.Errorf("%w: unknown source %q", domain.ErrNotFound, sourceID)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if status, ok := p.activeRuns[sourceID]; ok {
		copied := *status
		return &copied, nil
	}
	return &driving.RunStatus{SourceID: sourceID}, nil
}

// itemOutcome classifies a successful processItem call.
type itemOutcome int

const (
	itemIndexed itemOutcome = iota
	itemSkipped
)

// processItem runs one content item through every pipeline stage.
func (p *Pipeline) processItem(ctx context.Context, connector driven.Connector, collection, contentID string) (itemOutcome, error) {
	doc, err := p.fetchWithRetry(ctx, connector, contentID)
	if err != nil {
		return 0, err
	}

	// Unchanged content is a no-op: index and indexed_at stay untouched.
	prev, err := p.ledger.Get(ctx, collection, contentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("read ledger: %w", err)
	}
	if prev != nil && prev.State == domain.StateIndexed && prev.ContentHash == doc.ContentHash {
		logger.Debug("source %s: %s unchanged, skipping", doc.SourceID, contentID)
		return itemSkipped, nil
	}

	if err := p.advance(ctx, collection, contentID, doc.ContentHash, domain.StateFetched); err != nil {
		return 0, err
	}

	meta, text, err := connector.ExtractMetaText(doc)
	if err != nil {
		return 0, err
	}
	if err := p.advance(ctx, collection, contentID, doc.ContentHash, domain.StateNormalized); err != nil {
		return 0, err
	}

	// Synthetic questions ride along in chunk metadata to catch
	// how-users-ask phrasings at query time.
	if questions, err := connector.GenerateQuestions(ctx, meta, text); err == nil && len(questions) > 0 {
		meta.Set("questions", strings.Join(questions, "\n"))
	}

	chunks := p.split.Split(collection, contentID, text, meta)
	if err := p.advance(ctx, collection, contentID, doc.ContentHash, domain.StateSplit); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		// Nothing indexable (empty page). Drop stale chunks, mark done.
		err := p.retryTransient(ctx, isIndexErr, func() error {
			return p.index.DeleteByContent(ctx, collection, contentID)
		})
		if err != nil {
			return 0, err
		}
		if err := p.advance(ctx, collection, contentID, doc.ContentHash, domain.StateEmbedded); err != nil {
			return 0, err
		}
		if err := p.advance(ctx, collection, contentID, doc.ContentHash, domain.StateIndexed); err != nil {
			return 0, err
		}
		return itemIndexed, nil
	}

	if err := p.embedChunks(ctx, chunks); err != nil {
		return 0, err
	}
	if err := p.advance(ctx, collection, contentID, doc.ContentHash, domain.StateEmbedded); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	for i := range chunks {
		chunks[i].IndexedAt = now
	}

	// One upsert writer per collection at a time keeps per-content
	// atomicity simple across index backends.
	lock := p.collectionLock(collection)
	lock.Lock()
	err = p.retryTransient(ctx, isIndexErr, func() error {
		return p.index.Upsert(ctx, collection, chunks)
	})
	lock.Unlock()
	if err != nil {
		return 0, err
	}

	if err := p.advance(ctx, collection, contentID, doc.ContentHash, domain.StateIndexed); err != nil {
		return 0, err
	}
	return itemIndexed, nil
}

// retryTransient runs op under exponential backoff up to the configured
// attempt bound. Errors transient reports false for abort immediately.
func (p *Pipeline) retryTransient(ctx context.Context, transient func(error) bool, op func() error) error {
	operation := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if transient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.cfg.RetryMaxAttempts)),
		ctx)
	return backoff.Retry(operation, policy)
}

func isFetchErr(err error) bool     { return errors.Is(err, domain.ErrFetch) }
func isEmbeddingErr(err error) bool { return errors.Is(err, domain.ErrEmbedding) }
func isIndexErr(err error) bool     { return errors.Is(err, domain.ErrIndex) }

// fetchWithRetry fetches one item, retrying transient fetch failures.
func (p *Pipeline) fetchWithRetry(ctx context.Context, connector driven.Connector, contentID string) (*domain.RawDocument, error) {
	var doc *domain.RawDocument

	err := p.retryTransient(ctx, isFetchErr, func() error {
		docs, itemErrs := connector.FetchContent(ctx, []string{contentID})
		if len(docs) == 1 {
			doc = &docs[0]
			return nil
		}
		if len(itemErrs) > 0 {
			return error(itemErrs[0])
		}
		return fmt.Errorf("%w: source returned no document for %s", domain.ErrFetch, contentID)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// embedChunks fills chunk embeddings in batches, preserving order.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += p.cfg.EmbeddingBatchSize {
		end := start + p.cfg.EmbeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = embeddingText(&chunks[i])
		}

		var vectors [][]float32
		err := p.retryTransient(ctx, isEmbeddingErr, func() error {
			batch, err := p.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}
			vectors = batch
			return nil
		})
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbedding, len(vectors), len(texts))
		}
		for i := start; i < end; i++ {
			chunks[i].Embedding = vectors[i-start]
		}
	}
	return nil
}

// embeddingText is what a chunk embeds as: its text, prefixed with the
// synthetic questions so question-shaped queries land on the chunk.
func embeddingText(chunk *domain.Chunk) string {
	if chunk.Metadata == nil {
		return chunk.Text
	}
	questions, ok := chunk.Metadata.Get("questions")
	if !ok || questions == "" {
		return chunk.Text
	}
	return questions + "\n\n" + chunk.Text
}

// advance moves an item's ledger state forward, enforcing the forward-only
// state machine.
func (p *Pipeline) advance(ctx context.Context, collection, contentID, hash string, next domain.IngestionState) error {
	prev, err := p.ledger.Get(ctx, collection, contentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("read ledger: %w", err)
	}
	if prev != nil && prev.State != domain.StateFailed && !prev.State.CanAdvanceTo(next) && prev.State != next {
		// Re-ingestion of changed content restarts from fetched.
		if next != domain.StateFetched {
			return fmt.Errorf("ledger state %s cannot advance to %s for %s", prev.State, next, contentID)
		}
	}

	return p.ledger.Put(ctx, driven.LedgerEntry{
		Collection:  collection,
		ContentID:   contentID,
		ContentHash: hash,
		State:       next,
		UpdatedAt:   time.Now().UTC(),
	})
}

// recordFailure marks an item failed in the ledger, best-effort.
func (p *Pipeline) recordFailure(ctx context.Context, collection, contentID string, cause error) {
	entry := driven.LedgerEntry{
		Collection: collection,
		ContentID:  contentID,
		State:      domain.StateFailed,
		LastError:  cause.Error(),
		UpdatedAt:  time.Now().UTC(),
	}
	if prev, err := p.ledger.Get(ctx, collection, contentID); err == nil {
		entry.ContentHash = prev.ContentHash
	}
	if err := p.ledger.Put(ctx, entry); err != nil {
		logger.Warn("recording failure for %s: %v", contentID, err)
	}
}

func (p *Pipeline) collectionLock(collection string) *sync.Mutex {
	p.upsertMu.Lock()
	defer p.upsertMu.Unlock()

	lock, ok := p.upserts[collection]
	if !ok {
		lock = &sync.Mutex{}
		p.upserts[collection] = lock
	}
	return lock
}

func (p *Pipeline) setStatus(sourceID string, status *driving.RunStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeRuns[sourceID] = status
}

// finishStatus keeps the final counts visible but marks the run idle.
func (p *Pipeline) finishStatus(sourceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status, ok := p.activeRuns[sourceID]; ok {
		status.Running = false
	}
}

func (p *Pipeline) bumpStatus(sourceID string, fn func(*driving.RunStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status, ok := p.activeRuns[sourceID]; ok {
		fn(status)
	}
}
