package driven

import (
	"context"
	"time"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

// LedgerEntry is one content item's ingestion record.
type LedgerEntry struct {
	// Collection is the index collection the item belongs to.
	Collection string

	// ContentID identifies the item within its source.
	ContentID string

	// ContentHash fingerprints the last successfully indexed body.
	ContentHash string

	// State is the item's pipeline progress.
	State domain.IngestionState

	// LastError holds the terminal error message when State is failed.
	LastError string

	// UpdatedAt is when the entry last changed.
	UpdatedAt time.Time
}

// IngestionLedger persists per-item ingestion state and content hashes.
// The pipeline exclusively owns entries for the duration of a run; the
// ledger makes re-ingestion idempotent across runs.
type IngestionLedger interface {
	// Get retrieves the entry for a content id.
	// Returns domain.ErrNotFound if the item was never seen.
	Get(ctx context.Context, collection, contentID string) (*LedgerEntry, error)

	// Put stores or updates an entry.
	Put(ctx context.Context, entry LedgerEntry) error

	// List returns all entries for a collection.
	List(ctx context.Context, collection string) ([]LedgerEntry, error)
}
