package driving

import "context"

// RunStatus reports progress of an active ingestion run.
type RunStatus struct {
	// SourceID is the source being ingested.
	SourceID string

	// Running is true while the run is active.
	Running bool

	// Processed counts items that reached the indexed state this run.
	Processed int

	// Skipped counts items left untouched because their content hash
	// was unchanged.
	Skipped int

	// Failed counts items that exhausted retries.
	Failed int
}

// IngestionRunner coordinates ingestion runs across configured sources.
type IngestionRunner interface {
	// Ingest runs the pipeline for one source. Per-item failures are
	// isolated; the returned error is non-nil only for fatal conditions
	// (enumeration failure, configuration error, cancellation).
	Ingest(ctx context.Context, sourceID string) error

	// IngestAll runs the pipeline for every configured source.
	IngestAll(ctx context.Context) error

	// Status returns progress for a source's active or idle run.
	Status(ctx context.Context, sourceID string) (*RunStatus, error)
}
