package domain

import "errors"

// Error taxonomy for the ingestion and retrieval pipeline.
// Per-item failures wrap one of these sentinels so the pipeline can
// classify them with errors.Is; none of them abort a run on their own.
var (
	// ErrFetch is a transient network or page-render failure.
	// Retried with backoff; terminal after max attempts.
	ErrFetch = errors.New("fetch failed")

	// ErrParse indicates malformed or unexpected content structure.
	// The item is skipped and logged; the run continues.
	ErrParse = errors.New("parse failed")

	// ErrEmbedding indicates the embedding model was unavailable or the
	// request failed. Retried; terminal failure marks the item failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndex is a write failure to the search index. Retried; terminal
	// failure marks the item failed and raises an operator-visible alert
	// because the index may now be stale for that item.
	ErrIndex = errors.New("index write failed")

	// ErrConfig is an invalid configuration. Fatal: the run or startup
	// aborts before any work begins.
	ErrConfig = errors.New("invalid configuration")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrToolUnavailable indicates a retrieval tool's backend is down.
	// Distinct from an empty result: the orchestrator skips the tool
	// for the pass and reports the error.
	ErrToolUnavailable = errors.New("retrieval tool unavailable")

	// ErrModelVersionMismatch indicates vectors from different embedding
	// model versions were mixed in one index.
	ErrModelVersionMismatch = errors.New("embedding model version mismatch")
)
