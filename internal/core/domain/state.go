package domain

// IngestionState tracks one content item through the pipeline.
// Transitions are strictly forward except StateFailed, which is reachable
// from any stage once retries are exhausted.
type IngestionState int

const (
	// StateDiscovered means the item was enumerated by the connector.
	StateDiscovered IngestionState = iota

	// StateFetched means the raw body was retrieved.
	StateFetched

	// StateNormalized means the body was converted to structured text.
	StateNormalized

	// StateSplit means chunks were produced.
	StateSplit

	// StateEmbedded means all chunks have embeddings.
	StateEmbedded

	// StateIndexed means the chunks are visible in the search index.
	StateIndexed

	// StateFailed is terminal; the run continues with other items.
	StateFailed
)

// String returns the state name used in the ledger and logs.
func (s IngestionState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateFetched:
		return "fetched"
	case StateNormalized:
		return "normalized"
	case StateSplit:
		return "split"
	case StateEmbedded:
		return "embedded"
	case StateIndexed:
		return "indexed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseIngestionState converts a ledger state name back to its value.
// Unknown names map to StateFailed so a corrupt ledger row is retried.
func ParseIngestionState(name string) IngestionState {
	switch name {
	case "discovered":
		return StateDiscovered
	case "fetched":
		return StateFetched
	case "normalized":
		return StateNormalized
	case "split":
		return StateSplit
	case "embedded":
		return StateEmbedded
	case "indexed":
		return StateIndexed
	default:
		return StateFailed
	}
}

// CanAdvanceTo reports whether a transition to next is legal.
// Failure is always legal; otherwise only the immediate next stage is.
func (s IngestionState) CanAdvanceTo(next IngestionState) bool {
	if next == StateFailed {
		return true
	}
	return next == s+1 && next <= StateIndexed
}
